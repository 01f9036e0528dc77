package web

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/slotbooker/internal/auth"
	"github.com/example/slotbooker/internal/db"
	"github.com/example/slotbooker/internal/runs"
)

const runID = "6f1c1f9e-4a57-4d0e-9a55-2b0f3f0f8c11"

type fakeRuns struct {
	runs     []runs.Run
	attempts map[string][]runs.Attempt
	err      error
	limit    int
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]runs.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

func (f *fakeRuns) Get(_ context.Context, id string) (runs.Run, error) {
	if f.err != nil {
		return runs.Run{}, f.err
	}
	for _, r := range f.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return runs.Run{}, db.ErrNotFound
}

func (f *fakeRuns) Attempts(_ context.Context, id string) ([]runs.Attempt, error) {
	return f.attempts[id], nil
}

func newTestServer(t *testing.T, src RunSource) (*Server, *auth.Store) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	hashKey, blockKey := auth.GenerateKeys()
	st := auth.NewStore("operator", string(hash), hashKey, blockKey)
	return &Server{
		Auth:   st,
		Runs:   src,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, st
}

func sessionCookie(t *testing.T, st *auth.Store) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, st.SetSession(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "operator"))
	return rec.Result().Cookies()[0]
}

func get(t *testing.T, h http.Handler, path string, c *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if c != nil {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleRuns() *fakeRuns {
	finished := time.Date(2024, 5, 6, 7, 1, 0, 0, time.UTC)
	boom := "authenticate: session: chrome exited"
	return &fakeRuns{
		runs: []runs.Run{{
			ID:               runID,
			Status:           runs.StatusBooked,
			AttemptsMade:     2,
			ClassSlot:        "CrossFit-18:00",
			TimeSlot:         "18:00",
			ArtifactLocation: "logs/slotbooker-20240506T070000Z.html",
			StartedAt:        time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC),
			FinishedAt:       &finished,
		}},
		attempts: map[string][]runs.Attempt{
			runID: {
				{RunID: runID, Attempt: 1, Outcome: "infrastructure_failure", Error: &boom},
				{RunID: runID, Attempt: 2, Outcome: "success", ClassSlot: "CrossFit-18:00", TimeSlot: "18:00"},
			},
		},
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &fakeRuns{})
	rec := get(t, s.Routes(), "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	s.Ping = func(context.Context) error { return errors.New("down") }
	rec = get(t, s.Routes(), "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnauthenticatedRedirects(t *testing.T) {
	s, _ := newTestServer(t, sampleRuns())
	h := s.Routes()
	for _, p := range []string{"/", "/runs/" + runID} {
		rec := get(t, h, p, nil)
		assert.Equal(t, http.StatusFound, rec.Code, p)
		assert.Equal(t, "/login", rec.Header().Get("Location"), p)
	}
}

func TestLogin(t *testing.T) {
	s, _ := newTestServer(t, sampleRuns())
	h := s.Routes()

	rec := get(t, h, "/login", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="password"`)

	post := func(user, pw string) *httptest.ResponseRecorder {
		form := url.Values{"username": {user}, "password": {pw}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	bad := post("operator", "nope")
	assert.Contains(t, bad.Body.String(), "Invalid username/password")
	assert.Empty(t, bad.Result().Cookies())

	ok := post("operator", "hunter2")
	assert.Equal(t, http.StatusFound, ok.Code)
	assert.Equal(t, "/", ok.Header().Get("Location"))
	require.Len(t, ok.Result().Cookies(), 1)

	home := get(t, h, "/", ok.Result().Cookies()[0])
	assert.Equal(t, http.StatusOK, home.Code)
}

func TestLogout(t *testing.T) {
	s, st := newTestServer(t, sampleRuns())
	rec := get(t, s.Routes(), "/logout", sessionCookie(t, st))
	assert.Equal(t, http.StatusFound, rec.Code)
	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Empty(t, c[0].Value)
}

func TestRunsList(t *testing.T) {
	src := sampleRuns()
	s, st := newTestServer(t, src)
	h := s.Routes()
	c := sessionCookie(t, st)

	rec := get(t, h, "/", c)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "/runs/"+runID)
	assert.Contains(t, body, "CrossFit-18:00")
	assert.Contains(t, body, "2024-05-06 07:00:00 UTC")
	assert.Equal(t, defaultListLimit, src.limit)

	rec = get(t, h, "/?limit=5", c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, src.limit)

	rec = get(t, h, "/?limit=zero", c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	src.err = errors.New("db gone")
	rec = get(t, h, "/", c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunsEmpty(t *testing.T) {
	s, st := newTestServer(t, &fakeRuns{})
	rec := get(t, s.Routes(), "/", sessionCookie(t, st))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No runs recorded yet.")
}

func TestRunDetail(t *testing.T) {
	s, st := newTestServer(t, sampleRuns())
	h := s.Routes()
	c := sessionCookie(t, st)

	rec := get(t, h, "/runs/"+runID, c)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "infrastructure_failure")
	assert.Contains(t, body, "authenticate: session: chrome exited")
	assert.Contains(t, body, "2024-05-06 07:01:00 UTC")

	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/not-a-uuid", c).Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/runs/00000000-0000-0000-0000-000000000000", c).Code)
}

func TestUnknownPath(t *testing.T) {
	s, st := newTestServer(t, sampleRuns())
	rec := get(t, s.Routes(), "/nope", sessionCookie(t, st))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
