package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	hashKey, blockKey := GenerateKeys()
	return NewStore("operator", string(hash), hashKey, blockKey)
}

func TestAuthenticate(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Authenticate("operator", "hunter2"))
	require.ErrorIs(t, s.Authenticate("operator", "wrong"), ErrInvalidCredentials)
	require.ErrorIs(t, s.Authenticate("someone", "hunter2"), ErrInvalidCredentials)
	require.ErrorIs(t, s.Authenticate("", ""), ErrInvalidCredentials)
}

func TestHashPassword(t *testing.T) {
	h, err := HashPassword("pw")
	require.NoError(t, err)
	assert.True(t, CheckPassword(h, "pw"))
	assert.False(t, CheckPassword(h, "other"))
	assert.False(t, CheckPassword("not-a-hash", "pw"))
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	rec := httptest.NewRecorder()
	require.NoError(t, s.SetSession(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "operator"))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, ok := s.GetSession(req)
	require.True(t, ok)
	assert.Equal(t, "operator", sess.User)
	assert.Equal(t, int64(1700000000), sess.IssuedAt.Unix())

	// cookies from another key pair are rejected
	other := newTestStore(t)
	_, ok = other.GetSession(req)
	assert.False(t, ok)
}

func TestRequireAuth(t *testing.T) {
	s := newTestStore(t)
	var seen string
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	login := httptest.NewRecorder()
	require.NoError(t, s.SetSession(login, httptest.NewRequest(http.MethodPost, "/login", nil), "operator"))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(login.Result().Cookies()[0])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "operator", seen)
}

func TestClearSession(t *testing.T) {
	s := newTestStore(t)
	rec := httptest.NewRecorder()
	s.ClearSession(rec)
	c := rec.Result().Cookies()
	require.Len(t, c, 1)
	assert.Equal(t, cookieName, c[0].Name)
	assert.Less(t, c[0].MaxAge, 0)
}
