package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/slotbooker/internal/auth"
	"github.com/example/slotbooker/internal/db"
	"github.com/example/slotbooker/internal/runs"
)

//go:embed templates/*.html
var fs embed.FS

const defaultListLimit = 50

// RunSource is the read side of runs.Repo.
type RunSource interface {
	List(ctx context.Context, limit int) ([]runs.Run, error)
	Get(ctx context.Context, id string) (runs.Run, error)
	Attempts(ctx context.Context, runID string) ([]runs.Attempt, error)
}

type Server struct {
	Auth   *auth.Store
	Runs   RunSource
	Logger *slog.Logger

	// Ping backs /healthz when set.
	Ping func(ctx context.Context) error
}

type tmplData struct {
	Title string
	User  string

	Flash    string
	Runs     []runs.Run
	Run      runs.Run
	Attempts []runs.Attempt
}

var funcs = template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
	"fmtTimePtr": func(t *time.Time) string {
		if t == nil {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	mux.Handle("/{$}", s.Auth.RequireAuth(http.HandlerFunc(s.handleRuns)))
	mux.Handle("/runs/{id}", s.Auth.RequireAuth(http.HandlerFunc(s.handleRun)))

	return s.logging(mux)
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger().Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ping != nil {
		if err := s.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, "templates/login.html", tmplData{Title: "Login"})
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		username := strings.TrimSpace(r.FormValue("username"))
		if err := s.Auth.Authenticate(username, r.FormValue("password")); err != nil {
			s.logger().Warn("dashboard login rejected", "username", username)
			s.render(w, "templates/login.html", tmplData{Title: "Login", Flash: "Invalid username/password"})
			return
		}
		if err := s.Auth.SetSession(w, r, username); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, "/", http.StatusFound)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rs, err := s.Runs.List(r.Context(), limit)
	if err != nil {
		s.logger().Error("list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/runs.html", tmplData{Title: "Runs", User: user, Runs: rs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	id := r.PathValue("id")
	if _, err := uuid.Parse(id); err != nil {
		http.NotFound(w, r)
		return
	}
	run, err := s.Runs.Get(r.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			http.NotFound(w, r)
			return
		}
		s.logger().Error("get run", "run_id", id, "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	attempts, err := s.Runs.Attempts(r.Context(), id)
	if err != nil {
		s.logger().Error("list attempts", "run_id", id, "error", err)
		http.Error(w, "failed to load attempts", http.StatusInternalServerError)
		return
	}
	s.render(w, "templates/run.html", tmplData{Title: "Run " + id, User: user, Run: run, Attempts: attempts})
}

func (s *Server) render(w http.ResponseWriter, name string, data tmplData) {
	t, err := template.New("").Funcs(funcs).ParseFS(fs, "templates/base.html", name)
	if err != nil {
		http.Error(w, "template error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := t.ExecuteTemplate(w, "base", data); err != nil {
		s.logger().Error("render", "template", name, "error", err)
	}
}

// Start serves h until ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("dashboard listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
