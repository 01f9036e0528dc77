// Package browser owns the chromedp session shared by all attempts of a run.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/example/slotbooker/internal/domain/booking"
)

var ErrReleased = errors.New("browser session already released")

// Session is a running (or lazily started) browser tab. The browser process
// is spawned by the first action run on it.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	released bool
}

// Context is the chromedp context of the session.
func (s *Session) Context() context.Context { return s.ctx }

type Manager struct {
	Headless bool
	// Timeout bounds the whole browser lifetime; zero means none.
	Timeout time.Duration
}

// Acquire prepares a browser session. driverHint is the path of the
// Chrome/Chromium executable; empty lets chromedp look it up.
func (m Manager) Acquire(ctx context.Context, driverHint string) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !m.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1280, 1024),
	)
	if driverHint != "" {
		if _, err := exec.LookPath(driverHint); err != nil {
			return nil, fmt.Errorf("%w: browser binary %q: %v", booking.ErrSession, driverHint, err)
		}
		opts = append(opts, chromedp.ExecPath(driverHint))
	}

	base := ctx
	var stopTimeout context.CancelFunc = func() {}
	if m.Timeout > 0 {
		base, stopTimeout = context.WithTimeout(ctx, m.Timeout)
	}
	allocCtx, stopAlloc := chromedp.NewExecAllocator(base, opts...)
	tabCtx, stopTab := chromedp.NewContext(allocCtx)

	return &Session{
		ctx: tabCtx,
		cancel: func() {
			stopTab()
			stopAlloc()
			stopTimeout()
		},
	}, nil
}

// Release closes the browser. Calling it twice returns ErrReleased.
func (m Manager) Release(s *Session) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrReleased
	}
	s.released = true
	defer s.cancel()

	if !s.started {
		return nil
	}
	if err := chromedp.Cancel(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// Run executes actions on the session, bounded by ctx as well. Errors that
// mean the browser itself is gone are wrapped with booking.ErrSession.
func Run(ctx context.Context, s *Session, actions ...chromedp.Action) error {
	if s == nil {
		return fmt.Errorf("%w: no session", booking.ErrSession)
	}
	if err := s.start(); err != nil {
		return wrap(s, err)
	}

	runCtx := s.ctx
	if ctx != nil && ctx.Done() != nil {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(s.ctx)
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()
	}

	err := chromedp.Run(runCtx, actions...)
	return wrap(s, err)
}

// start spawns the browser on the session context itself. A context that is
// cancelled after the first chromedp.Run would take the browser down with it.
func (s *Session) start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return fmt.Errorf("%w: %v", booking.ErrSession, ErrReleased)
	}
	if s.started {
		return nil
	}
	if err := chromedp.Run(s.ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

func wrap(s *Session, err error) error {
	if err == nil {
		return nil
	}
	if IsSessionFailure(err) || s.ctx.Err() != nil {
		return fmt.Errorf("%w: %v", booking.ErrSession, err)
	}
	return err
}

// IsSessionFailure reports whether err means the browser could not be
// started or the connection to it broke.
func IsSessionFailure(err error) bool {
	var execErr *exec.Error
	switch {
	case err == nil:
		return false
	case errors.Is(err, booking.ErrSession):
		return true
	case errors.Is(err, chromedp.ErrInvalidContext),
		errors.Is(err, chromedp.ErrChannelClosed),
		errors.Is(err, exec.ErrNotFound),
		errors.As(err, &execErr):
		return true
	}
	return false
}
