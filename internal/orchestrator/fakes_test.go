package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/browser"
	"github.com/example/slotbooker/internal/domain/booking"
	"github.com/example/slotbooker/internal/runlog"
)

type fakeSessions struct {
	acquireErr error
	releaseErr error
	acquired   int
	released   int
	hints      []string
}

func (f *fakeSessions) Acquire(ctx context.Context, hint string) (*browser.Session, error) {
	f.acquired++
	f.hints = append(f.hints, hint)
	if f.acquireErr != nil {
		return nil, f.acquireErr
	}
	return new(browser.Session), nil
}

func (f *fakeSessions) Release(s *browser.Session) error {
	f.released++
	return f.releaseErr
}

// step scripts one attempt. A nil step succeeds with the yoga class.
type step struct {
	loginFailed bool
	loginErr    error
	navErr      error
	reserveErr  error
	notDone     bool
	panicMsg    string
}

type fakeAgents struct {
	steps  []step
	params []booking.AttemptParams
	calls  []string
	mu     sync.Mutex
}

func (f *fakeAgents) NewAgent(s *browser.Session, p booking.AttemptParams) Agent {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.params)
	f.params = append(f.params, p)
	var st step
	if n < len(f.steps) {
		st = f.steps[n]
	}
	return &fakeAgent{parent: f, attempt: n + 1, step: st}
}

func (f *fakeAgents) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

type fakeAgent struct {
	parent  *fakeAgents
	attempt int
	step    step
}

func (a *fakeAgent) Authenticate(ctx context.Context, user, secret string) (bool, error) {
	a.parent.record(fmt.Sprintf("%d:auth:%s:%s", a.attempt, user, secret))
	if a.step.panicMsg != "" {
		panic(a.step.panicMsg)
	}
	return a.step.loginFailed, a.step.loginErr
}

func (a *fakeAgent) NavigateToTargetDay(ctx context.Context) error {
	a.parent.record(fmt.Sprintf("%d:navigate", a.attempt))
	return a.step.navErr
}

func (a *fakeAgent) Reserve(ctx context.Context, sel booking.ClassSelection) (booking.Reservation, error) {
	a.parent.record(fmt.Sprintf("%d:reserve", a.attempt))
	if a.step.reserveErr != nil {
		return booking.Reservation{}, a.step.reserveErr
	}
	if a.step.notDone {
		return booking.Reservation{}, nil
	}
	return booking.Reservation{Done: true, ClassSlot: "Yoga-18:00", TimeSlot: "18:00"}, nil
}

type fakeNotifier struct {
	calls     []string
	artifacts []artifacts.Artifact
	failWith  map[string]error
	panicOn   string
}

func (n *fakeNotifier) hit(call string) error {
	n.calls = append(n.calls, call)
	if n.panicOn == call {
		panic("notifier exploded")
	}
	return n.failWith[call]
}

func (n *fakeNotifier) SendLogArtifact(ctx context.Context, a artifacts.Artifact, tag booking.Tag) error {
	n.artifacts = append(n.artifacts, a)
	return n.hit("logs:" + string(tag))
}

func (n *fakeNotifier) SendBookingSucceeded(ctx context.Context, timeSlot, classSlot string) error {
	return n.hit("succeeded:" + timeSlot + ":" + classSlot)
}

func (n *fakeNotifier) SendBookingFailed(ctx context.Context) error {
	return n.hit("failed")
}

type fakeStore struct {
	created  []string
	attempts []booking.AttemptRecord
	finished []booking.RunOutcome
	location string
	err      error
}

func (s *fakeStore) Create(ctx context.Context, runID string, startedAt time.Time) error {
	s.created = append(s.created, runID)
	return s.err
}

func (s *fakeStore) MarkAttempt(ctx context.Context, runID string, rec booking.AttemptRecord) error {
	s.attempts = append(s.attempts, rec)
	return s.err
}

func (s *fakeStore) Finish(ctx context.Context, runID string, outcome booking.RunOutcome, loc string) error {
	s.finished = append(s.finished, outcome)
	s.location = loc
	return s.err
}

type failingRecorder struct{}

func (failingRecorder) Render(ctx context.Context) (artifacts.Artifact, error) {
	return artifacts.Artifact{}, errors.New("disk full")
}

type harness struct {
	sessions *fakeSessions
	agents   *fakeAgents
	notifier *fakeNotifier
	recorder *runlog.Recorder
	store    *fakeStore
	orch     *Orchestrator
}

func newHarness(steps ...step) *harness {
	h := &harness{
		sessions: &fakeSessions{},
		agents:   &fakeAgents{steps: steps},
		notifier: &fakeNotifier{},
		recorder: runlog.New(nil, &artifacts.MemoryStore{}),
		store:    &fakeStore{},
	}
	h.orch = &Orchestrator{
		Sessions: h.sessions,
		Agents:   h.agents,
		Recorder: h.recorder,
		Notifier: h.notifier,
		Runs:     h.store,
		Logger:   slog.New(h.recorder),
		RunID:    "run-1",
	}
	return h
}

func (h *harness) messages() []string {
	var out []string
	for _, e := range h.recorder.Entries() {
		out = append(out, e.Message)
	}
	return out
}

func testConfig() RunConfig {
	return RunConfig{
		Username:             "alice@example.com",
		Password:             "s3cret",
		DaysBeforeBookable:   2,
		ExecutionBookingTime: "00:00:00.00",
		RetryLimit:           3,
		BaseURL:              "https://app.octivfitness.com",
		DriverHint:           "/usr/bin/chromium",
		Classes: booking.ClassSelection{Action: booking.ActionBook, Classes: map[string][]booking.ClassSlot{
			"monday": {{Name: "Yoga", Time: "18:00"}},
		}},
	}
}
