// Package orchestrator runs the booking attempts of one process invocation:
// it owns the retry loop, the failure classification, the test-mode check
// and the final notifications.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/browser"
	"github.com/example/slotbooker/internal/domain/booking"
	"github.com/example/slotbooker/internal/runlog"
)

// SessionManager acquires and releases the browser shared by all attempts.
type SessionManager interface {
	Acquire(ctx context.Context, driverHint string) (*browser.Session, error)
	Release(s *browser.Session) error
}

// Agent performs the three booking steps. All calls block on the browser.
type Agent interface {
	Authenticate(ctx context.Context, username, secret string) (failed bool, err error)
	NavigateToTargetDay(ctx context.Context) error
	Reserve(ctx context.Context, sel booking.ClassSelection) (booking.Reservation, error)
}

type AgentFactory interface {
	NewAgent(s *browser.Session, p booking.AttemptParams) Agent
}

// Recorder renders the run log captured so far into one artifact.
type Recorder interface {
	Render(ctx context.Context) (artifacts.Artifact, error)
}

type Notifier interface {
	SendLogArtifact(ctx context.Context, a artifacts.Artifact, tag booking.Tag) error
	SendBookingSucceeded(ctx context.Context, timeSlot, classSlot string) error
	SendBookingFailed(ctx context.Context) error
}

// RunStore persists runs and attempts. Its errors are logged and never
// change the course of a run.
type RunStore interface {
	Create(ctx context.Context, runID string, startedAt time.Time) error
	MarkAttempt(ctx context.Context, runID string, rec booking.AttemptRecord) error
	Finish(ctx context.Context, runID string, outcome booking.RunOutcome, artifactLocation string) error
}

type Orchestrator struct {
	Sessions SessionManager
	Agents   AgentFactory
	Recorder Recorder
	Notifier Notifier
	Runs     RunStore // optional
	Logger   *slog.Logger
	RunID    string
	Now      func() time.Time
}

// Run performs one booking run. The browser session is acquired once and
// released exactly once however the run ends. The returned error reports
// problems outside the attempts (invalid config, finalization, the test-mode
// anomaly); failed attempts only show up in the outcome.
func (o *Orchestrator) Run(ctx context.Context, cfg RunConfig) (outcome booking.RunOutcome, err error) {
	if err := cfg.Validate(); err != nil {
		return booking.RunOutcome{}, fmt.Errorf("invalid run config: %w", err)
	}
	log := o.logger()

	sess, acqErr := o.Sessions.Acquire(ctx, cfg.DriverHint)
	if acqErr == nil {
		defer func() {
			if relErr := o.Sessions.Release(sess); relErr != nil {
				log.Warn("release browser session", "err", relErr)
				err = errors.Join(err, fmt.Errorf("release session: %w", relErr))
			}
		}()
	}

	if cfg.TestMode {
		if acqErr != nil {
			log.Error("test mode: could not start browser session", "err", acqErr)
			return booking.RunOutcome{}, acqErr
		}
		return booking.RunOutcome{}, o.RunTestMode(ctx, sess, cfg)
	}

	o.createRun(ctx)
	if acqErr != nil {
		// nothing to retry on without a browser; the run still reports
		rec := booking.AttemptRecord{Outcome: Classify(acqErr), Err: acqErr, StartedAt: o.now(), FinishedAt: o.now()}
		log.Warn("booking run aborted: browser session could not be acquired", "outcome", rec.Outcome.String())
		log.Error(rec.Detail())
		outcome = booking.RunOutcome{LastAttempt: rec}
	} else {
		outcome = booking.DeriveOutcome(o.retryLoop(ctx, sess, cfg))
	}

	return outcome, o.Finalize(ctx, outcome)
}

func (o *Orchestrator) retryLoop(ctx context.Context, sess *browser.Session, cfg RunConfig) []booking.AttemptRecord {
	log := o.logger()
	log.Info("Log in as: " + cfg.Username)

	records := make([]booking.AttemptRecord, 0, cfg.RetryLimit)
	for attempt := 1; attempt <= cfg.RetryLimit; attempt++ {
		rec := o.attempt(ctx, sess, cfg, attempt)
		records = append(records, rec)
		o.logAttempt(ctx, rec)
		o.markAttempt(ctx, rec)
		if rec.Outcome == booking.OutcomeSuccess {
			break
		}
	}
	return records
}

// attempt runs authenticate, navigate and reserve in order. A panic in a
// step ends the attempt like any other error.
func (o *Orchestrator) attempt(ctx context.Context, sess *browser.Session, cfg RunConfig, n int) (rec booking.AttemptRecord) {
	rec = booking.AttemptRecord{Attempt: n, StartedAt: o.now()}
	defer func() {
		if p := recover(); p != nil {
			rec.Err = fmt.Errorf("attempt %d panicked: %v", n, p)
		}
		rec.Outcome = Classify(rec.Err)
		rec.FinishedAt = o.now()
	}()

	agent := o.Agents.NewAgent(sess, cfg.attemptParams())

	failed, err := agent.Authenticate(ctx, cfg.Username, cfg.Password)
	if err != nil {
		rec.Err = fmt.Errorf("authenticate: %w", err)
		return rec
	}
	if failed {
		rec.Err = fmt.Errorf("authenticate: %w", booking.ErrLoginRejected)
		return rec
	}
	if err := agent.NavigateToTargetDay(ctx); err != nil {
		rec.Err = fmt.Errorf("navigate: %w", err)
		return rec
	}
	res, err := agent.Reserve(ctx, cfg.Classes)
	if err != nil {
		rec.Err = fmt.Errorf("reserve: %w", err)
		return rec
	}
	// not reserved without an error is retried like any failure rather than
	// ending the run
	if !res.Done {
		rec.Err = fmt.Errorf("reserve: %w", booking.ErrNotReserved)
		return rec
	}
	rec.ClassSlot = res.ClassSlot
	rec.TimeSlot = res.TimeSlot
	return rec
}

func (o *Orchestrator) logAttempt(ctx context.Context, rec booking.AttemptRecord) {
	log := o.logger().With("attempt", rec.Attempt, "outcome", rec.Outcome.String())
	switch rec.Outcome {
	case booking.OutcomeSuccess:
		runlog.Success(ctx, log, fmt.Sprintf("Attempt %d: booking succeeded", rec.Attempt),
			"class_slot", rec.ClassSlot, "time_slot", rec.TimeSlot)
	case booking.OutcomeInfrastructureFailure:
		log.Warn(fmt.Sprintf("Attempt %d: booking failed due to driver issue", rec.Attempt))
		log.Error(rec.Detail())
	default:
		log.Warn(fmt.Sprintf("Attempt %d: booking failed due to unexpected error", rec.Attempt))
		log.Error(rec.Detail())
	}
}

func (o *Orchestrator) createRun(ctx context.Context) {
	if o.Runs == nil || o.RunID == "" {
		return
	}
	if err := o.Runs.Create(ctx, o.RunID, o.now()); err != nil {
		o.logger().Warn("runs: create failed", "err", err)
	}
}

func (o *Orchestrator) markAttempt(ctx context.Context, rec booking.AttemptRecord) {
	if o.Runs == nil || o.RunID == "" {
		return
	}
	if err := o.Runs.MarkAttempt(ctx, o.RunID, rec); err != nil {
		o.logger().Warn("runs: mark attempt failed", "attempt", rec.Attempt, "err", err)
	}
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Orchestrator) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}
