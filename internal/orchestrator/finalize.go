package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/domain/booking"
)

// Finalize renders the run log and sends one logs mail plus one booking
// result mail. Every send is tried even if an earlier step failed; the
// errors are returned together and nothing is retried.
func (o *Orchestrator) Finalize(ctx context.Context, outcome booking.RunOutcome) error {
	log := o.logger()
	plan := booking.PlanNotifications(outcome)
	var errs []error

	log.Info("run finished", "booked", outcome.Booked, "attempts", outcome.AttemptsMade)
	art, err := o.Recorder.Render(ctx)
	if err != nil {
		log.Error("render run log", "err", err)
		errs = append(errs, err)
	}

	send := func(what string, fn func() error) {
		if err := fn(); err != nil {
			log.Error("notify: "+what+" failed", "err", err)
			errs = append(errs, fmt.Errorf("send %s: %w", what, err))
		}
	}
	if plan.Booked {
		send("logs mail", func() error { return o.Notifier.SendLogArtifact(ctx, art, plan.Tag) })
		send("booking succeeded mail", func() error {
			return o.Notifier.SendBookingSucceeded(ctx, plan.TimeSlot, plan.ClassSlot)
		})
	} else {
		send("booking failed mail", func() error { return o.Notifier.SendBookingFailed(ctx) })
		send("logs mail", func() error { return o.Notifier.SendLogArtifact(ctx, art, plan.Tag) })
	}

	o.finishRun(ctx, outcome, art)
	return errors.Join(errs...)
}

func (o *Orchestrator) finishRun(ctx context.Context, outcome booking.RunOutcome, art artifacts.Artifact) {
	if o.Runs == nil || o.RunID == "" {
		return
	}
	if err := o.Runs.Finish(ctx, o.RunID, outcome, art.Location); err != nil {
		o.logger().Warn("runs: finish failed", "err", err)
	}
}
