package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/slotbooker/internal/browser"
	"github.com/example/slotbooker/internal/runlog"
)

// TestModeSecret is deliberately wrong; test mode must never log in.
const TestModeSecret = "if-this-would-be-the-password"

var ErrTestModeAnomaly = errors.New("test mode: login with placeholder secret succeeded")

// RunTestMode checks the container wiring with a single login that is
// expected to be rejected. It books nothing and sends no mail.
func (o *Orchestrator) RunTestMode(ctx context.Context, sess *browser.Session, cfg RunConfig) error {
	log := o.logger().With("test_mode", true)
	log.Info("Testing Docker Container")

	p := cfg.attemptParams()
	p.DaysBeforeBookable = 0
	p.ExecutionBookingTime = "00:00:00.00"
	agent := o.Agents.NewAgent(sess, p)

	failed, err := authenticateOnce(ctx, agent, cfg.Username)
	switch {
	case err != nil:
		log.Error("TEST FAILED | login could not be performed", "err", err, "outcome", Classify(err).String())
		return fmt.Errorf("test mode: %w", err)
	case failed:
		runlog.Success(ctx, log, "TEST OK | Login failed as expected")
		return nil
	default:
		log.Error("TEST FAILED | Login with placeholder password succeeded")
		return ErrTestModeAnomaly
	}
}

func authenticateOnce(ctx context.Context, agent Agent, username string) (failed bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("authenticate panicked: %v", p)
		}
	}()
	return agent.Authenticate(ctx, username, TestModeSecret)
}
