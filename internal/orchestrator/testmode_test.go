package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/slotbooker/internal/domain/booking"
)

func TestTestModeLoginFailsAsExpected(t *testing.T) {
	h := newHarness(step{loginFailed: true})
	cfg := testConfig()
	cfg.TestMode = true

	out, err := h.orch.Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, booking.RunOutcome{}, out)

	assert.Equal(t, []string{"1:auth:alice@example.com:" + TestModeSecret}, h.agents.calls)
	assert.Equal(t, booking.AttemptParams{
		DaysBeforeBookable:   0,
		BaseURL:              "https://app.octivfitness.com",
		ExecutionBookingTime: "00:00:00.00",
	}, h.agents.params[0])
	assert.Empty(t, h.notifier.calls)
	assert.Empty(t, h.store.created)
	assert.Equal(t, 1, h.sessions.released)
	assert.Contains(t, h.messages(), "TEST OK | Login failed as expected")
}

func TestTestModeUnexpectedLoginIsAnomaly(t *testing.T) {
	h := newHarness(step{loginFailed: false})
	cfg := testConfig()
	cfg.TestMode = true

	_, err := h.orch.Run(context.Background(), cfg)
	require.ErrorIs(t, err, ErrTestModeAnomaly)
	assert.Len(t, h.agents.calls, 1)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, 1, h.sessions.released)
	assert.Contains(t, h.messages(), "TEST FAILED | Login with placeholder password succeeded")
	assert.NotContains(t, h.messages(), "TEST OK | Login failed as expected")
}

func TestTestModeNeverUsesRealSecret(t *testing.T) {
	h := newHarness(step{loginErr: errDriver})
	cfg := testConfig()
	cfg.TestMode = true
	cfg.Password = ""

	_, err := h.orch.Run(context.Background(), cfg)
	require.ErrorIs(t, err, booking.ErrSession)
	require.Len(t, h.agents.calls, 1)
	assert.NotContains(t, h.agents.calls[0], "s3cret")
	assert.Empty(t, h.notifier.calls)
}

func TestTestModeAcquireFailure(t *testing.T) {
	h := newHarness()
	h.sessions.acquireErr = errDriver
	cfg := testConfig()
	cfg.TestMode = true

	_, err := h.orch.Run(context.Background(), cfg)
	require.ErrorIs(t, err, booking.ErrSession)
	assert.Empty(t, h.agents.calls)
	assert.Empty(t, h.notifier.calls)
	assert.Equal(t, 0, h.sessions.released)
}
