package octiv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/slotbooker/internal/domain/booking"
)

func TestFactoryDefaults(t *testing.T) {
	a, ok := Factory{}.NewAgent(nil, booking.AttemptParams{BaseURL: "https://app.octivfitness.com"}).(*Agent)
	require.True(t, ok)
	assert.Equal(t, defaultLoginTimeout, a.LoginTimeout)
	assert.Equal(t, defaultConfirmTimeout, a.ConfirmTimeout)
	assert.NotNil(t, a.Now)
	assert.NotNil(t, a.Logger)
}

func TestReserveWithoutConfiguredClass(t *testing.T) {
	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	a := Factory{Now: func() time.Time { return monday }}.NewAgent(nil, booking.AttemptParams{DaysBeforeBookable: 1})

	sel := booking.ClassSelection{Classes: map[string][]booking.ClassSlot{
		"monday": {{Name: "Yoga", Time: "18:00"}},
	}}
	// the target day is a tuesday, no browser is touched
	_, err := a.Reserve(context.Background(), sel)
	assert.ErrorIs(t, err, booking.ErrNoMatchingClass)
}

func TestNavigateRejectsBadBookingTime(t *testing.T) {
	a := Factory{}.NewAgent(nil, booking.AttemptParams{ExecutionBookingTime: "25:00"})
	assert.Error(t, a.NavigateToTargetDay(context.Background()))
}

func TestClickJS(t *testing.T) {
	js := clickJS(3, booking.ActionCancel)
	assert.Contains(t, js, "[3]")
	assert.Contains(t, js, `button.cancel`)
	assert.Contains(t, clickJS(0, booking.ActionBook), `button.book`)
	assert.Equal(t, `'a\'b'`, jsString("a'b"))
}
