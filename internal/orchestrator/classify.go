package orchestrator

import (
	"errors"
	"os/exec"

	"github.com/example/slotbooker/internal/domain/booking"
)

// Classify maps an attempt error onto an outcome. It never fails: nil is a
// success, session level errors are infrastructure failures and everything
// else is generic. The loop treats both failure kinds the same.
func Classify(err error) booking.Outcome {
	var execErr *exec.Error
	switch {
	case err == nil:
		return booking.OutcomeSuccess
	case errors.Is(err, booking.ErrSession), errors.As(err, &execErr):
		return booking.OutcomeInfrastructureFailure
	default:
		return booking.OutcomeGenericFailure
	}
}
