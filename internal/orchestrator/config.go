package orchestrator

import (
	"errors"
	"strings"

	"github.com/example/slotbooker/internal/domain/booking"
)

const DefaultRetryLimit = 3

// RunConfig holds everything one run needs. It is built once at process
// start and passed by value.
type RunConfig struct {
	Username             string
	Password             string
	DaysBeforeBookable   int
	ExecutionBookingTime string
	RetryLimit           int
	BaseURL              string
	DriverHint           string
	Classes              booking.ClassSelection
	TestMode             bool
}

func (c RunConfig) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Username) == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if !c.TestMode && c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if c.DaysBeforeBookable < 0 {
		errs = append(errs, errors.New("days before bookable must not be negative"))
	}
	if c.RetryLimit < 1 {
		errs = append(errs, errors.New("retry limit must be at least 1"))
	}
	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	return errors.Join(errs...)
}

func (c RunConfig) attemptParams() booking.AttemptParams {
	return booking.AttemptParams{
		DaysBeforeBookable:   c.DaysBeforeBookable,
		BaseURL:              c.BaseURL,
		ExecutionBookingTime: c.ExecutionBookingTime,
	}
}
