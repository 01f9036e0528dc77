package octiv

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// BookingTime is a local time of day such as "23:59:59.50".
type BookingTime struct {
	Hour, Minute, Second int
	Fraction             time.Duration
}

// ParseBookingTime accepts HH:MM, HH:MM:SS and HH:MM:SS.ff.
func ParseBookingTime(s string) (BookingTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BookingTime{}, fmt.Errorf("empty booking time")
	}
	var frac string
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s, frac = s[:i], s[i+1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return BookingTime{}, fmt.Errorf("invalid booking time %q (want HH:MM[:SS[.ff]])", s)
	}
	nums := make([]int, 3)
	limits := []int{23, 59, 59}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > limits[i] {
			return BookingTime{}, fmt.Errorf("invalid booking time %q", s)
		}
		nums[i] = n
	}
	bt := BookingTime{Hour: nums[0], Minute: nums[1], Second: nums[2]}
	if frac != "" {
		n, err := strconv.Atoi(frac)
		if err != nil || n < 0 {
			return BookingTime{}, fmt.Errorf("invalid booking time fraction %q", frac)
		}
		// ".5" is half a second, ".50" too
		d := time.Second
		for range len(frac) {
			d /= 10
		}
		bt.Fraction = time.Duration(n) * d
	}
	return bt, nil
}

// On returns the booking time on the calendar day of t, in t's location.
func (b BookingTime) On(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, b.Hour, b.Minute, b.Second, 0, t.Location()).Add(b.Fraction)
}

// WaitUntil is how long to wait from now until the booking time today. A
// booking time that has already passed today does not wait.
func (b BookingTime) WaitUntil(now time.Time) time.Duration {
	d := b.On(now).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// SessionBudget extends a browser lifetime bound by the wait until the
// booking time, so the bound only starts counting once booking can begin.
// A zero bound stays unbounded.
func SessionBudget(bookingTime string, now time.Time, bound time.Duration) (time.Duration, error) {
	if bound <= 0 || strings.TrimSpace(bookingTime) == "" {
		return bound, nil
	}
	bt, err := ParseBookingTime(bookingTime)
	if err != nil {
		return 0, err
	}
	return bound + bt.WaitUntil(now), nil
}

// TargetDate is the calendar day daysAhead days after now.
func TargetDate(now time.Time, daysAhead int) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d+daysAhead, 0, 0, 0, 0, now.Location())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
