// Package octiv drives the Octiv fitness web app through a browser session:
// log in, move the day picker to the bookable day and reserve a class.
package octiv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/example/slotbooker/internal/browser"
	"github.com/example/slotbooker/internal/domain/booking"
	"github.com/example/slotbooker/internal/orchestrator"
)

const (
	selUsername = `input[type="email"], input[name="username"]`
	selPassword = `input[type="password"]`
	selSubmit   = `button[type="submit"]`
	selSchedule = `.schedule, [data-test="schedule"]`
	selNextDay  = `[data-test="next-day"], button.next-day`
	selConfirm  = `.booking-confirmed, [data-test="booking-confirmed"]`

	classCard = `.class-card, [data-test="class-card"]`

	defaultLoginTimeout   = 15 * time.Second
	defaultConfirmTimeout = 10 * time.Second
)

// Factory builds one Agent per attempt.
type Factory struct {
	Logger         *slog.Logger
	LoginTimeout   time.Duration
	ConfirmTimeout time.Duration
	Now            func() time.Time
}

func (f Factory) NewAgent(s *browser.Session, p booking.AttemptParams) orchestrator.Agent {
	a := &Agent{
		Session:        s,
		Params:         p,
		Logger:         f.Logger,
		LoginTimeout:   f.LoginTimeout,
		ConfirmTimeout: f.ConfirmTimeout,
		Now:            f.Now,
	}
	if a.Logger == nil {
		a.Logger = slog.Default()
	}
	if a.LoginTimeout <= 0 {
		a.LoginTimeout = defaultLoginTimeout
	}
	if a.ConfirmTimeout <= 0 {
		a.ConfirmTimeout = defaultConfirmTimeout
	}
	if a.Now == nil {
		a.Now = time.Now
	}
	return a
}

type Agent struct {
	Session        *browser.Session
	Params         booking.AttemptParams
	Logger         *slog.Logger
	LoginTimeout   time.Duration
	ConfirmTimeout time.Duration
	Now            func() time.Time

	targetDay time.Time
}

// Authenticate reports failed=true when the app does not accept the
// credentials. err is only set when the page could not be driven at all.
func (a *Agent) Authenticate(ctx context.Context, username, secret string) (bool, error) {
	loginURL := strings.TrimRight(a.Params.BaseURL, "/") + "/login"

	// the session is shared between attempts; start every login signed out
	err := browser.Run(ctx, a.Session,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.ClearBrowserCookies().Do(ctx)
		}),
		chromedp.Navigate(loginURL),
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, username, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, secret, chromedp.ByQuery),
		chromedp.Click(selSubmit, chromedp.ByQuery),
	)
	if err != nil {
		return false, fmt.Errorf("login form: %w", err)
	}

	wctx, cancel := context.WithTimeout(ctx, a.LoginTimeout)
	defer cancel()
	if err := browser.Run(wctx, a.Session, chromedp.WaitVisible(selSchedule, chromedp.ByQuery)); err != nil {
		if wctx.Err() != nil && ctx.Err() == nil && !errors.Is(err, booking.ErrSession) {
			a.Logger.Info("login not accepted", "user", username)
			return true, nil
		}
		return false, fmt.Errorf("wait for schedule: %w", err)
	}
	a.Logger.Info("logged in", "user", username)
	return false, nil
}

// NavigateToTargetDay waits for the booking time and then moves the day
// picker DaysBeforeBookable days ahead.
func (a *Agent) NavigateToTargetDay(ctx context.Context) error {
	if a.Params.ExecutionBookingTime != "" {
		bt, err := ParseBookingTime(a.Params.ExecutionBookingTime)
		if err != nil {
			return err
		}
		if wait := bt.WaitUntil(a.Now()); wait > 0 {
			a.Logger.Info("waiting for booking time", "booking_time", a.Params.ExecutionBookingTime, "wait", wait.String())
			if err := sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	a.targetDay = TargetDate(a.Now(), a.Params.DaysBeforeBookable)
	for i := 0; i < a.Params.DaysBeforeBookable; i++ {
		if err := browser.Run(ctx, a.Session,
			chromedp.Click(selNextDay, chromedp.ByQuery),
			chromedp.WaitReady(selSchedule, chromedp.ByQuery),
		); err != nil {
			return fmt.Errorf("switch day %d/%d: %w", i+1, a.Params.DaysBeforeBookable, err)
		}
	}
	a.Logger.Info("switched day", "day", a.targetDay.Format("Monday 2006-01-02"))
	return nil
}

// Reserve books (or cancels) the first wanted class the target day offers.
func (a *Agent) Reserve(ctx context.Context, sel booking.ClassSelection) (booking.Reservation, error) {
	day := a.targetDay
	if day.IsZero() {
		day = TargetDate(a.Now(), a.Params.DaysBeforeBookable)
	}
	wanted := sel.For(day.Weekday())
	if len(wanted) == 0 {
		return booking.Reservation{}, fmt.Errorf("%w: nothing configured for %s", booking.ErrNoMatchingClass, day.Weekday())
	}

	var offered []booking.OfferedSlot
	if err := browser.Run(ctx, a.Session,
		chromedp.WaitReady(selSchedule, chromedp.ByQuery),
		chromedp.Evaluate(listClassesJS, &offered),
	); err != nil {
		return booking.Reservation{}, fmt.Errorf("list classes: %w", err)
	}
	slot, ok := booking.ChooseSlot(wanted, offered)
	if !ok {
		return booking.Reservation{}, fmt.Errorf("%w: %d classes offered on %s", booking.ErrNoMatchingClass, len(offered), day.Format("2006-01-02"))
	}

	action := sel.Action
	if action == "" {
		action = booking.ActionBook
	}
	var clicked bool
	if err := browser.Run(ctx, a.Session, chromedp.Evaluate(clickJS(slot.Index, action), &clicked)); err != nil {
		return booking.Reservation{}, fmt.Errorf("%s %s: %w", action, slot.Name, err)
	}
	if !clicked {
		return booking.Reservation{}, fmt.Errorf("%w: no %s button for %s at %s", booking.ErrNotReserved, action, slot.Name, slot.Time)
	}

	cctx, cancel := context.WithTimeout(ctx, a.ConfirmTimeout)
	defer cancel()
	if err := browser.Run(cctx, a.Session, chromedp.WaitVisible(selConfirm, chromedp.ByQuery)); err != nil {
		if errors.Is(err, booking.ErrSession) {
			return booking.Reservation{}, err
		}
		return booking.Reservation{}, fmt.Errorf("%w: %s at %s not confirmed: %v", booking.ErrNotReserved, slot.Name, slot.Time, err)
	}

	c := booking.ClassSlot{Name: slot.Name, Time: slot.Time}
	return booking.Reservation{Done: true, ClassSlot: c.Label(), TimeSlot: booking.NormalizeTime(slot.Time)}, nil
}

var listClassesJS = `Array.from(document.querySelectorAll(` + jsString(classCard) + `)).map(function (el, i) {
	var name = el.querySelector('.class-name, [data-test="class-name"]');
	var time = el.querySelector('.class-time, [data-test="class-time"]');
	return {
		index: i,
		name: name ? name.textContent.trim() : '',
		time: time ? time.textContent.trim().split(/[\s-]/)[0] : ''
	};
})`

func clickJS(index int, action booking.Action) string {
	btn := `[data-test="book"], button.book`
	if action == booking.ActionCancel {
		btn = `[data-test="cancel"], button.cancel`
	}
	return fmt.Sprintf(`(function () {
	var card = document.querySelectorAll(%s)[%d];
	if (!card) { return false; }
	var btn = card.querySelector(%s);
	if (!btn || btn.disabled) { return false; }
	btn.click();
	return true;
})()`, jsString(classCard), index, jsString(btn))
}

func jsString(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`) + "'"
}
