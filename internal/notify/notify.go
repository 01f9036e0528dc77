// Package notify sends the outcome mails of a booking run.
package notify

import (
	"context"
	"log/slog"

	"github.com/example/slotbooker/internal/artifacts"
	"github.com/example/slotbooker/internal/domain/booking"
)

// Noop only logs what would have been sent. It is used when no SMTP host
// is configured.
type Noop struct {
	Logger *slog.Logger
}

func (n Noop) SendLogArtifact(ctx context.Context, a artifacts.Artifact, tag booking.Tag) error {
	n.log().Info("notify disabled: logs mail", "tag", string(tag), "artifact", a.Location)
	return nil
}

func (n Noop) SendBookingSucceeded(ctx context.Context, timeSlot, classSlot string) error {
	n.log().Info("notify disabled: booking succeeded mail", "time_slot", timeSlot, "class_slot", classSlot)
	return nil
}

func (n Noop) SendBookingFailed(ctx context.Context) error {
	n.log().Info("notify disabled: booking failed mail")
	return nil
}

func (n Noop) log() *slog.Logger {
	if n.Logger == nil {
		return slog.Default()
	}
	return n.Logger
}
