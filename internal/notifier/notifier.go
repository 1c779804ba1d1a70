// Package notifier turns menu and order events into messages for staff
// channels such as Telegram and email.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pkgkafka "github.com/comeencasa/restaurant-api/pkg/kafka"
)

// Message is a channel-neutral notification.
type Message struct {
	Subject string
	Body    string
}

// Sender delivers a message through one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Dispatcher formats events and fans them out to every sender.
type Dispatcher struct {
	senders []Sender
	logger  *slog.Logger
}

// NewDispatcher returns a dispatcher. With no senders every event is
// formatted, logged and dropped.
func NewDispatcher(senders []Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{senders: senders, logger: logger}
}

// Senders returns the configured sender names.
func (d *Dispatcher) Senders() []string {
	names := make([]string, len(d.senders))
	for i, s := range d.senders {
		names[i] = s.Name()
	}
	return names
}

// Handle is a pkgkafka.Handler. It returns an error when any sender fails so
// the consumer retries the event.
func (d *Dispatcher) Handle(ctx context.Context, evt *pkgkafka.Event) error {
	msg, ok, err := Format(evt)
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to format notification",
			slog.String("event_id", evt.EventID),
			slog.String("event_type", evt.EventType),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !ok {
		d.logger.DebugContext(ctx, "no notification for event type",
			slog.String("event_type", evt.EventType),
		)
		return nil
	}

	var errs []error
	for _, s := range d.senders {
		if err := s.Send(ctx, msg); err != nil {
			d.logger.ErrorContext(ctx, "notification failed",
				slog.String("sender", s.Name()),
				slog.String("event_id", evt.EventID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		d.logger.InfoContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event_id", evt.EventID),
			slog.String("event_type", evt.EventType),
		)
	}
	return errors.Join(errs...)
}
