package notify

import (
	"context"
	"log/slog"
)

// Dispatcher resolves whether a user has a live channel and pushes events to
// it. Delivery is best-effort: a missing channel or a failed push is logged
// and reported as Skipped, never surfaced as an error to the caller.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher builds a Dispatcher over the given registry. A nil logger
// falls back to slog.Default.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Notify pushes the event to the user's live channel if one is registered.
// At-most-once: no retry, no queuing, no persistence of missed events.
func (d *Dispatcher) Notify(ctx context.Context, userID string, event HiredEvent) Delivery {
	ch, ok := d.registry.Lookup(userID)
	if !ok {
		d.logger.Info("notification skipped, user offline",
			"user_id", userID,
			"gig_id", event.GigID,
		)
		return Skipped
	}

	if err := ch.Push(ctx, event); err != nil {
		d.logger.Warn("notification push failed",
			"user_id", userID,
			"gig_id", event.GigID,
			"channel_id", ch.ID(),
			"error", err,
		)
		return Skipped
	}

	d.logger.Info("notification delivered",
		"user_id", userID,
		"gig_id", event.GigID,
		"channel_id", ch.ID(),
	)
	return Delivered
}
