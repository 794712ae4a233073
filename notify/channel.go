package notify

import "context"

// Delivery reports what happened to a notification.
type Delivery string

const (
	// Delivered means the event was handed to a live channel.
	Delivered Delivery = "delivered"
	// Skipped means the recipient had no reachable channel. Not an error:
	// delivery is at-most-once and transient, the recipient learns the
	// outcome from a normal state read on next visit.
	Skipped Delivery = "skipped"
)

// HiredEvent is the payload pushed to a freelancer when one of their bids
// wins a gig. Consumed by a presentation layer outside this package.
type HiredEvent struct {
	GigID     string `json:"gigId"`
	GigTitle  string `json:"gigTitle"`
	GigBudget int64  `json:"gigBudget"`
	BidPrice  int64  `json:"bidPrice"`
	Message   string `json:"message"`
}

// Channel is an opaque handle to a live delivery path for one connected
// user. Implementations wrap whatever transport the edge uses (websocket,
// SSE); this package only relies on the push contract.
type Channel interface {
	// ID uniquely identifies this handle so a stale unregister for an
	// already-replaced connection can be told apart from the live one.
	ID() string
	// Push hands the event to the transport for best-effort delivery.
	Push(ctx context.Context, event HiredEvent) error
}
