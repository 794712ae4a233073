package bid

import "time"

// Status enumerates the lifecycle states of a bid.
type Status string

const (
	StatusPending  Status = "pending"
	StatusHired    Status = "hired"
	StatusRejected Status = "rejected"
)

// Bid is a freelancer's proposal against a gig. Mirrors the bids table.
type Bid struct {
	ID           string
	GigID        string
	FreelancerID string
	Message      string
	Price        int64
	Status       Status
	HiredAt      *time.Time
	CreatedAt    time.Time
}

// SubmitParams contains the write parameters for placing a bid.
type SubmitParams struct {
	GigID        string
	FreelancerID string
	Message      string
	Price        int64
}
