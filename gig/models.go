package gig

import "time"

// Status enumerates the lifecycle states of a gig.
type Status string

const (
	StatusOpen     Status = "open"
	StatusAssigned Status = "assigned"
)

// Gig is the domain representation of a posted unit of work. It mirrors the
// gigs table and carries no JSON annotations so it can be reused by different
// presentation layers.
type Gig struct {
	ID          string
	OwnerID     string
	Title       string
	Description string
	Budget      int64
	Status      Status
	HiredBidID  *string
	HiredAt     *time.Time
	CreatedAt   time.Time
}

// CreateParams contains the write parameters for posting a new gig.
type CreateParams struct {
	OwnerID     string
	Title       string
	Description string
	Budget      int64
}
