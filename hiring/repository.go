package hiring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrBidNotFound is returned when no bid row exists for the identifier.
	ErrBidNotFound = errors.New("hiring: bid not found")
	// ErrGigNotFound is returned when the bid's parent gig row is missing.
	ErrGigNotFound = errors.New("hiring: gig not found")
	// ErrGigNotOpen is returned when the commit-time status check finds the
	// gig already assigned. The losing side of a race lands here.
	ErrGigNotOpen = errors.New("hiring: gig is not open")
	// ErrBidNotPending is returned when the target bid was already resolved.
	ErrBidNotPending = errors.New("hiring: bid is not pending")
)

// GigState is the slice of the gig row the coordinator reads under lock.
type GigState struct {
	ID         string
	OwnerID    string
	Title      string
	Budget     int64
	Status     string
	HiredBidID *string
}

// BidState is the slice of the bid row the coordinator validates.
type BidState struct {
	ID           string
	GigID        string
	FreelancerID string
	Price        int64
	Status       string
}

// CommitParams enumerates the writes of the assignment transaction.
type CommitParams struct {
	GigID   string
	BidID   string
	HiredAt time.Time
}

// Repository executes the transactional reads and writes of the hire
// protocol. All methods run inside the caller's transaction so the gig row
// lock taken by LockGig serializes every mutation on that gig.
type Repository struct{}

// NewRepository builds the pgx-backed hire repository.
func NewRepository() *Repository {
	return &Repository{}
}

// GetBidGigID resolves the parent gig of a bid without taking any lock; it
// only exists so the caller knows which gig row to lock.
func (r *Repository) GetBidGigID(ctx context.Context, tx pgx.Tx, bidID string) (string, error) {
	var gigID string
	err := tx.QueryRow(ctx, `SELECT gig_id::text FROM bids WHERE id = $1`, bidID).Scan(&gigID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrBidNotFound
		}
		return "", fmt.Errorf("hiring: resolve bid gig: %w", err)
	}
	return gigID, nil
}

// LockGig reads the gig row under FOR UPDATE. The row lock is the per-gig
// serialization boundary: concurrent hires on the same gig queue here, and
// the second one in observes the first one's committed writes.
func (r *Repository) LockGig(ctx context.Context, tx pgx.Tx, gigID string) (GigState, error) {
	const query = `
		SELECT id::text, owner_id::text, title, budget, status::text, hired_bid_id::text
		FROM gigs
		WHERE id = $1
		FOR UPDATE
	`
	var g GigState
	err := tx.QueryRow(ctx, query, gigID).Scan(&g.ID, &g.OwnerID, &g.Title, &g.Budget, &g.Status, &g.HiredBidID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return GigState{}, ErrGigNotFound
		}
		return GigState{}, fmt.Errorf("hiring: lock gig: %w", err)
	}
	return g, nil
}

// GetBid re-reads the bid after the gig lock is held. Bid statuses only
// change under that lock, so this read is stable for the rest of the
// transaction.
func (r *Repository) GetBid(ctx context.Context, tx pgx.Tx, bidID string) (BidState, error) {
	const query = `
		SELECT id::text, gig_id::text, freelancer_id::text, price, status::text
		FROM bids
		WHERE id = $1
	`
	var b BidState
	err := tx.QueryRow(ctx, query, bidID).Scan(&b.ID, &b.GigID, &b.FreelancerID, &b.Price, &b.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BidState{}, ErrBidNotFound
		}
		return BidState{}, fmt.Errorf("hiring: load bid: %w", err)
	}
	return b, nil
}

// ExecuteHireTx performs the three writes of the assignment: hire the chosen
// bid, assign the gig, reject the remaining pending bids. Each status write
// re-checks the state it expects, so even if the lock discipline were ever
// violated the transition could not half-apply.
func (r *Repository) ExecuteHireTx(ctx context.Context, tx pgx.Tx, params CommitParams) error {
	tag, err := tx.Exec(ctx, `
		UPDATE bids
		SET status = 'hired', hired_at = $2
		WHERE id = $1 AND status = 'pending'
	`, params.BidID, params.HiredAt)
	if err != nil {
		return fmt.Errorf("hiring: hire bid: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrBidNotPending
	}

	tag, err = tx.Exec(ctx, `
		UPDATE gigs
		SET status = 'assigned', hired_bid_id = $2, hired_at = $3
		WHERE id = $1 AND status = 'open'
	`, params.GigID, params.BidID, params.HiredAt)
	if err != nil {
		return fmt.Errorf("hiring: assign gig: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return ErrGigNotOpen
	}

	if _, err := tx.Exec(ctx, `
		UPDATE bids
		SET status = 'rejected', hired_at = NULL
		WHERE gig_id = $1 AND id <> $2 AND status = 'pending'
	`, params.GigID, params.BidID); err != nil {
		return fmt.Errorf("hiring: reject losing bids: %w", err)
	}

	return nil
}

// EnqueueHiredOutbox writes the gig.hired event into the transactional
// outbox so downstream consumers observe the assignment exactly when it
// commits.
func (r *Repository) EnqueueHiredOutbox(ctx context.Context, tx pgx.Tx, gig GigState, bid BidState, hiredAt time.Time) error {
	payload, err := json.Marshal(map[string]any{
		"gig_id":        gig.ID,
		"bid_id":        bid.ID,
		"owner_id":      gig.OwnerID,
		"freelancer_id": bid.FreelancerID,
		"bid_price":     bid.Price,
		"hired_at":      hiredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("hiring: marshal outbox payload: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, payload) VALUES ('gig.hired', $1::jsonb)`, payload); err != nil {
		return fmt.Errorf("hiring: enqueue outbox: %w", err)
	}
	return nil
}
