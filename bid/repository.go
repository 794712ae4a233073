package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested bid does not exist.
var ErrNotFound = errors.New("bid: not found")

// Repository abstracts bid data access for the service layer.
type Repository interface {
	Create(ctx context.Context, params SubmitParams) (Bid, error)
	GetByID(ctx context.Context, id string) (Bid, error)
	ListForGig(ctx context.Context, gigID string) ([]Bid, error)
	ListForFreelancer(ctx context.Context, freelancerID string) ([]Bid, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const bidColumns = `id, gig_id, freelancer_id, message, price, status::text, hired_at, created_at`

// Create inserts a new pending bid.
func (r *PGRepository) Create(ctx context.Context, params SubmitParams) (Bid, error) {
	const insertSQL = `
		INSERT INTO bids (gig_id, freelancer_id, message, price, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING ` + bidColumns

	b, err := scanBid(r.pool.QueryRow(ctx, insertSQL, params.GigID, params.FreelancerID, params.Message, params.Price))
	if err != nil {
		return Bid{}, fmt.Errorf("bid: create: %w", err)
	}
	return b, nil
}

// GetByID fetches a bid by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Bid, error) {
	const query = `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	b, err := scanBid(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bid{}, ErrNotFound
		}
		return Bid{}, fmt.Errorf("bid: query by id: %w", err)
	}
	return b, nil
}

// ListForGig returns every bid placed on the given gig, newest first.
func (r *PGRepository) ListForGig(ctx context.Context, gigID string) ([]Bid, error) {
	const query = `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE gig_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, gigID)
}

// ListForFreelancer returns every bid placed by the given freelancer.
func (r *PGRepository) ListForFreelancer(ctx context.Context, freelancerID string) ([]Bid, error) {
	const query = `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE freelancer_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, freelancerID)
}

func (r *PGRepository) list(ctx context.Context, query string, arg any) ([]Bid, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("bid: list: %w", err)
	}
	defer rows.Close()

	bids := make([]Bid, 0, 8)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("bid: scan row: %w", err)
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid: iterate rows: %w", err)
	}
	return bids, nil
}

func scanBid(row pgx.Row) (Bid, error) {
	var b Bid
	err := row.Scan(
		&b.ID,
		&b.GigID,
		&b.FreelancerID,
		&b.Message,
		&b.Price,
		&b.Status,
		&b.HiredAt,
		&b.CreatedAt,
	)
	if err != nil {
		return Bid{}, err
	}
	return b, nil
}
