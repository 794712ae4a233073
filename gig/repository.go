package gig

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested gig does not exist.
var ErrNotFound = errors.New("gig: not found")

// Repository abstracts gig data access for the service layer.
type Repository interface {
	Create(ctx context.Context, params CreateParams) (Gig, error)
	GetByID(ctx context.Context, id string) (Gig, error)
	SearchOpen(ctx context.Context, titleQuery string) ([]Gig, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Gig, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const gigColumns = `id, owner_id, title, description, budget, status::text, hired_bid_id::text, hired_at, created_at`

// Create inserts a new open gig.
func (r *PGRepository) Create(ctx context.Context, params CreateParams) (Gig, error) {
	const insertSQL = `
		INSERT INTO gigs (owner_id, title, description, budget, status)
		VALUES ($1, $2, $3, $4, 'open')
		RETURNING ` + gigColumns

	g, err := scanGig(r.pool.QueryRow(ctx, insertSQL, params.OwnerID, params.Title, params.Description, params.Budget))
	if err != nil {
		return Gig{}, fmt.Errorf("gig: create: %w", err)
	}
	return g, nil
}

// GetByID fetches a gig by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Gig, error) {
	const query = `SELECT ` + gigColumns + ` FROM gigs WHERE id = $1`

	g, err := scanGig(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Gig{}, ErrNotFound
		}
		return Gig{}, fmt.Errorf("gig: query by id: %w", err)
	}
	return g, nil
}

// SearchOpen returns open gigs, optionally filtered by a case-insensitive
// title substring.
func (r *PGRepository) SearchOpen(ctx context.Context, titleQuery string) ([]Gig, error) {
	const query = `
		SELECT ` + gigColumns + `
		FROM gigs
		WHERE status = 'open'
		  AND ($1 = '' OR title ILIKE '%' || $1 || '%')
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, titleQuery)
	if err != nil {
		return nil, fmt.Errorf("gig: search: %w", err)
	}
	defer rows.Close()

	return collectGigs(rows)
}

// ListByOwner returns every gig posted by the given owner, newest first.
func (r *PGRepository) ListByOwner(ctx context.Context, ownerID string) ([]Gig, error) {
	const query = `
		SELECT ` + gigColumns + `
		FROM gigs
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("gig: list by owner: %w", err)
	}
	defer rows.Close()

	return collectGigs(rows)
}

func collectGigs(rows pgx.Rows) ([]Gig, error) {
	gigs := make([]Gig, 0, 8)
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, fmt.Errorf("gig: scan row: %w", err)
		}
		gigs = append(gigs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("gig: iterate rows: %w", err)
	}
	return gigs, nil
}

func scanGig(row pgx.Row) (Gig, error) {
	var g Gig
	err := row.Scan(
		&g.ID,
		&g.OwnerID,
		&g.Title,
		&g.Description,
		&g.Budget,
		&g.Status,
		&g.HiredBidID,
		&g.HiredAt,
		&g.CreatedAt,
	)
	if err != nil {
		return Gig{}, err
	}
	return g, nil
}
