package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gigflow/hiring"
)

// Poster keeps opening fresh gigs for the seeded owner so hirers always have
// something to fight over.
func Poster(ctx context.Context, pool *pgxpool.Pool, ownerID string, stop <-chan struct{}) error {
	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = pool.Exec(ctx, `INSERT INTO gigs (owner_id, title, description, budget, status)
                               VALUES ($1,$2,'stress gig',$3,'open')`,
			ownerID, fmt.Sprintf("Stress gig %d-%d", i, rand.Int63()), 100+rand.Int63n(900))
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Bidder places pending bids on random open gigs. The subselect guard keeps
// bids off gigs that closed between pick and insert.
func Bidder(ctx context.Context, pool *pgxpool.Pool, freelancerID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = pool.Exec(ctx, `INSERT INTO bids (gig_id, freelancer_id, message, price, status)
                               SELECT id, $1, 'pick me', $2, 'pending'
                               FROM gigs WHERE status='open' ORDER BY random() LIMIT 1`,
			freelancerID, 50+rand.Int63n(200))
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Hirer picks random pending bids on the owner's open gigs and drives the
// coordinator at them. Conflicts and not-founds are losing a race, not a
// failure; anything the coordinator does not classify aborts the actor.
func Hirer(ctx context.Context, pool *pgxpool.Pool, svc *hiring.Service, ownerID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var bidID string
		err := pool.QueryRow(ctx, `SELECT b.id::text FROM bids b
                                   JOIN gigs g ON g.id = b.gig_id
                                   WHERE g.owner_id=$1 AND g.status='open' AND b.status='pending'
                                   ORDER BY random() LIMIT 1`, ownerID).Scan(&bidID)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				// backend may have been terminated mid-query; back off and retry
				time.Sleep(50 * time.Millisecond)
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		if _, err := svc.Hire(ctx, ownerID, bidID); err != nil {
			var hireErr *hiring.HireError
			if !errors.As(err, &hireErr) {
				return fmt.Errorf("hirer: %w", err)
			}
		}
		time.Sleep(time.Duration(5+rand.Intn(20)) * time.Millisecond)
	}
}

// OutboxWorker consumes pending outbox messages with SKIP LOCKED and marks
// them processed or retried, the way a delivery relay would.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status='pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			// simulate random delivery failure
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1, last_attempt=NOW() WHERE id=$1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status='processed', last_attempt=NOW() WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}
