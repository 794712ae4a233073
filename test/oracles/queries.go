package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns the invariants checked against the live database while the
// hire storm runs. Each query returns rows only when the invariant is
// violated.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_hired_bid_per_gig",
			SQL: `SELECT gig_id, COUNT(*) FROM bids
                  WHERE status = 'hired'
                  GROUP BY gig_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_assigned_gig_links_hired_bid",
			SQL: `SELECT g.id FROM gigs g
                  LEFT JOIN bids b ON b.id = g.hired_bid_id
                  WHERE g.status = 'assigned'
                    AND (b.id IS NULL OR b.gig_id <> g.id OR b.status <> 'hired')`,
		},
		{
			Name: "O3_hired_bid_requires_assignment",
			SQL: `SELECT b.id FROM bids b
                  JOIN gigs g ON g.id = b.gig_id
                  WHERE b.status = 'hired'
                    AND (g.status <> 'assigned' OR g.hired_bid_id <> b.id)`,
		},
		{
			Name: "O4_rejected_bids_on_assigned_gig",
			SQL: `SELECT b.id FROM bids b
                  JOIN gigs g ON g.id = b.gig_id
                  WHERE g.status = 'assigned'
                    AND b.id <> g.hired_bid_id
                    AND b.status = 'hired'`,
		},
		{
			Name: "O5_single_success_attempt_per_gig",
			SQL: `SELECT gig_id, COUNT(*) FROM hire_attempts
                  WHERE outcome = 'SUCCESS'
                  GROUP BY gig_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O6_single_hired_event_per_gig",
			SQL: `SELECT payload->>'gig_id', COUNT(*) FROM outbox
                  WHERE topic = 'gig.hired'
                  GROUP BY payload->>'gig_id' HAVING COUNT(*) > 1`,
		},
		{
			Name: "O7_success_implies_assignment",
			SQL: `SELECT a.gig_id FROM hire_attempts a
                  JOIN gigs g ON g.id = a.gig_id
                  WHERE a.outcome = 'SUCCESS' AND g.status <> 'assigned'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample
// row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
