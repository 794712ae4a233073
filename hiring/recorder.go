package hiring

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AttemptRecorder appends hire attempts to the audit trail.
type AttemptRecorder interface {
	Record(ctx context.Context, attempt Attempt)
}

// PGRecorder persists attempts into the append-only hire_attempts table.
// Recording happens after the coordinator has already decided the outcome,
// so a failed insert is logged and swallowed: the audit trail must never
// unwind a committed hire or change a returned result.
type PGRecorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRecorder wires a pgxpool-backed attempt recorder. A nil logger falls
// back to slog.Default.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *PGRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &PGRecorder{pool: pool, logger: logger}
}

// Record appends one attempt row.
func (r *PGRecorder) Record(ctx context.Context, attempt Attempt) {
	const insertSQL = `
		INSERT INTO hire_attempts (gig_id, bid_id, actor_id, outcome, detail, attempted_at)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, insertSQL,
		attempt.GigID,
		attempt.BidID,
		attempt.ActorID,
		string(attempt.Outcome),
		attempt.Detail,
		attempt.At,
	)
	if err != nil {
		r.logger.Error("record hire attempt failed",
			"gig_id", attempt.GigID,
			"bid_id", attempt.BidID,
			"outcome", attempt.Outcome,
			"error", err,
		)
	}
}
