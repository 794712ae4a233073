package hiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"gigflow/notify"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// HireRepository defines the transactional data access the coordinator needs.
type HireRepository interface {
	GetBidGigID(ctx context.Context, tx pgx.Tx, bidID string) (string, error)
	LockGig(ctx context.Context, tx pgx.Tx, gigID string) (GigState, error)
	GetBid(ctx context.Context, tx pgx.Tx, bidID string) (BidState, error)
	ExecuteHireTx(ctx context.Context, tx pgx.Tx, params CommitParams) error
	EnqueueHiredOutbox(ctx context.Context, tx pgx.Tx, gig GigState, bid BidState, hiredAt time.Time) error
}

// Notifier pushes the hired event to the winning freelancer, best effort.
type Notifier interface {
	Notify(ctx context.Context, userID string, event notify.HiredEvent) notify.Delivery
}

// Service is the assignment coordinator: it executes the exclusive-hire
// protocol that lets exactly one bid on a gig transition to hired even under
// concurrent attempts.
type Service struct {
	pool     TxBeginner
	repo     HireRepository
	recorder AttemptRecorder
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires the coordinator. A nil repo falls back to the pgx-backed
// implementation; recorder and notifier may be nil when audit or push
// delivery is not wanted (tests, tooling).
func NewService(pool TxBeginner, repo HireRepository, recorder AttemptRecorder, notifier Notifier, logger *slog.Logger) *Service {
	if repo == nil {
		repo = NewRepository()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		pool:     pool,
		repo:     repo,
		recorder: recorder,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the timestamp source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Hire attempts to assign the gig behind bidID to that bid on behalf of
// actorID. Exactly one concurrent Hire per gig can succeed; every other
// attempt returns a *HireError whose Outcome explains why. One audit attempt
// is recorded per invocation regardless of outcome, and on success the
// winning freelancer is notified after the transaction has committed.
func (s *Service) Hire(ctx context.Context, actorID, bidID string) (Result, error) {
	gig, bid, result, hireErr := s.execute(ctx, actorID, bidID)

	s.record(ctx, Attempt{
		GigID:   gig.ID,
		BidID:   bidID,
		ActorID: actorID,
		Outcome: outcomeOf(hireErr),
		Detail:  detailOf(hireErr),
		At:      s.now().UTC(),
	})

	if hireErr != nil {
		return Result{}, hireErr
	}

	// Post-commit side effect: failure here must not change the Success
	// outcome already committed.
	if s.notifier != nil {
		delivery := s.notifier.Notify(ctx, bid.FreelancerID, notify.HiredEvent{
			GigID:     gig.ID,
			GigTitle:  gig.Title,
			GigBudget: gig.Budget,
			BidPrice:  bid.Price,
			Message:   fmt.Sprintf("You have been hired for %q!", gig.Title),
		})
		s.logger.Info("hire committed",
			"gig_id", gig.ID,
			"bid_id", bid.ID,
			"freelancer_id", bid.FreelancerID,
			"delivery", delivery,
		)
	}

	return result, nil
}

// execute runs the validation chain and the atomic transition inside one
// transaction. It returns whatever gig/bid state it managed to read so the
// caller can audit and notify; on failure the returned *HireError carries
// the outcome and diagnostic payload.
func (s *Service) execute(ctx context.Context, actorID, bidID string) (GigState, BidState, Result, *HireError) {
	if bidID == "" {
		return GigState{}, BidState{}, Result{}, notFoundError("missing bid id")
	}
	if actorID == "" {
		return GigState{}, BidState{}, Result{}, unauthorizedError("missing actor id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return GigState{}, BidState{}, Result{}, systemError("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	gigID, err := s.repo.GetBidGigID(ctx, tx, bidID)
	if err != nil {
		if errors.Is(err, ErrBidNotFound) {
			return GigState{}, BidState{}, Result{}, notFoundError("bid not found")
		}
		return GigState{}, BidState{}, Result{}, systemError("resolve bid", err)
	}

	gig, err := s.repo.LockGig(ctx, tx, gigID)
	if err != nil {
		if errors.Is(err, ErrGigNotFound) {
			return GigState{}, BidState{}, Result{}, notFoundError("gig not found")
		}
		return GigState{}, BidState{}, Result{}, systemError("lock gig", err)
	}

	if gig.OwnerID != actorID {
		return gig, BidState{}, Result{}, unauthorizedError("only the gig owner can hire")
	}

	if gig.Status != "open" {
		return gig, BidState{}, Result{}, &HireError{
			Outcome:    OutcomeConflict,
			Reason:     fmt.Sprintf("gig is no longer open (status: %s)", gig.Status),
			GigStatus:  gig.Status,
			HiredBidID: gig.HiredBidID,
		}
	}

	bid, err := s.repo.GetBid(ctx, tx, bidID)
	if err != nil {
		if errors.Is(err, ErrBidNotFound) {
			return gig, BidState{}, Result{}, notFoundError("bid not found")
		}
		return gig, BidState{}, Result{}, systemError("load bid", err)
	}

	if bid.Status != "pending" {
		return gig, bid, Result{}, &HireError{
			Outcome:   OutcomeConflict,
			Reason:    fmt.Sprintf("bid is no longer pending (status: %s)", bid.Status),
			BidStatus: bid.Status,
		}
	}

	hiredAt := s.now().UTC()
	params := CommitParams{GigID: gig.ID, BidID: bid.ID, HiredAt: hiredAt}

	if err := s.repo.ExecuteHireTx(ctx, tx, params); err != nil {
		switch {
		case errors.Is(err, ErrGigNotOpen):
			return gig, bid, Result{}, &HireError{Outcome: OutcomeConflict, Reason: "gig was assigned concurrently", GigStatus: "assigned"}
		case errors.Is(err, ErrBidNotPending):
			return gig, bid, Result{}, &HireError{Outcome: OutcomeConflict, Reason: "bid was resolved concurrently", BidStatus: bid.Status}
		default:
			return gig, bid, Result{}, systemError("apply hire transition", err)
		}
	}

	if err := s.repo.EnqueueHiredOutbox(ctx, tx, gig, bid, hiredAt); err != nil {
		return gig, bid, Result{}, systemError("enqueue hired event", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return gig, bid, Result{}, systemError("commit hire", err)
	}

	return gig, bid, Result{
		GigID:        gig.ID,
		BidID:        bid.ID,
		FreelancerID: bid.FreelancerID,
		HiredAt:      hiredAt,
	}, nil
}

func (s *Service) record(ctx context.Context, attempt Attempt) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, attempt)
}

func outcomeOf(err *HireError) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	return err.Outcome
}

func detailOf(err *HireError) string {
	if err == nil {
		return ""
	}
	return err.Reason
}
