package hiring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/sync/errgroup"

	"gigflow/notify"
)

func newTestService(store *memStore) (*Service, *captureRecorder, *captureNotifier) {
	recorder := &captureRecorder{}
	notifier := &captureNotifier{delivery: notify.Delivered}
	svc := NewService(store, &memRepo{store: store}, recorder, notifier, nil).
		WithClock(func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) })
	return svc, recorder, notifier
}

func TestHire_Success(t *testing.T) {
	store := newMemStore("owner", "b1", "b2")
	svc, recorder, notifier := newTestService(store)

	res, err := svc.Hire(context.Background(), "owner", "b1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if res.GigID != "g1" || res.BidID != "b1" || res.FreelancerID != "freelancer-b1" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.HiredAt.IsZero() {
		t.Fatal("expected hired timestamp")
	}

	gig := store.snapshotGig()
	if gig.Status != "assigned" || gig.HiredBidID == nil || *gig.HiredBidID != "b1" {
		t.Fatalf("gig not assigned to winner: %+v", gig)
	}
	if got := store.bidStatus("b1"); got != "hired" {
		t.Fatalf("expected winning bid hired, got %s", got)
	}
	if got := store.bidStatus("b2"); got != "rejected" {
		t.Fatalf("expected losing bid rejected, got %s", got)
	}
	if len(store.outbox) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(store.outbox))
	}

	attempts := recorder.all()
	if len(attempts) != 1 || attempts[0].Outcome != OutcomeSuccess {
		t.Fatalf("expected one Success attempt, got %+v", attempts)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
	event := notifier.calls[0].event
	if event.GigID != "g1" || event.GigTitle != "Build landing page" || event.GigBudget != 500 || event.BidPrice != 100 {
		t.Fatalf("unexpected event payload: %+v", event)
	}
	if event.Message == "" {
		t.Fatal("expected human-readable message")
	}
}

func TestHire_BidNotFound(t *testing.T) {
	store := newMemStore("owner", "b1")
	svc, recorder, notifier := newTestService(store)

	_, err := svc.Hire(context.Background(), "owner", "missing")
	assertOutcome(t, err, OutcomeNotFound)

	if store.snapshotGig().Status != "open" {
		t.Fatal("expected no writes on validation failure")
	}
	attempts := recorder.all()
	if len(attempts) != 1 || attempts[0].Outcome != OutcomeNotFound {
		t.Fatalf("expected one NotFound attempt, got %+v", attempts)
	}
	if len(notifier.calls) != 0 {
		t.Fatal("expected no notification on failure")
	}
}

func TestHire_GigNotFound(t *testing.T) {
	store := newMemStore("owner", "b1")
	store.bids["orphan"] = &BidState{ID: "orphan", GigID: "gone", FreelancerID: "f", Price: 10, Status: "pending"}
	svc, recorder, _ := newTestService(store)

	_, err := svc.Hire(context.Background(), "owner", "orphan")
	assertOutcome(t, err, OutcomeNotFound)
	if got := recorder.all(); len(got) != 1 || got[0].Outcome != OutcomeNotFound {
		t.Fatalf("expected NotFound attempt, got %+v", got)
	}
}

func TestHire_UnauthorizedTakesPrecedenceOverConflict(t *testing.T) {
	store := newMemStore("owner", "b1", "b2")
	svc, recorder, _ := newTestService(store)

	// First let the owner assign the gig.
	if _, err := svc.Hire(context.Background(), "owner", "b1"); err != nil {
		t.Fatalf("setup hire: %v", err)
	}

	// A stranger hiring on the now-assigned gig must see Unauthorized, not
	// Conflict: ownership is checked before gig state.
	_, err := svc.Hire(context.Background(), "stranger", "b2")
	assertOutcome(t, err, OutcomeUnauthorized)

	attempts := recorder.all()
	if attempts[len(attempts)-1].Outcome != OutcomeUnauthorized {
		t.Fatalf("expected Unauthorized attempt, got %+v", attempts)
	}
}

func TestHire_UnauthorizedProducesNoWrites(t *testing.T) {
	store := newMemStore("owner", "b1")
	svc, _, _ := newTestService(store)

	_, err := svc.Hire(context.Background(), "stranger", "b1")
	assertOutcome(t, err, OutcomeUnauthorized)

	if store.snapshotGig().Status != "open" || store.bidStatus("b1") != "pending" {
		t.Fatal("unauthorized attempt must not mutate state")
	}
}

func TestHire_ConflictWhenGigAssigned(t *testing.T) {
	store := newMemStore("owner", "b1", "b2")
	svc, _, _ := newTestService(store)
	ctx := context.Background()

	if _, err := svc.Hire(ctx, "owner", "b1"); err != nil {
		t.Fatalf("setup hire: %v", err)
	}

	_, err := svc.Hire(ctx, "owner", "b2")
	hireErr := assertOutcome(t, err, OutcomeConflict)
	if hireErr.GigStatus != "assigned" {
		t.Fatalf("expected assigned status in payload, got %q", hireErr.GigStatus)
	}
	if hireErr.HiredBidID == nil || *hireErr.HiredBidID != "b1" {
		t.Fatalf("expected winning bid id in payload, got %v", hireErr.HiredBidID)
	}
	if hireErr.Retryable() {
		t.Fatal("conflict must not be retryable")
	}
}

func TestHire_ConflictWhenBidResolved(t *testing.T) {
	store := newMemStore("owner", "b1")
	store.bids["b1"].Status = "rejected"
	svc, _, _ := newTestService(store)

	_, err := svc.Hire(context.Background(), "owner", "b1")
	hireErr := assertOutcome(t, err, OutcomeConflict)
	if hireErr.BidStatus != "rejected" {
		t.Fatalf("expected bid status in payload, got %q", hireErr.BidStatus)
	}
}

func TestHire_NotifySkipIsNonFatal(t *testing.T) {
	store := newMemStore("owner", "b1")
	svc, recorder, notifier := newTestService(store)
	notifier.delivery = notify.Skipped

	if _, err := svc.Hire(context.Background(), "owner", "b1"); err != nil {
		t.Fatalf("expected success despite skipped delivery, got %v", err)
	}
	if got := recorder.all(); len(got) != 1 || got[0].Outcome != OutcomeSuccess {
		t.Fatalf("expected Success attempt, got %+v", got)
	}
}

func TestHire_SystemErrorAbortsThenRetrySucceeds(t *testing.T) {
	store := newMemStore("owner", "b1", "b2")
	store.outboxErr = errors.New("connection reset by peer")
	svc, recorder, _ := newTestService(store)
	ctx := context.Background()

	_, err := svc.Hire(ctx, "owner", "b1")
	hireErr := assertOutcome(t, err, OutcomeSystemError)
	if !hireErr.Retryable() {
		t.Fatal("system errors must be retryable")
	}

	// The abort left no partial writes behind.
	if store.snapshotGig().Status != "open" {
		t.Fatal("gig must stay open after aborted transition")
	}
	if store.bidStatus("b1") != "pending" || store.bidStatus("b2") != "pending" {
		t.Fatal("bids must stay pending after aborted transition")
	}

	// Retry with the same bid id wins cleanly, no double-apply.
	store.outboxErr = nil
	if _, err := svc.Hire(ctx, "owner", "b1"); err != nil {
		t.Fatalf("retry after abort: %v", err)
	}
	if store.bidStatus("b1") != "hired" {
		t.Fatal("expected retry to hire the bid")
	}

	attempts := recorder.all()
	if len(attempts) != 2 || attempts[0].Outcome != OutcomeSystemError || attempts[1].Outcome != OutcomeSuccess {
		t.Fatalf("unexpected attempt trail: %+v", attempts)
	}
}

func TestHire_ConcurrentAttemptsExactlyOneWins(t *testing.T) {
	const contenders = 8

	bidIDs := make([]string, contenders)
	for i := range bidIDs {
		bidIDs[i] = fmt.Sprintf("b%d", i+1)
	}
	store := newMemStore("owner", bidIDs...)
	svc, recorder, _ := newTestService(store)

	outcomes := make([]error, contenders)
	var g errgroup.Group
	for i := range bidIDs {
		g.Go(func() error {
			_, outcomes[i] = svc.Hire(context.Background(), "owner", bidIDs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	var wins, conflicts int
	var winner string
	for i, err := range outcomes {
		if err == nil {
			wins++
			winner = bidIDs[i]
			continue
		}
		var hireErr *HireError
		if !errors.As(err, &hireErr) || hireErr.Outcome != OutcomeConflict {
			t.Fatalf("bid %s: expected Conflict, got %v", bidIDs[i], err)
		}
		conflicts++
	}
	if wins != 1 || conflicts != contenders-1 {
		t.Fatalf("expected exactly one winner, got %d wins / %d conflicts", wins, conflicts)
	}

	gig := store.snapshotGig()
	if gig.Status != "assigned" || gig.HiredBidID == nil || *gig.HiredBidID != winner {
		t.Fatalf("gig must be assigned to the single winner, got %+v", gig)
	}
	var hired, rejected int
	for _, id := range bidIDs {
		switch store.bidStatus(id) {
		case "hired":
			hired++
		case "rejected":
			rejected++
		default:
			t.Fatalf("bid %s left in unexpected status %s", id, store.bidStatus(id))
		}
	}
	if hired != 1 || rejected != contenders-1 {
		t.Fatalf("expected 1 hired / %d rejected, got %d / %d", contenders-1, hired, rejected)
	}

	attempts := recorder.all()
	if len(attempts) != contenders {
		t.Fatalf("expected %d audit attempts, got %d", contenders, len(attempts))
	}
}

func assertOutcome(t *testing.T, err error, want Outcome) *HireError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got success", want)
	}
	var hireErr *HireError
	if !errors.As(err, &hireErr) {
		t.Fatalf("expected *HireError, got %T: %v", err, err)
	}
	if hireErr.Outcome != want {
		t.Fatalf("expected outcome %s, got %s (%v)", want, hireErr.Outcome, err)
	}
	return hireErr
}

// memStore emulates the stores with the same locking discipline the real
// repository relies on: a per-gig row lock held until the transaction ends,
// and writes that only become visible at commit.
type memStore struct {
	mu      sync.Mutex // guards the fields below
	rowLock sync.Mutex // stands in for SELECT ... FOR UPDATE on the gig row
	gig     GigState
	bids    map[string]*BidState
	outbox  []string

	outboxErr error
}

func newMemStore(ownerID string, bidIDs ...string) *memStore {
	store := &memStore{
		gig: GigState{
			ID:      "g1",
			OwnerID: ownerID,
			Title:   "Build landing page",
			Budget:  500,
			Status:  "open",
		},
		bids: make(map[string]*BidState, len(bidIDs)),
	}
	for i, id := range bidIDs {
		store.bids[id] = &BidState{
			ID:           id,
			GigID:        "g1",
			FreelancerID: "freelancer-" + id,
			Price:        int64(100 + i*10),
			Status:       "pending",
		}
	}
	return store
}

func (s *memStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: s}, nil
}

func (s *memStore) snapshotGig() GigState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gig
}

func (s *memStore) bidStatus(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bids[id]; ok {
		return b.Status
	}
	return ""
}

// memTx implements pgx.Tx. It releases the row lock exactly once and applies
// staged writes only on Commit, mirroring transaction semantics.
type memTx struct {
	store  *memStore
	mu     sync.Mutex
	locked bool
	done   bool
	staged []func()
}

func (t *memTx) Commit(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return errors.New("memTx: already finished")
	}
	t.store.mu.Lock()
	for _, apply := range t.staged {
		apply()
	}
	t.store.mu.Unlock()
	t.finishLocked()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.staged = nil
	t.finishLocked()
	return nil
}

func (t *memTx) finishLocked() {
	t.done = true
	if t.locked {
		t.store.rowLock.Unlock()
		t.locked = false
	}
}

func (t *memTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("memTx does not support nested transactions")
}

func (t *memTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (t *memTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (t *memTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (t *memTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (t *memTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}

func (t *memTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (t *memTx) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

func (t *memTx) Conn() *pgx.Conn { return nil }

// memRepo implements HireRepository against the in-memory store.
type memRepo struct {
	store *memStore
}

func (r *memRepo) GetBidGigID(_ context.Context, _ pgx.Tx, bidID string) (string, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.bids[bidID]
	if !ok {
		return "", ErrBidNotFound
	}
	return b.GigID, nil
}

func (r *memRepo) LockGig(_ context.Context, tx pgx.Tx, gigID string) (GigState, error) {
	mt := tx.(*memTx)
	r.store.rowLock.Lock()
	mt.locked = true

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.gig.ID != gigID {
		return GigState{}, ErrGigNotFound
	}
	return r.store.gig, nil
}

func (r *memRepo) GetBid(_ context.Context, _ pgx.Tx, bidID string) (BidState, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	b, ok := r.store.bids[bidID]
	if !ok {
		return BidState{}, ErrBidNotFound
	}
	return *b, nil
}

func (r *memRepo) ExecuteHireTx(_ context.Context, tx pgx.Tx, params CommitParams) error {
	mt := tx.(*memTx)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	b, ok := r.store.bids[params.BidID]
	if !ok || b.Status != "pending" {
		return ErrBidNotPending
	}
	if r.store.gig.ID != params.GigID || r.store.gig.Status != "open" {
		return ErrGigNotOpen
	}

	store := r.store
	mt.staged = append(mt.staged, func() {
		store.bids[params.BidID].Status = "hired"
		store.gig.Status = "assigned"
		bidID := params.BidID
		store.gig.HiredBidID = &bidID
		for id, other := range store.bids {
			if id != params.BidID && other.Status == "pending" {
				other.Status = "rejected"
			}
		}
	})
	return nil
}

func (r *memRepo) EnqueueHiredOutbox(_ context.Context, tx pgx.Tx, gig GigState, bid BidState, _ time.Time) error {
	if r.store.outboxErr != nil {
		return r.store.outboxErr
	}
	mt := tx.(*memTx)
	store := r.store
	mt.staged = append(mt.staged, func() {
		store.outbox = append(store.outbox, "gig.hired:"+gig.ID+":"+bid.ID)
	})
	return nil
}

type captureRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (c *captureRecorder) Record(_ context.Context, attempt Attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = append(c.attempts, attempt)
}

func (c *captureRecorder) all() []Attempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Attempt, len(c.attempts))
	copy(out, c.attempts)
	return out
}

type captureNotifier struct {
	mu       sync.Mutex
	delivery notify.Delivery
	calls    []notifyCall
}

type notifyCall struct {
	userID string
	event  notify.HiredEvent
}

func (c *captureNotifier) Notify(_ context.Context, userID string, event notify.HiredEvent) notify.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, notifyCall{userID: userID, event: event})
	return c.delivery
}
