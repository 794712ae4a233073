package bid

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gigflow/gig"
)

var (
	// ErrGigNotOpen signals the target gig no longer accepts bids.
	ErrGigNotOpen = errors.New("bid: gig is not open")
	// ErrOwnBid signals an owner tried to bid on their own gig.
	ErrOwnBid = errors.New("bid: cannot bid on own gig")
	// ErrInvalidPrice signals a non-positive price.
	ErrInvalidPrice = errors.New("bid: price must be positive")
	// ErrNotOwner signals the caller does not own the gig whose bids were requested.
	ErrNotOwner = errors.New("bid: only gig owner may list bids")
)

// GigReader provides the gig lookups the bid service needs.
type GigReader interface {
	GetByID(ctx context.Context, id string) (gig.Gig, error)
}

// Service exposes business-level bid operations.
type Service struct {
	repo Repository
	gigs GigReader
}

// NewService builds a Service using the provided repository and gig reader.
func NewService(repo Repository, gigs GigReader) *Service {
	return &Service{repo: repo, gigs: gigs}
}

// Submit validates and places a new bid against an open gig.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Bid, error) {
	if params.FreelancerID == "" {
		return Bid{}, fmt.Errorf("bid: missing freelancer id")
	}
	params.Message = strings.TrimSpace(params.Message)
	if params.GigID == "" || params.Message == "" {
		return Bid{}, fmt.Errorf("bid: gig id and message are required")
	}
	if params.Price <= 0 {
		return Bid{}, ErrInvalidPrice
	}

	g, err := s.gigs.GetByID(ctx, params.GigID)
	if err != nil {
		return Bid{}, err
	}
	if g.Status != gig.StatusOpen {
		return Bid{}, ErrGigNotOpen
	}
	if g.OwnerID == params.FreelancerID {
		return Bid{}, ErrOwnBid
	}

	return s.repo.Create(ctx, params)
}

// ListForGig returns the bids on a gig; only the gig owner may ask.
func (s *Service) ListForGig(ctx context.Context, callerID, gigID string) ([]Bid, error) {
	g, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if g.OwnerID != callerID {
		return nil, ErrNotOwner
	}
	return s.repo.ListForGig(ctx, gigID)
}

// GetByID returns the bid for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Bid, error) {
	return s.repo.GetByID(ctx, id)
}
