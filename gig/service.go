package gig

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingFields signals that a required field was left empty.
	ErrMissingFields = errors.New("gig: title, description and budget are required")
	// ErrInvalidBudget signals a non-positive budget.
	ErrInvalidBudget = errors.New("gig: budget must be positive")
)

// Service exposes business-level gig operations.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates and posts a new gig on behalf of its owner.
func (s *Service) Create(ctx context.Context, params CreateParams) (Gig, error) {
	if params.OwnerID == "" {
		return Gig{}, fmt.Errorf("gig: missing owner id")
	}
	params.Title = strings.TrimSpace(params.Title)
	params.Description = strings.TrimSpace(params.Description)
	if params.Title == "" || params.Description == "" {
		return Gig{}, ErrMissingFields
	}
	if params.Budget <= 0 {
		return Gig{}, ErrInvalidBudget
	}

	return s.repo.Create(ctx, params)
}

// GetByID returns the gig for the given identifier.
func (s *Service) GetByID(ctx context.Context, id string) (Gig, error) {
	return s.repo.GetByID(ctx, id)
}

// Search returns open gigs whose title matches the optional query.
func (s *Service) Search(ctx context.Context, titleQuery string) ([]Gig, error) {
	return s.repo.SearchOpen(ctx, strings.TrimSpace(titleQuery))
}

// History returns all gigs posted by the given owner.
func (s *Service) History(ctx context.Context, ownerID string) ([]Gig, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("gig: missing owner id")
	}
	return s.repo.ListByOwner(ctx, ownerID)
}
