package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"gigflow/auth"
	"gigflow/bid"
	"gigflow/gig"
	"gigflow/hiring"
	"gigflow/notify"
)

type ctxKey int

const ctxKeyUserID ctxKey = iota

type authService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)
	VerifyToken(token string) (string, error)
}

type gigService interface {
	Create(ctx context.Context, params gig.CreateParams) (gig.Gig, error)
	Search(ctx context.Context, titleQuery string) ([]gig.Gig, error)
	History(ctx context.Context, ownerID string) ([]gig.Gig, error)
}

type bidService interface {
	Submit(ctx context.Context, params bid.SubmitParams) (bid.Bid, error)
	ListForGig(ctx context.Context, callerID, gigID string) ([]bid.Bid, error)
}

type hireService interface {
	Hire(ctx context.Context, actorID, bidID string) (hiring.Result, error)
}

// Server is the HTTP edge over the domain services.
type Server struct {
	authService authService
	gigService  gigService
	bidService  bidService
	hireService hireService
	registry    *notify.Registry
	logger      *slog.Logger
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/gigs", s.handleSearchGigs)
	mux.HandleFunc("POST /api/gigs", s.requireAuth(s.handleCreateGig))
	mux.HandleFunc("GET /api/gigs/history", s.requireAuth(s.handleGigHistory))
	mux.HandleFunc("POST /api/bids", s.requireAuth(s.handleSubmitBid))
	mux.HandleFunc("GET /api/bids/{gigID}", s.requireAuth(s.handleListBids))
	mux.HandleFunc("PATCH /api/bids/{bidID}/hire", s.requireAuth(s.handleHire))
	mux.HandleFunc("GET /api/events", s.requireAuth(s.handleEvents))
	return mux
}

// requireAuth resolves the caller identity from the bearer token (or the
// legacy token cookie) and stores it in the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			if c, err := r.Cookie("token"); err == nil {
				token = c.Value
			}
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing token")
			return
		}

		userID, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
		next(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func callerID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyUserID).(string)
	return id
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type gigResponse struct {
	ID          string  `json:"id"`
	OwnerID     string  `json:"ownerId"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Budget      int64   `json:"budget"`
	Status      string  `json:"status"`
	HiredBidID  *string `json:"hiredBidId,omitempty"`
	CreatedAt   string  `json:"createdAt"`
}

type bidResponse struct {
	ID           string `json:"id"`
	GigID        string `json:"gigId"`
	FreelancerID string `json:"freelancerId"`
	Message      string `json:"message"`
	Price        int64  `json:"price"`
	Status       string `json:"status"`
	CreatedAt    string `json:"createdAt"`
}

func toGigResponse(g gig.Gig) gigResponse {
	return gigResponse{
		ID:          g.ID,
		OwnerID:     g.OwnerID,
		Title:       g.Title,
		Description: g.Description,
		Budget:      g.Budget,
		Status:      string(g.Status),
		HiredBidID:  g.HiredBidID,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
	}
}

func toBidResponse(b bid.Bid) bidResponse {
	return bidResponse{
		ID:           b.ID,
		GigID:        b.GigID,
		FreelancerID: b.FreelancerID,
		Message:      b.Message,
		Price:        b.Price,
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	user, err := s.authService.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrDuplicateEmail):
			writeError(w, http.StatusConflict, "DUPLICATE_EMAIL", "email already registered")
		case errors.Is(err, auth.ErrWeakPassword):
			writeError(w, http.StatusBadRequest, "WEAK_PASSWORD", err.Error())
		default:
			s.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{ID: user.ID, Email: user.Email, Name: user.Name})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	result, err := s.authService.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "wrong email or password")
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token string       `json:"token"`
		User  userResponse `json:"user"`
	}{
		Token: result.Token,
		User:  userResponse{ID: result.User.ID, Email: result.User.Email, Name: result.User.Name},
	})
}

func (s *Server) handleSearchGigs(w http.ResponseWriter, r *http.Request) {
	gigs, err := s.gigService.Search(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	items := make([]gigResponse, 0, len(gigs))
	for _, g := range gigs {
		items = append(items, toGigResponse(g))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []gigResponse `json:"items"`
	}{Items: items})
}

func (s *Server) handleCreateGig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Budget      int64  `json:"budget"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	created, err := s.gigService.Create(r.Context(), gig.CreateParams{
		OwnerID:     callerID(r),
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		if errors.Is(err, gig.ErrMissingFields) || errors.Is(err, gig.ErrInvalidBudget) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toGigResponse(created))
}

func (s *Server) handleGigHistory(w http.ResponseWriter, r *http.Request) {
	gigs, err := s.gigService.History(r.Context(), callerID(r))
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	items := make([]gigResponse, 0, len(gigs))
	for _, g := range gigs {
		items = append(items, toGigResponse(g))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []gigResponse `json:"items"`
	}{Items: items})
}

func (s *Server) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GigID   string `json:"gigId"`
		Message string `json:"message"`
		Price   int64  `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body")
		return
	}

	created, err := s.bidService.Submit(r.Context(), bid.SubmitParams{
		GigID:        req.GigID,
		FreelancerID: callerID(r),
		Message:      req.Message,
		Price:        req.Price,
	})
	if err != nil {
		switch {
		case errors.Is(err, gig.ErrNotFound):
			writeError(w, http.StatusNotFound, "GIG_NOT_FOUND", "gig not found")
		case errors.Is(err, bid.ErrGigNotOpen):
			writeError(w, http.StatusConflict, "GIG_NOT_OPEN", "gig no longer accepts bids")
		case errors.Is(err, bid.ErrOwnBid), errors.Is(err, bid.ErrInvalidPrice):
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		default:
			s.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, toBidResponse(created))
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	gigID := r.PathValue("gigID")
	if gigID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing gig id")
		return
	}

	bids, err := s.bidService.ListForGig(r.Context(), callerID(r), gigID)
	if err != nil {
		switch {
		case errors.Is(err, gig.ErrNotFound):
			writeError(w, http.StatusNotFound, "GIG_NOT_FOUND", "gig not found")
		case errors.Is(err, bid.ErrNotOwner):
			writeError(w, http.StatusForbidden, "FORBIDDEN", "only the gig owner may list bids")
		default:
			s.internalError(w, r, err)
		}
		return
	}

	items := make([]bidResponse, 0, len(bids))
	for _, b := range bids {
		items = append(items, toBidResponse(b))
	}
	writeJSON(w, http.StatusOK, struct {
		Items []bidResponse `json:"items"`
	}{Items: items})
}

// handleHire surfaces the coordinator result: a success payload, or the
// typed outcome code with whatever diagnostic detail the coordinator
// attached.
func (s *Server) handleHire(w http.ResponseWriter, r *http.Request) {
	bidID := r.PathValue("bidID")
	if bidID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing bid id")
		return
	}

	result, err := s.hireService.Hire(r.Context(), callerID(r), bidID)
	if err != nil {
		var hireErr *hiring.HireError
		if !errors.As(err, &hireErr) {
			s.internalError(w, r, err)
			return
		}

		body := struct {
			Code          string  `json:"code"`
			Message       string  `json:"message"`
			CurrentStatus string  `json:"currentStatus,omitempty"`
			HiredBidID    *string `json:"hiredBidId,omitempty"`
		}{
			Code:       string(hireErr.Outcome),
			Message:    hireErr.Reason,
			HiredBidID: hireErr.HiredBidID,
		}
		if hireErr.GigStatus != "" {
			body.CurrentStatus = hireErr.GigStatus
		} else if hireErr.BidStatus != "" {
			body.CurrentStatus = hireErr.BidStatus
		}

		status := http.StatusInternalServerError
		switch hireErr.Outcome {
		case hiring.OutcomeNotFound:
			status = http.StatusNotFound
		case hiring.OutcomeUnauthorized:
			status = http.StatusForbidden
		case hiring.OutcomeConflict:
			status = http.StatusConflict
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		GigID        string `json:"gigId"`
		BidID        string `json:"bidId"`
		FreelancerID string `json:"freelancerId"`
		HiredAt      string `json:"hiredAt"`
	}{
		GigID:        result.GigID,
		BidID:        result.BidID,
		FreelancerID: result.FreelancerID,
		HiredAt:      result.HiredAt.Format(time.RFC3339),
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, "SYSTEM_ERROR", "internal error")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{Code: code, Message: message})
}
