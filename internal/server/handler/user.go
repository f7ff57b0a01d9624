package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

// UserService defines the methods that the user handler requires from the
// service layer.
type UserService interface {
	Login(ctx context.Context, form lifecycle.Signup) (domain.User, error)
	Get(ctx context.Context, id string) (domain.User, error)
	Rename(ctx context.Context, id, nick string) (domain.User, error)
}

// UserListings defines the per-user listing queries.
type UserListings interface {
	OwnedBy(ctx context.Context, userID string) ([]domain.Listing, error)
	WonBy(ctx context.Context, userID string) ([]domain.Listing, error)
}

// UserHandler serves session and profile endpoints.
type UserHandler struct {
	users    UserService
	listings UserListings
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, listings UserListings, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, listings: listings, logger: logHandler(logger, "users")}
}

// Login creates a session user. Clients send its id back as X-User-ID.
// POST /api/session
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var form lifecycle.Signup
	if err := decodeJSON(w, r, &form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	u, err := h.users.Login(r.Context(), form)
	if err != nil {
		writeDomainError(w, r, h.logger, "login", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// GetUser returns a profile.
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type renameRequest struct {
	Name string `json:"name"`
}

// Rename changes the caller's nickname.
// PUT /api/users/{id}/name
func (h *UserHandler) Rename(w http.ResponseWriter, r *http.Request) {
	userID, ok := actor(w, r)
	if !ok {
		return
	}
	if id := pathParam(r, "id"); id != userID {
		writeError(w, http.StatusForbidden, "not_participant", "you can only rename yourself")
		return
	}
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	u, err := h.users.Rename(r.Context(), userID, req.Name)
	if err != nil {
		writeDomainError(w, r, h.logger, "rename", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// ListOwned returns the listings a user is selling.
// GET /api/users/{id}/listings
func (h *UserHandler) ListOwned(w http.ResponseWriter, r *http.Request) {
	ls, err := h.listings.OwnedBy(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "list owned", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": ls})
}

// ListWon returns the listings a user leads or has won.
// GET /api/users/{id}/won
func (h *UserHandler) ListWon(w http.ResponseWriter, r *http.Request) {
	ls, err := h.listings.WonBy(r.Context(), pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, "list won", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": ls})
}
