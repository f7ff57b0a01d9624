package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/server/middleware"
)

// maxBodyBytes bounds request bodies. Drafts carry up to five data-URL
// images.
const maxBodyBytes = 25 << 20

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// errorKinds maps lifecycle errors to a status and a stable code. Order
// matters: the first match wins.
var errorKinds = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "login_required"},
	{domain.ErrInvalidListing, http.StatusBadRequest, "invalid_listing"},
	{domain.ErrInvalidProfile, http.StatusBadRequest, "invalid_profile"},
	{domain.ErrEmptyMessage, http.StatusBadRequest, "empty_message"},
	{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
	{domain.ErrNotParticipant, http.StatusForbidden, "not_participant"},
	{domain.ErrChatDisabled, http.StatusForbidden, "chat_disabled"},
	{domain.ErrListingNotFound, http.StatusNotFound, "listing_not_found"},
	{domain.ErrOfferNotFound, http.StatusNotFound, "offer_not_found"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrBidTooLow, http.StatusConflict, "bid_too_low"},
	{domain.ErrSwapsDisabled, http.StatusConflict, "swaps_disabled"},
	{domain.ErrSwapNotAccepted, http.StatusConflict, "swap_not_accepted"},
	{domain.ErrNickChangeTooSoon, http.StatusConflict, "nick_change_too_soon"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
	{domain.ErrLockHeld, http.StatusConflict, "busy"},
	{domain.ErrLocationMismatch, http.StatusUnprocessableEntity, "location_mismatch"},
	{domain.ErrNoEligibleItems, http.StatusUnprocessableEntity, "no_eligible_items"},
	{domain.ErrProhibitedItem, http.StatusUnprocessableEntity, "prohibited_item"},
	{domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

// writeDomainError maps err to an HTTP response. Unknown errors are logged
// and reported as 500 without detail.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			writeError(w, k.status, k.code, err.Error())
			return
		}
	}
	logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal", op+" failed")
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// actor returns the acting user's id, writing a 401 when there is none.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := middleware.ActorID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "login_required", "X-User-ID header is required")
		return "", false
	}
	return id, true
}

// parseLimit reads ?limit=, defaulting to 50 and capped at 500.
func parseLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return min(limit, 500)
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
