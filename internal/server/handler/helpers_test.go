package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/martelinho/martelinho/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := map[string]struct {
		err      error
		wantCode int
		wantKind string
	}{
		"wrapped location":  {err: fmt.Errorf("marketplace: %w: São Paulo", domain.ErrLocationMismatch), wantCode: 422, wantKind: "location_mismatch"},
		"prohibited":        {err: domain.ErrProhibitedItem, wantCode: 422, wantKind: "prohibited_item"},
		"listing over any":  {err: fmt.Errorf("%w: %w", domain.ErrListingNotFound, domain.ErrNotFound), wantCode: 404, wantKind: "listing_not_found"},
		"chat":              {err: domain.ErrChatDisabled, wantCode: 403, wantKind: "chat_disabled"},
		"conflict":          {err: domain.ErrConflict, wantCode: 409, wantKind: "conflict"},
		"unknown is hidden": {err: errors.New("pg: connection reset"), wantCode: 500, wantKind: "internal"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			writeDomainError(rec, req, logger, "op", tc.err)

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.wantCode || body["code"] != tc.wantKind {
				t.Errorf("got %d %q, want %d %q", rec.Code, body["code"], tc.wantCode, tc.wantKind)
			}
			if tc.wantCode == 500 && body["error"] != "op failed" {
				t.Errorf("internal error leaked: %q", body["error"])
			}
		})
	}
}

func TestFees(t *testing.T) {
	rec := httptest.NewRecorder()
	Fees(rec, httptest.NewRequest(http.MethodGet, "/api/fees", nil))
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["saleFeePercent"] != 10 || body["swapFeePercent"] != 5 || body["autoReleaseHours"] != 72 {
		t.Errorf("fees = %v", body)
	}
}
