package handler

import (
	"net/http"

	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
)

// Categories lists the fixed category catalogue.
// GET /api/categories
func Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"categories": domain.Categories})
}

// Fees reports the fee schedule.
// GET /api/fees
func Fees(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"saleFeePercent":         lifecycle.SaleFeePercent,
		"swapFeePercent":         lifecycle.SwapFeePercent,
		"autoReleaseHours":       int(lifecycle.AutoReleaseWindow.Hours()),
		"minDurationDays":        lifecycle.MinDurationDays,
		"maxDurationDays":        lifecycle.MaxDurationDays,
		"defaultDurationDays":    lifecycle.DefaultDurationDays,
		"maxImages":              lifecycle.MaxImages,
		"nickChangeCooldownDays": int(lifecycle.NickChangeCooldown.Hours() / 24),
	})
}
