package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/martelinho/martelinho/internal/domain"
)

// Archiver runs cold-storage jobs on demand.
type Archiver interface {
	RunOnce(ctx context.Context) (int, string, error)
	Export(ctx context.Context) (string, error)
	Exports(ctx context.Context) ([]domain.BlobInfo, error)
}

// AdminHandler serves operator endpoints guarded by the API key.
type AdminHandler struct {
	archiver Archiver
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(archiver Archiver, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{archiver: archiver, logger: logHandler(logger, "admin")}
}

// Archive moves closed listings to object storage.
// POST /api/admin/archive
func (h *AdminHandler) Archive(w http.ResponseWriter, r *http.Request) {
	n, path, err := h.archiver.RunOnce(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "archive", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archived": n, "path": path})
}

// Export writes a full listing snapshot to object storage.
// POST /api/admin/export
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	path, err := h.archiver.Export(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "export", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

// Exports lists the stored listing exports, oldest first.
// GET /api/admin/exports
func (h *AdminHandler) Exports(w http.ResponseWriter, r *http.Request) {
	infos, err := h.archiver.Exports(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, "exports", err)
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": infos})
}
