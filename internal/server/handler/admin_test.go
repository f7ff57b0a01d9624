package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/martelinho/martelinho/internal/domain"
)

type stubArchiver struct{ exports []domain.BlobInfo }

func (stubArchiver) RunOnce(context.Context) (int, string, error) { return 0, "", nil }
func (stubArchiver) Export(context.Context) (string, error) { return "", nil }

func (s stubArchiver) Exports(context.Context) ([]domain.BlobInfo, error) { return s.exports, nil }

func TestAdminExports(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := map[string]struct {
		exports []domain.BlobInfo
		want    int
	}{
		"none": {want: 0},
		"two":  {exports: []domain.BlobInfo{{Path: "exports/martelinho_ads/a.json"}, {Path: "exports/martelinho_ads/b.json"}}, want: 2},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewAdminHandler(stubArchiver{exports: tc.exports}, logger)
			rec := httptest.NewRecorder()
			h.Exports(rec, httptest.NewRequest(http.MethodGet, "/api/admin/exports", nil))

			var body struct {
				Exports []domain.BlobInfo `json:"exports"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if rec.Code != http.StatusOK || body.Exports == nil || len(body.Exports) != tc.want {
				t.Errorf("status %d, exports %+v", rec.Code, body.Exports)
			}
		})
	}
}
