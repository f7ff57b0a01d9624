package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/martelinho/martelinho/internal/domain"
)

// SnapshotPort stores each snapshot as the object snapshots/{key}{ext}.
type SnapshotPort struct {
	reader      domain.BlobReader
	writer      domain.BlobWriter
	ext         string
	contentType string
}

var _ domain.SnapshotPort = (*SnapshotPort)(nil)

// NewSnapshotPort creates a SnapshotPort over the given reader and writer.
func NewSnapshotPort(r domain.BlobReader, w domain.BlobWriter, ext, contentType string) *SnapshotPort {
	return &SnapshotPort{reader: r, writer: w, ext: ext, contentType: contentType}
}

func (p *SnapshotPort) path(key string) string {
	return "snapshots/" + key + p.ext
}

// Load downloads the snapshot for key, or returns domain.ErrNotFound.
func (p *SnapshotPort) Load(ctx context.Context, key string) ([]byte, error) {
	body, err := p.reader.Get(ctx, p.path(key))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("s3blob: load snapshot %s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read snapshot %s: %w", key, err)
	}
	return data, nil
}

// Save uploads data as the snapshot for key.
func (p *SnapshotPort) Save(ctx context.Context, key string, data []byte) error {
	if err := p.writer.Put(ctx, p.path(key), bytes.NewReader(data), p.contentType); err != nil {
		return fmt.Errorf("s3blob: save snapshot %s: %w", key, err)
	}
	return nil
}
