package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/martelinho/martelinho/internal/domain"
)

// ListingSource is the read side the archiver needs.
type ListingSource interface {
	ListListings(ctx context.Context, q domain.ListingQuery) ([]domain.Listing, error)
}

// archivedStatuses are the statuses a listing never leaves.
var archivedStatuses = []domain.Status{domain.StatusCancelled, domain.StatusCompleted}

// BlobBrowser reads back and removes what the archiver wrote.
type BlobBrowser interface {
	domain.BlobReader
	domain.BlobDeleter
}

// Archiver exports closed listings as JSONL and full collection snapshots
// to object storage.
//
// Archived listings are not deleted from the primary store; that is a
// separate step once the archive has been verified.
type Archiver struct {
	writer   domain.BlobWriter
	reader   BlobBrowser
	listings ListingSource
	audit    domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(writer domain.BlobWriter, reader BlobBrowser, listings ListingSource, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, listings: listings, audit: audit}
}

// ArchiveClosed uploads every cancelled or completed listing whose end time
// is before the cutoff to archive/listings/YYYY-MM-DD.jsonl and returns the
// number archived. Completed listings are archived only after their funds
// were released.
//
// Each day's partition is written once. The set is cumulative, so listings
// that close after a partition was written land in the next day's file.
// An existing partition returns its path with a count of zero.
func (a *Archiver) ArchiveClosed(ctx context.Context, before time.Time) (int, string, error) {
	path := archivePath("listings", before)
	done, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, "", fmt.Errorf("s3blob: archive check %s: %w", path, err)
	}
	if done {
		return 0, path, nil
	}

	var closed []domain.Listing
	for _, status := range archivedStatuses {
		batch, err := a.listings.ListListings(ctx, domain.ListingQuery{Status: status})
		if err != nil {
			return 0, "", fmt.Errorf("s3blob: archive query %s: %w", status, err)
		}
		for _, l := range batch {
			if !l.EndTime.Before(before) {
				continue
			}
			if l.Status == domain.StatusCompleted && (l.Delivery == nil || l.Delivery.ReleasedAt == nil) {
				continue
			}
			closed = append(closed, l)
		}
	}
	if len(closed) == 0 {
		return 0, "", nil
	}

	buf, err := marshalJSONL(closed)
	if err != nil {
		return 0, "", fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, "", fmt.Errorf("s3blob: archive upload: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.listings", map[string]any{
			"path":   path,
			"count":  len(closed),
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return len(closed), path, fmt.Errorf("s3blob: archive audit log: %w", err)
		}
	}
	return len(closed), path, nil
}

// ExportSnapshot uploads an encoded collection to
// exports/{key}/{timestamp}{ext}. Large exports go through multipart upload.
func (a *Archiver) ExportSnapshot(ctx context.Context, key string, data []byte, ext string, at time.Time) (string, error) {
	path := exportPrefix(key) + at.UTC().Format("20060102T150405Z") + ext
	var err error
	if int64(len(data)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(data), "application/octet-stream")
	}
	if err != nil {
		return "", fmt.Errorf("s3blob: export %s: %w", key, err)
	}
	return path, nil
}

// Exports lists the snapshot exports under exports/{key}/, oldest first.
func (a *Archiver) Exports(ctx context.Context, key string) ([]domain.BlobInfo, error) {
	infos, err := a.reader.List(ctx, exportPrefix(key))
	if err != nil {
		return nil, fmt.Errorf("s3blob: list exports %s: %w", key, err)
	}
	// Names are UTC timestamps, so lexical order is chronological.
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// PruneExports deletes all but the newest keep exports of key and returns
// how many were removed.
func (a *Archiver) PruneExports(ctx context.Context, key string, keep int) (int, error) {
	infos, err := a.Exports(ctx, key)
	if err != nil {
		return 0, err
	}
	if keep < 1 || len(infos) <= keep {
		return 0, nil
	}
	stale := infos[:len(infos)-keep]
	for i, info := range stale {
		if err := a.reader.Delete(ctx, info.Path); err != nil {
			return i, fmt.Errorf("s3blob: prune %s: %w", info.Path, err)
		}
	}
	return len(stale), nil
}

func exportPrefix(key string) string {
	return "exports/" + strings.Trim(key, "/") + "/"
}

// archivePath builds the key for an archive file, partitioned by the day of
// the cutoff, e.g. archive/listings/2025-01-31.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
