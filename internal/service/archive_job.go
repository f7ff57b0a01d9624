package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/martelinho/martelinho/internal/codec"
	"github.com/martelinho/martelinho/internal/domain"
)

// ClosedArchiver writes closed listings and full snapshots to cold
// storage. *s3blob.Archiver implements it.
type ClosedArchiver interface {
	ArchiveClosed(ctx context.Context, before time.Time) (int, string, error)
	ExportSnapshot(ctx context.Context, key string, data []byte, ext string, at time.Time) (string, error)
	Exports(ctx context.Context, key string) ([]domain.BlobInfo, error)
	PruneExports(ctx context.Context, key string, keep int) (int, error)
}

// ArchiveJob periodically archives listings closed longer than retention
// and exports point-in-time snapshots on demand.
type ArchiveJob struct {
	archiver  ClosedArchiver
	store     domain.MarketStore
	codec     codec.Codec
	interval  time.Duration
	retention time.Duration
	keep      int
	logger    *slog.Logger
}

// NewArchiveJob creates an ArchiveJob. Exports are encoded with c, and only
// the newest keep exports are retained.
func NewArchiveJob(
	archiver ClosedArchiver,
	store domain.MarketStore,
	c codec.Codec,
	interval, retention time.Duration,
	keep int,
	logger *slog.Logger,
) *ArchiveJob {
	if interval <= 0 {
		interval = time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if keep < 1 {
		keep = 10
	}
	return &ArchiveJob{
		archiver:  archiver,
		store:     store,
		codec:     c,
		interval:  interval,
		retention: retention,
		keep:      keep,
		logger:    logger.With(slog.String("component", "archive_job")),
	}
}

// Run archives on every tick until ctx is cancelled.
func (j *ArchiveJob) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, _, err := j.RunOnce(ctx); err != nil {
				j.logger.ErrorContext(ctx, "archive failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce archives listings closed before now minus retention.
func (j *ArchiveJob) RunOnce(ctx context.Context) (int, string, error) {
	n, path, err := j.archiver.ArchiveClosed(ctx, time.Now().UTC().Add(-j.retention))
	if err != nil {
		return 0, "", fmt.Errorf("archive_job: archive closed: %w", err)
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "listings archived",
			slog.Int("count", n),
			slog.String("path", path),
		)
	}
	return n, path, nil
}

// Export writes every listing as one snapshot object and returns its path.
func (j *ArchiveJob) Export(ctx context.Context) (string, error) {
	listings, err := j.store.ListListings(ctx, domain.ListingQuery{})
	if err != nil {
		return "", fmt.Errorf("archive_job: list listings: %w", err)
	}
	data, err := j.codec.Marshal(listings)
	if err != nil {
		return "", fmt.Errorf("archive_job: encode: %w", err)
	}
	path, err := j.archiver.ExportSnapshot(ctx, domain.KeyListings, data, "."+j.codec.Name(), time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("archive_job: export: %w", err)
	}
	j.logger.InfoContext(ctx, "snapshot exported",
		slog.String("path", path),
		slog.Int("listings", len(listings)),
		slog.Int("bytes", len(data)),
	)

	// The export itself succeeded; a failed prune is retried next time.
	if removed, err := j.archiver.PruneExports(ctx, domain.KeyListings, j.keep); err != nil {
		j.logger.WarnContext(ctx, "prune exports failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		j.logger.InfoContext(ctx, "old exports pruned", slog.Int("removed", removed))
	}
	return path, nil
}

// Exports lists the stored listing exports, oldest first.
func (j *ArchiveJob) Exports(ctx context.Context) ([]domain.BlobInfo, error) {
	infos, err := j.archiver.Exports(ctx, domain.KeyListings)
	if err != nil {
		return nil, fmt.Errorf("archive_job: exports: %w", err)
	}
	return infos, nil
}
