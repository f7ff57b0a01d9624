package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/martelinho/martelinho/internal/codec"
	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/lifecycle"
	"github.com/martelinho/martelinho/internal/store/snapshot"
)

type fakeArchiver struct {
	before  time.Time
	key     string
	ext     string
	data    []byte
	failing bool
	pruned  []int
	exports []domain.BlobInfo
}

func (a *fakeArchiver) Exports(_ context.Context, key string) ([]domain.BlobInfo, error) {
	return a.exports, nil
}

func (a *fakeArchiver) PruneExports(_ context.Context, key string, keep int) (int, error) {
	a.pruned = append(a.pruned, keep)
	return 0, nil
}

func (a *fakeArchiver) ArchiveClosed(_ context.Context, before time.Time) (int, string, error) {
	if a.failing {
		return 0, "", errors.New("bucket gone")
	}
	a.before = before
	return 1, "archive/listings/x.jsonl", nil
}

func (a *fakeArchiver) ExportSnapshot(_ context.Context, key string, data []byte, ext string, _ time.Time) (string, error) {
	a.key, a.data, a.ext = key, data, ext
	return "exports/" + key + "/x" + ext, nil
}

func TestArchiveJob(t *testing.T) {
	ctx := context.Background()
	store := snapshot.New(snapshot.NewMemoryPort(), nil, lifecycle.Seed, discard())
	arch := &fakeArchiver{}
	job := NewArchiveJob(arch, store, codec.CBOR{}, time.Hour, 24*time.Hour, 3, discard())

	n, _, err := job.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunOnce = %d, %v", n, err)
	}
	if age := time.Since(arch.before); age < 24*time.Hour || age > 25*time.Hour {
		t.Errorf("cutoff age = %s", age)
	}

	path, err := job.Export(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if arch.key != domain.KeyListings || arch.ext != ".cbor" || path != "exports/martelinho_ads/x.cbor" {
		t.Errorf("export key %q ext %q path %q", arch.key, arch.ext, path)
	}
	if len(arch.pruned) != 1 || arch.pruned[0] != 3 {
		t.Errorf("prune calls = %v, want one keeping 3", arch.pruned)
	}
	arch.exports = []domain.BlobInfo{{Path: path}}
	if infos, err := job.Exports(ctx); err != nil || len(infos) != 1 {
		t.Errorf("Exports = %v, %v", infos, err)
	}
	var got []domain.Listing
	if err := (codec.CBOR{}).Unmarshal(arch.data, &got); err != nil || len(got) != 2 {
		t.Errorf("exported %d listings, %v", len(got), err)
	}

	arch.failing = true
	if _, _, err := job.RunOnce(ctx); err == nil {
		t.Error("expected archive error")
	}
}
