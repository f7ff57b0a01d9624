package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/martelinho/martelinho/internal/cache/local"
	"github.com/martelinho/martelinho/internal/codec"
	"github.com/martelinho/martelinho/internal/config"
	"github.com/martelinho/martelinho/internal/copygen"
	"github.com/martelinho/martelinho/internal/domain"
	"github.com/martelinho/martelinho/internal/store/snapshot"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireStandalone(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Port = "file"
	cfg.Storage.Dir = t.TempDir()
	cfg.Storage.Codec = "cbor"

	deps, cleanup, err := Wire(context.Background(), &cfg, discard())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if _, ok := deps.SignalBus.(*local.SignalBus); !ok {
		t.Errorf("SignalBus = %T, want in-process bus without redis", deps.SignalBus)
	}
	if _, ok := deps.Copy.(copygen.Static); !ok {
		t.Errorf("Copy = %T, want static generator without api key", deps.Copy)
	}
	if deps.ListingCache != nil || deps.LockManager != nil || deps.RateLimiter != nil {
		t.Error("redis-backed ports should be nil without redis")
	}
	if deps.Archiver != nil {
		t.Error("archiver should be nil without a bucket")
	}
	if deps.Codec.Name() != codec.NameCBOR {
		t.Errorf("Codec = %s", deps.Codec.Name())
	}

	active, err := deps.MarketStore.ListListings(context.Background(), domain.ListingQuery{Status: domain.StatusActive})
	if err != nil {
		t.Fatal(err)
	}
	if len(active) == 0 {
		t.Error("empty storage should be seeded")
	}
}

func TestWireRejectsUnknownCodec(t *testing.T) {
	cfg := config.Defaults()
	cfg.Storage.Port = "memory"
	cfg.Storage.Codec = "yaml"
	if _, _, err := Wire(context.Background(), &cfg, discard()); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestSnapshotPortSelection(t *testing.T) {
	cfg := config.Defaults()
	c := codec.JSON{}

	cfg.Storage.Port = "memory"
	p, err := snapshotPort(&cfg, c, nil, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*snapshot.MemoryPort); !ok {
		t.Errorf("memory port = %T", p)
	}

	cfg.Storage.Port = "file"
	cfg.Storage.Dir = t.TempDir()
	if p, err = snapshotPort(&cfg, c, nil, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*snapshot.FilePort); !ok {
		t.Errorf("file port = %T", p)
	}

	for _, name := range []string{"redis", "s3"} {
		cfg.Storage.Port = name
		if _, err := snapshotPort(&cfg, c, nil, nil, nil); err == nil {
			t.Errorf("%s port without a client should fail", name)
		}
	}
}

func TestRunRejectsUnknownModeBeforeWiring(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "batch"
	cfg.Storage.Backend = "postgres"
	cfg.Postgres.Host = "unreachable.invalid"

	a := New(&cfg, discard())
	defer a.Close()
	err := a.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "unsupported mode") {
		t.Fatalf("err = %v", err)
	}
}
