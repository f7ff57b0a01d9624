package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/martelinho/martelinho/internal/domain"
)

// FilePort stores each key as a file in a directory.
type FilePort struct {
	dir string
	ext string
}

var _ domain.SnapshotPort = (*FilePort)(nil)

// NewFilePort creates dir if needed. ext is appended to every key, e.g.
// ".json".
func NewFilePort(dir, ext string) (*FilePort, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir %s: %w", dir, err)
	}
	return &FilePort{dir: dir, ext: ext}, nil
}

func (p *FilePort) path(key string) string {
	return filepath.Join(p.dir, filepath.Base(key)+p.ext)
}

// Load reads key's file.
func (p *FilePort) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(p.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("snapshot: %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", key, err)
	}
	return data, nil
}

// Save replaces key's file atomically via a rename.
func (p *FilePort) Save(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(p.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: create temp for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("snapshot: write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), p.path(key)); err != nil {
		return fmt.Errorf("snapshot: rename %s: %w", key, err)
	}
	return nil
}

// MemoryPort keeps blobs in process memory.
type MemoryPort struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ domain.SnapshotPort = (*MemoryPort)(nil)

// NewMemoryPort returns an empty MemoryPort.
func NewMemoryPort() *MemoryPort {
	return &MemoryPort{data: make(map[string][]byte)}
}

func (p *MemoryPort) Load(_ context.Context, key string) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.data[key]
	if !ok {
		return nil, fmt.Errorf("snapshot: %s: %w", key, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (p *MemoryPort) Save(_ context.Context, key string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data[key] = append([]byte(nil), data...)
	return nil
}
