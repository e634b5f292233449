// Package replica is the client-side copy of the note collection: a JSON file
// on the client machine that survives restarts and server outages.
package replica

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/maruel/calnotes/internal/notes"
)

// LocalStore persists the last known collection on the client.
//
// *File implements it; tests use Memory.
type LocalStore interface {
	Load() (notes.Collection, error)
	Save(c notes.Collection) error
}

// File is a LocalStore backed by one JSON file.
type File struct {
	path string
	mu   sync.Mutex
}

// Open returns the replica stored at path. The file is not touched until the
// first Load or Save.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("replica: empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("replica: resolve %s: %w", path, err)
	}
	return &File{path: abs}, nil
}

// Path returns the absolute path of the replica file.
func (f *File) Path() string {
	return f.path
}

// Load returns the stored collection. A missing or malformed file yields an
// empty collection.
func (f *File) Load() (notes.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return notes.Collection{}, nil
		}
		return nil, fmt.Errorf("failed to read replica %s: %w", f.path, err)
	}
	var c notes.Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		slog.Error("Replica is not valid JSON, starting empty", "path", f.path, "err", err)
		return notes.Collection{}, nil
	}
	if c == nil {
		c = notes.Collection{}
	}
	return c, nil
}

// Save overwrites the replica with c as compact JSON.
func (f *File) Save(c notes.Collection) error {
	if c == nil {
		c = notes.Collection{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal replica: %w", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", f.path, err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write replica %s: %w", f.path, err)
	}
	return nil
}

// Memory is an in-process LocalStore.
type Memory struct {
	mu    sync.Mutex
	c     notes.Collection
	saves int
	// Err, when set, is returned by Save.
	Err error
}

// Load returns a copy of the stored collection.
func (m *Memory) Load() (notes.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.c.Clone(), nil
}

// Save stores a copy of c.
func (m *Memory) Save(c notes.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.c = c.Clone()
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
