// Package store persists the note collection as a single JSON document.
//
// # Caching
//
// [Store] keeps the last loaded or saved collection in memory together with
// the time it was refreshed. [Store.Load] serves the cached copy while it is
// younger than the TTL and goes back to the file system afterwards, so an
// external edit of the file becomes visible within one TTL.
//
// # Writes
//
// Every save rewrites the whole file. There is no atomic rename: a crash
// mid-write can leave a truncated file, which the next load treats as an
// empty collection. Concurrent saves are last-writer-wins. [Store.Modify]
// serializes read-modify-write sequences issued through the same Store.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/maruel/calnotes/internal/notes"
)

// DefaultTTL is how long a loaded document is served from memory.
const DefaultTTL = 30 * time.Second

// Committer records a snapshot of files after a successful save.
//
// history.Repo implements it.
type Committer interface {
	Commit(ctx context.Context, msg string, files ...string) error
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the cache lifetime. Zero or negative disables the cache.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithHistory commits the data file after each successful save.
func WithHistory(c Committer) Option {
	return func(s *Store) { s.history = c }
}

// Store reads and writes the note collection file.
type Store struct {
	path    string
	ttl     time.Duration
	now     func() time.Time
	history Committer

	// writeMu serializes Modify.
	writeMu sync.Mutex

	mu       sync.Mutex
	cache    notes.Collection
	cachedAt time.Time
}

// New returns a Store for the JSON file at path. The file is created lazily
// on first access.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: empty data file path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve %s: %w", path, err)
	}
	s := &Store{path: abs, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Path returns the absolute path of the data file.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the directory holding the data file and its backups.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// Load returns the current collection.
//
// A cached copy younger than the TTL is returned without touching the file
// system. A file that does not parse is logged and reported as an empty
// collection; only I/O failures are returned as errors.
func (s *Store) Load(ctx context.Context) (notes.Collection, error) {
	if c, ok := s.cached(); ok {
		return c, nil
	}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	var c notes.Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		slog.ErrorContext(ctx, "Data file is not valid JSON, serving an empty collection", "path", s.path, "err", err)
		return notes.Collection{}, nil
	}
	if c == nil {
		// The file held "null".
		c = notes.Collection{}
	}
	s.setCache(c)
	return c.Clone(), nil
}

// Save overwrites the data file with c and refreshes the cache.
func (s *Store) Save(ctx context.Context, c notes.Collection) error {
	if c == nil {
		c = notes.Collection{}
	}
	if err := writeJSON(s.path, c); err != nil {
		return err
	}
	s.setCache(c)
	if s.history != nil {
		if err := s.history.Commit(ctx, "Update notes", filepath.Base(s.path)); err != nil {
			slog.WarnContext(ctx, "Failed to record history", "path", s.path, "err", err)
		}
	}
	return nil
}

// Modify loads the collection, lets fn change a private copy and saves the
// result. If fn returns an error nothing is written.
func (s *Store) Modify(ctx context.Context, fn func(notes.Collection) error) (notes.Collection, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	c, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Invalidate drops the cached copy so the next Load reads the file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = nil
	s.cachedAt = time.Time{}
}

func (s *Store) cached() (notes.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache == nil || s.ttl <= 0 || s.now().Sub(s.cachedAt) >= s.ttl {
		return nil, false
	}
	return s.cache.Clone(), true
}

func (s *Store) setCache(c notes.Collection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c.Clone()
	s.cachedAt = s.now()
}

// ensureFile creates the parent directory and an empty document if missing.
func (s *Store) ensureFile() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", s.path, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, []byte("{}"), 0o644); err != nil { //nolint:gosec // G306: notes are not secret
		return fmt.Errorf("failed to create %s: %w", s.path, err)
	}
	return nil
}

// writeJSON writes v as indented JSON, creating the parent directory.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: 0o755 is intentional for data directories
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: notes are not secret
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
