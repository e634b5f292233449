// Snapshots the document to timestamped files and restores from them.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/maruel/calnotes/internal/notes"
)

var (
	// ErrBackupNotFound is returned by Restore when the backup file is absent.
	ErrBackupNotFound = errors.New("backup file does not exist")
	// ErrInvalidBackup is returned by Restore when the backup does not parse.
	ErrInvalidBackup = errors.New("backup file is not a valid notes document")
)

const backupGlob = "backup_*.json"

// BackupInfo describes one backup file.
type BackupInfo struct {
	Path     string
	Size     int64
	Modified time.Time
}

// BackupName returns the backup file name for t: the ISO-8601 UTC timestamp
// with millisecond precision, ':' and '.' replaced by '-'.
func BackupName(t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "backup_" + ts + ".json"
}

// Backup writes the current collection next to the data file and returns
// the absolute path of the snapshot.
func (s *Store) Backup(ctx context.Context) (string, error) {
	c, err := s.Load(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir(), BackupName(s.now()))
	if err := writeJSON(path, c); err != nil {
		return "", err
	}
	return path, nil
}

// Restore replaces the collection with the content of a backup file.
// Relative paths are resolved against the data directory. On any error the
// stored collection is left unchanged.
func (s *Store) Restore(ctx context.Context, path string) (notes.Collection, error) {
	if path == "" {
		return nil, ErrBackupNotFound
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.Dir(), path)
	}
	raw, err := os.ReadFile(path) //nolint:gosec // G304: restoring an arbitrary local file is the feature
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, path)
		}
		return nil, fmt.Errorf("failed to read backup %s: %w", path, err)
	}
	var c notes.Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBackup, path, err)
	}
	if c == nil {
		c = notes.Collection{}
	}
	if err := s.Save(ctx, c); err != nil {
		return nil, err
	}
	return c.Clone(), nil
}

// Backups lists the backup files beside the data file, newest first.
func (s *Store) Backups(_ context.Context) ([]BackupInfo, error) {
	dir := s.Dir()
	matches, err := doublestar.Glob(os.DirFS(dir), backupGlob)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list backups in %s: %w", dir, err)
	}
	out := make([]BackupInfo, 0, len(matches))
	for _, m := range matches {
		fi, err := os.Stat(filepath.Join(dir, m))
		if err != nil || fi.IsDir() {
			continue
		}
		out = append(out, BackupInfo{Path: filepath.Join(dir, m), Size: fi.Size(), Modified: fi.ModTime()})
	}
	// The timestamp in the name sorts lexically.
	slices.SortFunc(out, func(a, b BackupInfo) int { return strings.Compare(b.Path, a.Path) })
	return out, nil
}
