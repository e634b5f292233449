// Provides handlers for backup snapshots.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maruel/calnotes/internal/server/dto"
	"github.com/maruel/calnotes/internal/store"
)

// BackupsHandler serves /api/notes/backup, /restore and /backups.
type BackupsHandler struct {
	store Store
}

// NewBackupsHandler creates a new backups handler.
func NewBackupsHandler(s Store) *BackupsHandler {
	return &BackupsHandler{store: s}
}

// Backup snapshots the collection and returns the backup path.
func (h *BackupsHandler) Backup(ctx context.Context, _ *dto.BackupRequest) (*dto.Envelope[dto.BackupResponse], error) {
	path, err := h.store.Backup(ctx)
	if err != nil {
		return nil, dto.Storage("Failed to back up notes", err)
	}
	slog.InfoContext(ctx, "Created backup", "path", path)
	return &dto.Envelope[dto.BackupResponse]{Message: "Backup created", Data: dto.BackupResponse{BackupFile: path}}, nil
}

// Restore replaces the collection with a backup file.
func (h *BackupsHandler) Restore(ctx context.Context, req *dto.RestoreRequest) (*dto.Envelope[dto.NotesResponse], error) {
	c, err := h.store.Restore(ctx, req.BackupFile)
	switch {
	case errors.Is(err, store.ErrBackupNotFound):
		return nil, dto.BackupNotFound(req.BackupFile).Wrap(err)
	case errors.Is(err, store.ErrInvalidBackup):
		return nil, dto.InvalidBackup(req.BackupFile).Wrap(err)
	case err != nil:
		return nil, dto.Storage("Failed to restore notes", err)
	}
	slog.InfoContext(ctx, "Restored backup", "path", req.BackupFile, "days", len(c))
	return &dto.Envelope[dto.NotesResponse]{Message: "Notes restored", Data: c}, nil
}

// ListBackups lists the backup files, newest first.
func (h *BackupsHandler) ListBackups(ctx context.Context, _ *dto.ListBackupsRequest) (*dto.Envelope[dto.BackupsResponse], error) {
	infos, err := h.store.Backups(ctx)
	if err != nil {
		return nil, dto.Storage("Failed to list backups", err)
	}
	out := make(dto.BackupsResponse, 0, len(infos))
	for _, b := range infos {
		out = append(out, dto.BackupEntry{
			BackupFile: b.Path,
			Size:       b.Size,
			Modified:   b.Modified.UTC().Format(time.RFC3339),
		})
	}
	return &dto.Envelope[dto.BackupsResponse]{Message: "Backups listed", Data: out}, nil
}
