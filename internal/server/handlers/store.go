// Package handlers implements the HTTP API on top of the note store.
//
// Handlers are plain methods of the form
// func(ctx, *dto.XRequest) (*dto.Envelope[T], error); server.Wrap adapts
// them to http.Handler.
package handlers

import (
	"context"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/store"
)

// Store is the persistence the handlers need. *store.Store implements it.
type Store interface {
	Load(ctx context.Context) (notes.Collection, error)
	Save(ctx context.Context, c notes.Collection) error
	Modify(ctx context.Context, fn func(notes.Collection) error) (notes.Collection, error)
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, path string) (notes.Collection, error)
	Backups(ctx context.Context) ([]store.BackupInfo, error)
}

var _ Store = (*store.Store)(nil)
