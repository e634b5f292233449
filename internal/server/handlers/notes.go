// Provides handlers for the note collection and single days.

package handlers

import (
	"context"
	"log/slog"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/server/dto"
)

// NotesHandler serves /api/notes.
type NotesHandler struct {
	store Store
}

// NewNotesHandler creates a new notes handler.
func NewNotesHandler(s Store) *NotesHandler {
	return &NotesHandler{store: s}
}

// GetNotes returns the whole collection.
func (h *NotesHandler) GetNotes(ctx context.Context, _ *dto.GetNotesRequest) (*dto.Envelope[dto.NotesResponse], error) {
	c, err := h.store.Load(ctx)
	if err != nil {
		return nil, dto.Storage("Failed to load notes", err)
	}
	return &dto.Envelope[dto.NotesResponse]{Message: "Notes retrieved", Data: c}, nil
}

// SaveNotes replaces the whole collection. Blank notes are dropped before
// saving and the stored collection is echoed back.
func (h *NotesHandler) SaveNotes(ctx context.Context, req *dto.SaveNotesRequest) (*dto.Envelope[dto.NotesResponse], error) {
	c := req.Notes.Clean()
	if err := h.store.Save(ctx, c); err != nil {
		return nil, dto.Storage("Failed to save notes", err)
	}
	slog.InfoContext(ctx, "Saved notes", "days", len(c), "notes", c.Len())
	return &dto.Envelope[dto.NotesResponse]{Message: "Notes saved", Data: c}, nil
}

// GetDay returns the notes of one day, an empty list if there are none.
func (h *NotesHandler) GetDay(ctx context.Context, req *dto.GetDayRequest) (*dto.Envelope[dto.DayResponse], error) {
	c, err := h.store.Load(ctx)
	if err != nil {
		return nil, dto.Storage("Failed to load notes", err)
	}
	return &dto.Envelope[dto.DayResponse]{Message: "Day notes retrieved", Data: c.Day(req.DateKey)}, nil
}

// SaveDay replaces the notes of one day and leaves the other days alone.
func (h *NotesHandler) SaveDay(ctx context.Context, req *dto.SaveDayRequest) (*dto.Envelope[dto.DayResponse], error) {
	day := notes.Clean(req.Notes)
	_, err := h.store.Modify(ctx, func(c notes.Collection) error {
		c[req.DateKey] = day
		return nil
	})
	if err != nil {
		return nil, dto.Storage("Failed to update day notes", err)
	}
	slog.InfoContext(ctx, "Saved day", "dateKey", req.DateKey, "notes", len(day))
	return &dto.Envelope[dto.DayResponse]{Message: "Day notes updated", Data: day}, nil
}
