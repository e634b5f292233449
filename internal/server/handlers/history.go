// Provides the git history of the data file.

package handlers

import (
	"context"
	"time"

	"github.com/maruel/calnotes/internal/history"
	"github.com/maruel/calnotes/internal/server/dto"
)

// History lists the commits of a file. *history.Repo implements it.
type History interface {
	Log(ctx context.Context, path string, n int) ([]history.Commit, error)
}

var _ History = (*history.Repo)(nil)

const defaultHistory = 50

// HistoryHandler serves /api/notes/history.
type HistoryHandler struct {
	history History
	file    string
}

// NewHistoryHandler creates a history handler for file, relative to the
// repository. h is nil when the server runs without history.
func NewHistoryHandler(h History, file string) *HistoryHandler {
	return &HistoryHandler{history: h, file: file}
}

// History lists the commits of the data file, newest first.
func (h *HistoryHandler) History(ctx context.Context, req *dto.HistoryRequest) (*dto.Envelope[dto.HistoryResponse], error) {
	if h.history == nil {
		return nil, dto.NotFound("History")
	}
	n := req.Limit
	if n == 0 {
		n = defaultHistory
	}
	commits, err := h.history.Log(ctx, h.file, n)
	if err != nil {
		return nil, dto.Storage("Failed to read history", err)
	}
	out := make(dto.HistoryResponse, 0, len(commits))
	for _, c := range commits {
		out = append(out, dto.HistoryEntry{
			Hash:    c.Hash,
			Message: c.Message,
			Author:  c.Author,
			When:    c.When.UTC().Format(time.RFC3339),
		})
	}
	return &dto.Envelope[dto.HistoryResponse]{Message: "History listed", Data: out}, nil
}
