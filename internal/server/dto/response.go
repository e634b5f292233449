package dto

import (
	"encoding/json"

	"github.com/maruel/calnotes/internal/notes"
)

// Response is the envelope of every API reply except /health.
//
// Code is only set on failures.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Code    ErrorCode       `json:"code,omitempty"`
	Details map[string]any  `json:"details,omitempty"`
}

// Envelope carries a typed payload and the success message shown to users.
//
// Handlers return it; Wrap renders it as a Response.
type Envelope[T any] struct {
	Message string
	Data    T
}

// NotesResponse is the data of GET and POST /api/notes and of restore.
type NotesResponse = notes.Collection

// DayResponse is the data of GET and PUT /api/notes/{dateKey}.
type DayResponse = []notes.Note

// BackupResponse is the data of POST /api/notes/backup.
type BackupResponse struct {
	BackupFile string `json:"backupFile"`
}

// BackupEntry describes one backup file.
type BackupEntry struct {
	BackupFile string `json:"backupFile"`
	Size       int64  `json:"size"`
	Modified   string `json:"modified"` // RFC3339
}

// BackupsResponse is the data of GET /api/notes/backups, newest first.
type BackupsResponse = []BackupEntry

// HistoryEntry describes one commit of the data file.
type HistoryEntry struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Author  string `json:"author"`
	When    string `json:"when"` // RFC3339
}

// HistoryResponse is the data of GET /api/notes/history, newest first.
type HistoryResponse = []HistoryEntry

// HealthResponse is returned by /health, without envelope.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"` // RFC3339 with milliseconds
	Service   string `json:"service"`
	Version   string `json:"version"`
}
