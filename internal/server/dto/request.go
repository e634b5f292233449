package dto

import (
	"strconv"

	"github.com/maruel/calnotes/internal/notes"
)

// --- Notes ---

// GetNotesRequest is a request for the whole collection.
type GetNotesRequest struct{}

// Validate is a no-op for GetNotesRequest.
func (r *GetNotesRequest) Validate() error {
	return nil
}

// SaveNotesRequest replaces the whole collection.
type SaveNotesRequest struct {
	Notes notes.Collection `json:"notes" jsonschema:"required,description=Full collection keyed by YYYY-M-D with a zero-indexed month"`
}

// Validate validates the save notes request fields.
func (r *SaveNotesRequest) Validate() error {
	if r.Notes == nil {
		return MissingField("notes")
	}
	for k := range r.Notes {
		if !notes.ValidKey(k) {
			return InvalidFormat("dateKey", k)
		}
	}
	return nil
}

// GetDayRequest is a request for the notes of one day.
type GetDayRequest struct {
	DateKey string `path:"dateKey" json:"-"`
}

// Validate validates the get day request fields.
func (r *GetDayRequest) Validate() error {
	return validateDateKey(r.DateKey)
}

// SaveDayRequest replaces the notes of one day.
type SaveDayRequest struct {
	DateKey string       `path:"dateKey" json:"-"`
	Notes   []notes.Note `json:"notes"`
}

// Validate validates the save day request fields.
func (r *SaveDayRequest) Validate() error {
	if err := validateDateKey(r.DateKey); err != nil {
		return err
	}
	if r.Notes == nil {
		return MissingField("notes")
	}
	return nil
}

// --- Backups ---

// BackupRequest snapshots the collection.
type BackupRequest struct{}

// Validate is a no-op for BackupRequest.
func (r *BackupRequest) Validate() error {
	return nil
}

// RestoreRequest replaces the collection with a backup.
type RestoreRequest struct {
	BackupFile string `json:"backupFile"`
}

// Validate validates the restore request fields.
func (r *RestoreRequest) Validate() error {
	if r.BackupFile == "" {
		return MissingField("backupFile")
	}
	return nil
}

// ListBackupsRequest lists backup files.
type ListBackupsRequest struct{}

// Validate is a no-op for ListBackupsRequest.
func (r *ListBackupsRequest) Validate() error {
	return nil
}

// --- History ---

// MaxHistory bounds HistoryRequest.Limit.
const MaxHistory = 1000

// HistoryRequest lists the commits of the data file.
type HistoryRequest struct {
	// Limit is the number of commits to return; 0 means 50.
	Limit int `query:"limit" json:"-"`
}

// Validate validates the history request fields.
func (r *HistoryRequest) Validate() error {
	if r.Limit < 0 || r.Limit > MaxHistory {
		return BadRequest("limit must be between 0 and " + strconv.Itoa(MaxHistory))
	}
	return nil
}

// --- Misc ---

// SchemaRequest asks for the JSON Schema of SaveNotesRequest.
type SchemaRequest struct{}

// Validate is a no-op for SchemaRequest.
func (r *SchemaRequest) Validate() error {
	return nil
}

// HealthRequest is a health check request.
type HealthRequest struct{}

// Validate is a no-op for HealthRequest.
func (r *HealthRequest) Validate() error {
	return nil
}

func validateDateKey(k string) error {
	if k == "" {
		return MissingField("dateKey")
	}
	if !notes.ValidKey(k) {
		return InvalidFormat("dateKey", k)
	}
	return nil
}
