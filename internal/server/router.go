// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/maruel/calnotes/internal/server/handlers"
	"github.com/maruel/calnotes/internal/server/ipgeo"
)

// Config holds what the router needs.
type Config struct {
	Store   handlers.Store
	Version string
	Limits  Limits
	// IPGeo is optional; without it only local and Tailscale addresses are
	// classified.
	IPGeo *ipgeo.Checker
	// StaticDir, when set, is served at "/".
	StaticDir string
	// History is optional; without it /api/notes/history answers 404.
	History handlers.History
	// HistoryFile is the data file name relative to the history repository.
	HistoryFile string
}

// NewRouter creates and configures the HTTP router.
// Serves API endpoints at /api/*, /health and optionally static files at /.
func NewRouter(cfg *Config) http.Handler {
	mux := &http.ServeMux{}
	l := &cfg.Limits
	nh := handlers.NewNotesHandler(cfg.Store)
	bh := handlers.NewBackupsHandler(cfg.Store)
	hh := handlers.NewHealthHandler(cfg.Version)
	sh := handlers.NewSchemaHandler()
	gh := handlers.NewHistoryHandler(cfg.History, cfg.HistoryFile)

	mux.Handle("GET /health", WrapPlain(hh.Health, l))
	mux.Handle("GET /api/schema", Wrap(sh.Schema, l))

	// Notes endpoints
	mux.Handle("GET /api/notes", Wrap(nh.GetNotes, l))
	mux.Handle("POST /api/notes", Wrap(nh.SaveNotes, l))
	mux.Handle("GET /api/notes/{dateKey}", Wrap(nh.GetDay, l))
	mux.Handle("PUT /api/notes/{dateKey}", Wrap(nh.SaveDay, l))

	// Backup endpoints
	mux.Handle("POST /api/notes/backup", Wrap(bh.Backup, l))
	mux.Handle("POST /api/notes/restore", Wrap(bh.Restore, l))
	mux.Handle("GET /api/notes/backups", Wrap(bh.ListBackups, l))
	mux.Handle("GET /api/notes/history", Wrap(gh.History, l))

	mux.HandleFunc("/api/", notFound)
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	} else {
		mux.HandleFunc("/", notFound)
	}
	return withRequestMetadata(cfg.IPGeo, accessLog(recoverPanics(cors(mux))))
}
