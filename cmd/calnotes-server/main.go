// Package main is the entry point for the calnotes server.
//
// calnotes-server stores calendar notes as one JSON document and exposes
// them over a JSON HTTP API. Configuration comes from the PORT, DATA_FILE
// and CACHE_TTL environment variables, overridden by flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/calnotes/internal/history"
	"github.com/maruel/calnotes/internal/logging"
	"github.com/maruel/calnotes/internal/server"
	"github.com/maruel/calnotes/internal/server/ipgeo"
	"github.com/maruel/calnotes/internal/server/ratelimit"
	"github.com/maruel/calnotes/internal/store"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "calnotes-server: %v\n", err)
		os.Exit(1)
	}
}

// envDefaults holds the values read from the environment.
type envDefaults struct {
	port     int
	dataFile string
	cacheTTL time.Duration
}

// readEnv returns the defaults overridden by PORT, DATA_FILE and CACHE_TTL
// (milliseconds).
func readEnv(getenv func(string) string) (envDefaults, error) {
	d := envDefaults{port: 3001, dataFile: "./data.json", cacheTTL: store.DefaultTTL}
	if v := getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return d, fmt.Errorf("invalid PORT %q", v)
		}
		d.port = p
	}
	if v := getenv("DATA_FILE"); v != "" {
		d.dataFile = v
	}
	if v := getenv("CACHE_TTL"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil || ms < 0 {
			return d, fmt.Errorf("invalid CACHE_TTL %q", v)
		}
		d.cacheTTL = time.Duration(ms) * time.Millisecond
	}
	return d, nil
}

func mainImpl() error {
	env, err := readEnv(os.Getenv)
	if err != nil {
		return err
	}
	version := flag.Bool("version", false, "Print version and exit")
	port := flag.Int("port", env.port, "Port to listen on ($PORT)")
	dataFile := flag.String("data-file", env.dataFile, "Path of the JSON data file ($DATA_FILE)")
	cacheTTL := flag.Duration("cache-ttl", env.cacheTTL, "How long a loaded document is served from memory ($CACHE_TTL in ms)")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	staticDir := flag.String("static-dir", "", "Directory served at / (optional)")
	gitHistory := flag.Bool("git-history", false, "Commit the data file to a git repository in its directory after each save")
	geoDB := flag.String("geo-db", "", "Path to MaxMind MMDB file for IP geolocation (optional)")
	rateRead := flag.Int("rate-read", 600, "Read requests per minute per IP; 0 disables rate limiting")
	rateWrite := flag.Int("rate-write", 120, "Write requests per minute per IP; 0 disables rate limiting")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	slog.SetDefault(logging.New(os.Stderr, ll))
	if err := logging.SetLevel(ll, *logLevel); err != nil {
		return err
	}

	path, err := filepath.Abs(*dataFile)
	if err != nil {
		return fmt.Errorf("invalid data file %q: %w", *dataFile, err)
	}
	opts := []store.Option{store.WithTTL(*cacheTTL)}
	var repo *history.Repo
	if *gitHistory {
		if repo, err = history.Open(filepath.Dir(path), "calnotes", "calnotes@localhost"); err != nil {
			return fmt.Errorf("failed to open git history: %w", err)
		}
		opts = append(opts, store.WithHistory(repo))
		slog.InfoContext(ctx, "Git history enabled", "dir", repo.Dir())
	}
	st, err := store.New(path, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	// Create the file up front so permission problems show at startup.
	if _, err := st.Load(ctx); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go invalidateOn(ctx, st, hup)

	// Watch own executable for modifications (for development restarts)
	if err := watchExecutable(ctx, stop); err != nil {
		return fmt.Errorf("failed to watch executable: %w", err)
	}

	// Open IP geolocation database if configured
	var geoChecker *ipgeo.Checker
	if *geoDB != "" {
		geoChecker, err = ipgeo.Open(*geoDB)
		if err != nil {
			return fmt.Errorf("failed to open geo database: %w", err)
		}
		defer func() { _ = geoChecker.Close() }()
		slog.InfoContext(ctx, "IP geolocation enabled", "db", *geoDB)
	}

	var limits *ratelimit.Config
	if *rateRead > 0 && *rateWrite > 0 {
		limits = ratelimit.NewConfig(*rateRead, *rateWrite)
		defer limits.Close()
	}

	buildVersion, _, _, _ := getBuildInfo()
	cfg := &server.Config{
		Store:     st,
		Version:   buildVersion,
		Limits:    server.Limits{RateLimits: limits},
		IPGeo:     geoChecker,
		StaticDir: *staticDir,
	}
	if repo != nil {
		cfg.History = repo
		cfg.HistoryFile = filepath.Base(path)
	}

	addr := net.JoinHostPort("", strconv.Itoa(*port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(cfg),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "Starting server", "addr", addr, "data", path, "ttl", *cacheTTL, "version", buildVersion)
		serverErr <- httpServer.ListenAndServe()
	}()

	// Wait for either context cancellation or server error
	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.InfoContext(ctx, "Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		slog.InfoContext(ctx, "Server stopped")
	}
	return nil
}

// invalidateOn drops the cached document each time a signal arrives on sig
// (SIGHUP), so edits made to the data file by hand are served without
// waiting for the cache to expire.
func invalidateOn(ctx context.Context, st *store.Store, sig <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-sig:
			st.Invalidate()
			slog.InfoContext(ctx, "Cache dropped", "signal", s.String(), "data", st.Path())
		}
	}
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("calnotes-server %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}

// watchExecutable watches the current executable for modifications and calls
// stop to trigger graceful shutdown when detected.
func watchExecutable(ctx context.Context, stop context.CancelFunc) error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(exe); err != nil {
		_ = w.Close()
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Chmod) {
					slog.InfoContext(ctx, "Executable modified, initiating shutdown")
					stop()
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching executable", "err", err)
			}
		}
	}()
	return nil
}
