package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maruel/calnotes/internal/history"
	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/server/dto"
	"github.com/maruel/calnotes/internal/server/ratelimit"
	"github.com/maruel/calnotes/internal/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	*httptest.Server
	store *store.Store
	clock *fakeClock
}

func newTestServer(t *testing.T, mod func(*Config)) *testServer {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 1, 15, 10, 30, 0, 123e6, time.UTC)}
	s, err := store.New(filepath.Join(t.TempDir(), "data.json"), store.WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	cfg := &Config{Store: s, Version: "test"}
	if mod != nil {
		mod(cfg)
	}
	ts := httptest.NewServer(NewRouter(cfg))
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, store: s, clock: clock}
}

// call sends body as JSON and decodes the envelope.
func (ts *testServer) call(t *testing.T, method, path string, body any) (*http.Response, dto.Response) {
	t.Helper()
	var r *bytes.Reader
	switch b := body.(type) {
	case nil:
		r = bytes.NewReader(nil)
	case string:
		r = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(t.Context(), method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var env dto.Response
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: invalid envelope: %v", method, path, err)
		}
	}
	return resp, env
}

func decodeData[T any](t *testing.T, env dto.Response) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("data %s: %v", env.Data, err)
	}
	return out
}

func TestAPI_Notes(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, env := ts.call(t, http.MethodGet, "/api/notes", nil)
	if resp.StatusCode != http.StatusOK || !env.Success || string(env.Data) != "{}" {
		t.Fatalf("GET /api/notes = %d %+v", resp.StatusCode, env)
	}

	in := dto.SaveNotesRequest{Notes: notes.Collection{
		"2024-0-15": {{Text: "lunch", Font: "Arial", Size: "12px", Color: "#000000"}, {Text: "  "}},
		"2024-0-16": {{Text: "gym", Font: "Arial", Size: "14px", Color: "#ff0000"}},
	}}
	resp, env = ts.call(t, http.MethodPost, "/api/notes", in)
	if resp.StatusCode != http.StatusOK || !env.Success || env.Message == "" {
		t.Fatalf("POST /api/notes = %d %+v", resp.StatusCode, env)
	}
	if got := decodeData[notes.Collection](t, env); len(got["2024-0-15"]) != 1 {
		t.Errorf("blank note not filtered: %v", got)
	}

	// Replace one day; the other is untouched.
	resp, env = ts.call(t, http.MethodPut, "/api/notes/2024-0-15", dto.SaveDayRequest{Notes: []notes.Note{{Text: "dinner", Font: "Arial", Size: "12px", Color: "#000000"}}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT = %d %+v", resp.StatusCode, env)
	}
	_, env = ts.call(t, http.MethodGet, "/api/notes", nil)
	want := notes.Collection{
		"2024-0-15": {{Text: "dinner", Font: "Arial", Size: "12px", Color: "#000000"}},
		"2024-0-16": {{Text: "gym", Font: "Arial", Size: "14px", Color: "#ff0000"}},
	}
	if got := decodeData[notes.Collection](t, env); !got.Equal(want) {
		t.Errorf("GET after PUT = %v, want %v", got, want)
	}

	_, env = ts.call(t, http.MethodGet, "/api/notes/2024-0-16", nil)
	if got := decodeData[[]notes.Note](t, env); len(got) != 1 || got[0].Text != "gym" {
		t.Errorf("GET day = %v", got)
	}
	_, env = ts.call(t, http.MethodGet, "/api/notes/2024-5-1", nil)
	if string(env.Data) != "[]" {
		t.Errorf("GET absent day data = %s, want []", env.Data)
	}
}

func TestAPI_Errors(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   dto.ErrorCode
	}{
		{"missing notes", http.MethodPost, "/api/notes", `{}`, http.StatusBadRequest, dto.ErrorCodeMissingField},
		{"empty body", http.MethodPost, "/api/notes", nil, http.StatusBadRequest, dto.ErrorCodeMissingField},
		{"unknown field", http.MethodPost, "/api/notes", `{"notes":{},"extra":1}`, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"not json", http.MethodPost, "/api/notes", `{notes`, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"bad key in collection", http.MethodPost, "/api/notes", `{"notes":{"2024-12-1":[]}}`, http.StatusBadRequest, dto.ErrorCodeInvalidFormat},
		{"bad day key", http.MethodGet, "/api/notes/2024-02-30", nil, http.StatusBadRequest, dto.ErrorCodeInvalidFormat},
		{"put missing notes", http.MethodPut, "/api/notes/2024-0-15", `{}`, http.StatusBadRequest, dto.ErrorCodeMissingField},
		{"restore missing field", http.MethodPost, "/api/notes/restore", `{}`, http.StatusBadRequest, dto.ErrorCodeMissingField},
		{"history disabled", http.MethodGet, "/api/notes/history", nil, http.StatusNotFound, dto.ErrorCodeNotFound},
		{"history bad limit", http.MethodGet, "/api/notes/history?limit=ten", nil, http.StatusBadRequest, dto.ErrorCodeInvalidFormat},
		{"history limit too large", http.MethodGet, "/api/notes/history?limit=5000", nil, http.StatusBadRequest, dto.ErrorCodeValidationFailed},
		{"unknown api route", http.MethodGet, "/api/nope", nil, http.StatusNotFound, dto.ErrorCodeNotFound},
		{"unknown method", http.MethodDelete, "/api/notes", nil, http.StatusNotFound, dto.ErrorCodeNotFound},
		{"unknown route", http.MethodGet, "/index.html", nil, http.StatusNotFound, dto.ErrorCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, env := ts.call(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.status || env.Success || env.Code != tt.code || env.Message == "" {
				t.Errorf("%s %s = %d %+v, want %d %s", tt.method, tt.path, resp.StatusCode, env, tt.status, tt.code)
			}
		})
	}
}

func TestAPI_History(t *testing.T) {
	var repo *history.Repo
	ts := newTestServer(t, func(cfg *Config) {
		path := cfg.Store.(*store.Store).Path()
		var err error
		if repo, err = history.Open(filepath.Dir(path), "calnotes", "calnotes@localhost"); err != nil {
			t.Fatal(err)
		}
		cfg.History = repo
		cfg.HistoryFile = filepath.Base(path)
	})
	for _, text := range []string{"a", "b", "c"} {
		if resp, env := ts.call(t, http.MethodPost, "/api/notes", dto.SaveNotesRequest{Notes: notes.Collection{"2024-0-15": {{Text: text}}}}); resp.StatusCode != http.StatusOK {
			t.Fatalf("POST = %d %+v", resp.StatusCode, env)
		}
		if err := repo.Commit(t.Context(), "Update notes", "data.json"); err != nil {
			t.Fatal(err)
		}
	}
	resp, env := ts.call(t, http.MethodGet, "/api/notes/history?limit=2", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("GET history = %d %+v", resp.StatusCode, env)
	}
	if got := decodeData[dto.HistoryResponse](t, env); len(got) != 2 || got[0].Message != "Update notes" {
		t.Errorf("history = %+v", got)
	}
	_, env = ts.call(t, http.MethodGet, "/api/notes/history", nil)
	if got := decodeData[dto.HistoryResponse](t, env); len(got) != 3 {
		t.Errorf("history without limit = %d entries, want 3", len(got))
	}
}

func TestAPI_CacheTTL(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.call(t, http.MethodPost, "/api/notes", dto.SaveNotesRequest{Notes: notes.Collection{"2024-0-1": {{Text: "a"}}}})
	// Edit the file behind the server's back.
	if err := os.WriteFile(ts.store.Path(), []byte(`{"2024-0-2":[{"text":"b","font":"Arial","size":"12px","color":"#000000"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	ts.clock.Advance(29 * time.Second)
	_, env := ts.call(t, http.MethodGet, "/api/notes", nil)
	if got := decodeData[notes.Collection](t, env); got["2024-0-1"] == nil {
		t.Errorf("cache not served within TTL: %v", got)
	}
	ts.clock.Advance(time.Second)
	_, env = ts.call(t, http.MethodGet, "/api/notes", nil)
	if got := decodeData[notes.Collection](t, env); got["2024-0-2"] == nil {
		t.Errorf("file not reread after TTL: %v", got)
	}
}

func TestAPI_Backups(t *testing.T) {
	ts := newTestServer(t, nil)
	orig := notes.Collection{"2024-0-15": {{Text: "keep", Font: "Arial", Size: "12px", Color: "#000000"}}}
	ts.call(t, http.MethodPost, "/api/notes", dto.SaveNotesRequest{Notes: orig})

	resp, env := ts.call(t, http.MethodPost, "/api/notes/backup", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("backup = %d %+v", resp.StatusCode, env)
	}
	b := decodeData[dto.BackupResponse](t, env)
	if filepath.Base(b.BackupFile) != "backup_2024-01-15T10-30-00-123Z.json" {
		t.Errorf("backupFile = %q", b.BackupFile)
	}

	ts.call(t, http.MethodPost, "/api/notes", dto.SaveNotesRequest{Notes: notes.Collection{}})

	// A missing backup leaves the state alone.
	resp, env = ts.call(t, http.MethodPost, "/api/notes/restore", dto.RestoreRequest{BackupFile: "/nonexistent/backup.json"})
	if resp.StatusCode != http.StatusNotFound || env.Code != dto.ErrorCodeBackupNotFound || env.Details["backupFile"] != "/nonexistent/backup.json" {
		t.Errorf("restore missing = %d %+v", resp.StatusCode, env)
	}
	_, env = ts.call(t, http.MethodGet, "/api/notes", nil)
	if string(env.Data) != "{}" {
		t.Errorf("state changed by failed restore: %s", env.Data)
	}

	resp, env = ts.call(t, http.MethodPost, "/api/notes/restore", dto.RestoreRequest{BackupFile: b.BackupFile})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("restore = %d %+v", resp.StatusCode, env)
	}
	if got := decodeData[notes.Collection](t, env); !got.Equal(orig) {
		t.Errorf("restore data = %v", got)
	}
	_, env = ts.call(t, http.MethodGet, "/api/notes", nil)
	if got := decodeData[notes.Collection](t, env); !got.Equal(orig) {
		t.Errorf("GET after restore = %v", got)
	}

	_, env = ts.call(t, http.MethodGet, "/api/notes/backups", nil)
	list := decodeData[[]dto.BackupEntry](t, env)
	if len(list) != 1 || list[0].BackupFile != b.BackupFile {
		t.Errorf("backups = %+v", list)
	}
}

func TestAPI_PayloadTooLarge(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.Limits.MaxBodyBytes = 1024 })
	big := `{"notes":{"2024-0-1":[{"text":"` + strings.Repeat("x", 2048) + `"}]}}`
	resp, env := ts.call(t, http.MethodPost, "/api/notes", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge || env.Code != dto.ErrorCodePayloadTooLarge {
		t.Errorf("POST big = %d %+v", resp.StatusCode, env)
	}
}

func TestAPI_RateLimit(t *testing.T) {
	rl := ratelimit.NewConfig(600, 1)
	t.Cleanup(rl.Close)
	ts := newTestServer(t, func(c *Config) { c.Limits.RateLimits = rl })
	body := dto.SaveNotesRequest{Notes: notes.Collection{}}
	resp, _ := ts.call(t, http.MethodPost, "/api/notes", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first POST = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Limit") == "" {
		t.Error("rate limit headers missing")
	}
	resp, env := ts.call(t, http.MethodPost, "/api/notes", body)
	if resp.StatusCode != http.StatusTooManyRequests || env.Code != dto.ErrorCodeRateLimitExceeded {
		t.Fatalf("second POST = %d %+v", resp.StatusCode, env)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After missing")
	}
	// Reads use their own bucket and /health is exempt.
	if resp, _ := ts.call(t, http.MethodGet, "/api/notes", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("GET after write limit = %d", resp.StatusCode)
	}
	if resp, _ := ts.call(t, http.MethodGet, "/health", nil); resp.Header.Get("X-RateLimit-Limit") != "" {
		t.Error("/health is rate limited")
	}
}

func TestAPI_Health(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	var h dto.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || h.Status != "OK" || h.Service != "Calendar Notebook" || h.Version != "test" {
		t.Errorf("health = %d %+v", resp.StatusCode, h)
	}
	if _, err := time.Parse(time.RFC3339Nano, h.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", h.Timestamp, err)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("request ID header missing")
	}
}

func TestAPI_CORS(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := ts.call(t, http.MethodOptions, "/api/notes", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS = %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("headers = %v", resp.Header)
	}
	resp, _ = ts.call(t, http.MethodGet, "/api/notes", nil)
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing on GET")
	}
}

func TestAPI_Schema(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, env := ts.call(t, http.MethodGet, "/api/schema", nil)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(env.Data, []byte(`"notes"`)) {
		t.Errorf("schema = %d %s", resp.StatusCode, env.Data)
	}
}

func TestAPI_StaticDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o600); err != nil {
		t.Fatal(err)
	}
	ts := newTestServer(t, func(c *Config) { c.StaticDir = dir })
	resp, err := ts.Client().Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("static = %d", resp.StatusCode)
	}
	if resp, _ := ts.call(t, http.MethodGet, "/api/nope", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("/api/nope = %d", resp.StatusCode)
	}
}

// panicStore panics on every read.
type panicStore struct{ *store.Store }

func (panicStore) Load(context.Context) (notes.Collection, error) { panic("boom") }

func TestAPI_Panic(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.Store = panicStore{c.Store.(*store.Store)} })
	resp, env := ts.call(t, http.MethodGet, "/api/notes", nil)
	if resp.StatusCode != http.StatusInternalServerError || env.Success || env.Code != dto.ErrorCodeInternal {
		t.Errorf("panic = %d %+v", resp.StatusCode, env)
	}
}

func TestAPI_StorageFailure(t *testing.T) {
	ts := newTestServer(t, nil)
	// A directory where the data file should be makes every read fail.
	if err := os.Mkdir(ts.store.Path(), 0o700); err != nil {
		t.Fatal(err)
	}
	resp, env := ts.call(t, http.MethodGet, "/api/notes", nil)
	if resp.StatusCode != http.StatusInternalServerError || env.Code != dto.ErrorCodeStorageError {
		t.Errorf("GET = %d %+v", resp.StatusCode, env)
	}
	if strings.Contains(env.Message, ts.store.Path()) {
		t.Errorf("message leaks internals: %q", env.Message)
	}
}
