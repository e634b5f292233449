// Package syncclient talks to the notes server and keeps a client replica
// converging toward the server document.
//
// [Client] is a typed wrapper around the HTTP API. [Syncer] owns the
// in-memory collection of one client, pulls the server document
// periodically and on demand, and pushes local edits.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/server/dto"
)

// ClientIDHeader identifies the client instance on every request.
const ClientIDHeader = "X-Client-ID"

// FailureKind tells a network failure apart from a failure reported by the
// server.
type FailureKind int

const (
	// FailureNetwork means the request did not complete: connection refused,
	// DNS failure, reset, canceled context.
	FailureNetwork FailureKind = iota + 1
	// FailureServer means the server answered with a failure envelope or a
	// response that could not be understood.
	FailureServer
)

func (k FailureKind) String() string {
	switch k {
	case FailureNetwork:
		return "network"
	case FailureServer:
		return "server"
	default:
		return "unknown"
	}
}

// SyncError is returned by Client methods and by Syncer.Push.
type SyncError struct {
	Kind       FailureKind
	Op         string
	StatusCode int
	Code       dto.ErrorCode
	Message    string
	Err        error
}

func (e *SyncError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
	case e.Code != "":
		return fmt.Sprintf("%s: %s failure (%d %s): %s", e.Op, e.Kind, e.StatusCode, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s: %s failure (%d): %s", e.Op, e.Kind, e.StatusCode, e.Message)
	}
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// KindOf returns the FailureKind of err, or 0 if err is not a *SyncError.
func KindOf(err error) FailureKind {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.hc = hc }
}

// WithClientID sets the X-Client-ID value instead of a random one.
func WithClientID(id string) ClientOption {
	return func(c *Client) { c.id = id }
}

// Client calls the notes HTTP API.
//
// There is no client-side timeout; bound calls with the context.
type Client struct {
	base string
	hc   *http.Client
	id   string
}

// NewClient returns a client for the server at baseURL, e.g.
// "http://localhost:3001".
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base: strings.TrimSuffix(u.String(), "/"),
		hc:   http.DefaultClient,
		id:   uuid.NewString(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// ID returns the client instance ID sent with every request.
func (c *Client) ID() string {
	return c.id
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string {
	return c.base
}

// Notes fetches the whole collection.
func (c *Client) Notes(ctx context.Context) (notes.Collection, error) {
	var out dto.NotesResponse
	if err := c.do(ctx, "load notes", http.MethodGet, "/api/notes", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = notes.Collection{}
	}
	return out, nil
}

// SaveNotes replaces the whole collection and returns what the server
// stored.
func (c *Client) SaveNotes(ctx context.Context, col notes.Collection) (notes.Collection, error) {
	if col == nil {
		col = notes.Collection{}
	}
	var out dto.NotesResponse
	if err := c.do(ctx, "save notes", http.MethodPost, "/api/notes", &dto.SaveNotesRequest{Notes: col}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Day fetches the notes of one day.
func (c *Client) Day(ctx context.Context, key string) ([]notes.Note, error) {
	var out dto.DayResponse
	if err := c.do(ctx, "load day", http.MethodGet, "/api/notes/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []notes.Note{}
	}
	return out, nil
}

// SaveDay replaces the notes of one day on the server.
func (c *Client) SaveDay(ctx context.Context, key string, ns []notes.Note) ([]notes.Note, error) {
	if ns == nil {
		ns = []notes.Note{}
	}
	var out dto.DayResponse
	if err := c.do(ctx, "save day", http.MethodPut, "/api/notes/"+url.PathEscape(key), &dto.SaveDayRequest{Notes: ns}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Backup asks the server to snapshot its document and returns the path of
// the backup file on the server.
func (c *Client) Backup(ctx context.Context) (string, error) {
	var out dto.BackupResponse
	if err := c.do(ctx, "backup", http.MethodPost, "/api/notes/backup", nil, &out); err != nil {
		return "", err
	}
	return out.BackupFile, nil
}

// Restore replaces the server document with a backup file.
func (c *Client) Restore(ctx context.Context, backupFile string) (notes.Collection, error) {
	var out dto.NotesResponse
	if err := c.do(ctx, "restore", http.MethodPost, "/api/notes/restore", &dto.RestoreRequest{BackupFile: backupFile}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Backups lists the backup files on the server, newest first.
func (c *Client) Backups(ctx context.Context) ([]dto.BackupEntry, error) {
	var out dto.BackupsResponse
	if err := c.do(ctx, "list backups", http.MethodGet, "/api/notes/backups", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// History lists up to limit commits of the server's data file, newest
// first. limit 0 lets the server choose.
func (c *Client) History(ctx context.Context, limit int) ([]dto.HistoryEntry, error) {
	path := "/api/notes/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out dto.HistoryResponse
	if err := c.do(ctx, "history", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Health calls /health, which is not enveloped.
func (c *Client) Health(ctx context.Context) (*dto.HealthResponse, error) {
	const op = "health"
	resp, err := c.send(ctx, op, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &SyncError{Kind: FailureServer, Op: op, StatusCode: resp.StatusCode, Message: resp.Status}
	}
	out := &dto.HealthResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, &SyncError{Kind: FailureServer, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return out, nil
}

// do sends in as JSON and decodes the envelope data into out.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	resp, err := c.send(ctx, op, method, path, in)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SyncError{Kind: FailureNetwork, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	var env dto.Response
	if err := json.Unmarshal(body, &env); err != nil {
		return &SyncError{Kind: FailureServer, Op: op, StatusCode: resp.StatusCode, Message: resp.Status, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if !env.Success || resp.StatusCode >= http.StatusBadRequest {
		return &SyncError{Kind: FailureServer, Op: op, StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &SyncError{Kind: FailureServer, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response data: %w", err)}
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, op, method, path string, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(ClientIDHeader, c.id)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &SyncError{Kind: FailureNetwork, Op: op, Err: err}
	}
	return resp, nil
}
