// Keeps a client's in-memory collection in sync with the server.

package syncclient

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/maruel/calnotes/internal/replica"
)

// DefaultInterval is the period of background pulls.
const DefaultInterval = 30 * time.Second

// DefaultPushTimeout bounds one push to the server.
const DefaultPushTimeout = time.Minute

// Remote is the part of the API the Syncer needs.
//
// *Client implements it.
type Remote interface {
	Notes(ctx context.Context) (notes.Collection, error)
	SaveNotes(ctx context.Context, c notes.Collection) (notes.Collection, error)
}

// Source tells where InitialLoad found the collection.
type Source int

const (
	// SourceServer means the server answered.
	SourceServer Source = iota + 1
	// SourceLocal means the server failed and the replica was used.
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceServer:
		return "server"
	case SourceLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithOnChange registers fn, called with a private copy of the collection
// each time a pull or the initial load replaces it.
func WithOnChange(fn func(notes.Collection)) Option {
	return func(s *Syncer) { s.onChange = fn }
}

// WithPushTimeout replaces DefaultPushTimeout. 0 disables the bound.
func WithPushTimeout(d time.Duration) Option {
	return func(s *Syncer) { s.pushTimeout = d }
}

// Syncer holds the in-memory collection of one client.
//
// A pull never overwrites a local edit it could not have seen: every push
// bumps a sequence number, and a pull whose request was issued while a push
// was in flight, or before a push started, is discarded. The next pull
// brings the server copy in. Pushes are bounded by a timeout so a hung
// request cannot hold pulls off forever.
//
// All methods are safe for concurrent use.
type Syncer struct {
	remote      Remote
	local       replica.LocalStore
	onChange    func(notes.Collection)
	pushTimeout time.Duration

	mu      sync.Mutex
	cur     notes.Collection
	seq     uint64
	pushing int

	// saveMu orders replica writes so the last one holds the newest state.
	saveMu sync.Mutex

	background sync.WaitGroup
}

// New returns a Syncer with an empty collection.
func New(remote Remote, local replica.LocalStore, opts ...Option) *Syncer {
	s := &Syncer{remote: remote, local: local, cur: notes.Collection{}, pushTimeout: DefaultPushTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Notes returns a copy of the in-memory collection.
func (s *Syncer) Notes() notes.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.Clone()
}

// Day returns a copy of the notes of one day.
func (s *Syncer) Day(key string) []notes.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur.Day(key)
}

// InitialLoad fetches the server collection and adopts it. If the server
// cannot be reached or reports a failure, the replica is adopted instead and
// pushed once in the background; that push only logs its outcome. Use Wait
// to block until it completes.
func (s *Syncer) InitialLoad(ctx context.Context) Source {
	remote, err := s.remote.Notes(ctx)
	if err == nil {
		s.mu.Lock()
		s.cur = remote.Clone()
		s.mu.Unlock()
		s.persist()
		s.notify()
		slog.DebugContext(ctx, "Loaded notes from server", "days", len(remote))
		return SourceServer
	}
	slog.WarnContext(ctx, "Server unavailable, using local copy", "kind", KindOf(err), "err", err)
	local, lerr := s.local.Load()
	if lerr != nil {
		slog.ErrorContext(ctx, "Failed to read local copy", "err", lerr)
		local = notes.Collection{}
	}
	snap := s.begin(func(notes.Collection) notes.Collection { return local })
	s.notify()
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx := context.WithoutCancel(ctx)
		if err := s.send(ctx, snap); err != nil {
			slog.WarnContext(ctx, "Background push of local copy failed", "kind", KindOf(err), "err", err)
			return
		}
		slog.InfoContext(ctx, "Pushed local copy to server", "days", len(snap))
	}()
	return SourceLocal
}

// Wait blocks until background pushes started by InitialLoad are done.
func (s *Syncer) Wait() {
	s.background.Wait()
}

// Pull fetches the server collection. When it differs from the in-memory
// copy, the copy and the replica are replaced and the change callback runs.
// changed is false when nothing was applied, including when the result was
// discarded because a push started while the request was in flight.
func (s *Syncer) Pull(ctx context.Context) (changed bool, err error) {
	s.mu.Lock()
	seq := s.seq
	busy := s.pushing > 0
	s.mu.Unlock()

	remote, err := s.remote.Notes(ctx)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	if busy || s.seq != seq {
		s.mu.Unlock()
		slog.DebugContext(ctx, "Discarding pull issued before a local edit", "seq", seq)
		return false, nil
	}
	if remote.Equal(s.cur) {
		s.mu.Unlock()
		return false, nil
	}
	s.cur = remote.Clone()
	s.mu.Unlock()
	s.persist()
	s.notify()
	return true, nil
}

// Push adopts c as the in-memory collection and sends it to the server. The
// replica is written whether or not the server accepted it; on failure the
// returned *SyncError tells the caller the edit only exists locally.
func (s *Syncer) Push(ctx context.Context, c notes.Collection) error {
	snap := s.begin(func(notes.Collection) notes.Collection { return c })
	return s.send(ctx, snap)
}

// SetDay replaces the notes of one day, dropping blank ones, and pushes the
// whole collection.
func (s *Syncer) SetDay(ctx context.Context, key string, ns []notes.Note) error {
	if !notes.ValidKey(key) {
		return fmt.Errorf("invalid date key %q", key)
	}
	cleaned := notes.Clean(ns)
	snap := s.begin(func(cur notes.Collection) notes.Collection {
		cur[key] = cleaned
		return cur
	})
	return s.send(ctx, snap)
}

// Run pulls immediately, then every interval and whenever a value arrives on
// wake, until ctx is done. Every tick issues its own pull in the background,
// so a hung request only stalls its own cycle; results are applied in the
// order they resolve. Failures are logged. Run returns once all pulls it
// started are done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, wake <-chan struct{}) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	var pulls sync.WaitGroup
	defer pulls.Wait()
	t := time.NewTicker(interval)
	defer t.Stop()
	s.startPull(ctx, &pulls, "startup")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.startPull(ctx, &pulls, "timer")
		case <-wake:
			s.startPull(ctx, &pulls, "wake")
		}
	}
}

func (s *Syncer) startPull(ctx context.Context, wg *sync.WaitGroup, reason string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		changed, err := s.Pull(ctx)
		if err != nil {
			if ctx.Err() == nil {
				slog.WarnContext(ctx, "Pull failed", "reason", reason, "kind", KindOf(err), "err", err)
			}
			return
		}
		slog.DebugContext(ctx, "Pulled", "reason", reason, "changed", changed)
	}()
}

// begin applies fn to a copy of the in-memory collection, adopts the result
// and marks a push in flight. It returns the adopted snapshot.
func (s *Syncer) begin(fn func(notes.Collection) notes.Collection) notes.Collection {
	s.mu.Lock()
	next := fn(s.cur.Clone())
	if next == nil {
		next = notes.Collection{}
	}
	s.cur = next.Clone()
	s.seq++
	s.pushing++
	s.mu.Unlock()
	return next
}

// send pushes snap, then writes the replica regardless of the outcome.
func (s *Syncer) send(ctx context.Context, snap notes.Collection) error {
	if s.pushTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.pushTimeout)
		defer cancel()
	}
	_, err := s.remote.SaveNotes(ctx, snap)
	s.mu.Lock()
	s.pushing--
	s.mu.Unlock()
	s.persist()
	return err
}

// persist writes the current in-memory collection to the replica.
func (s *Syncer) persist() {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if err := s.local.Save(s.Notes()); err != nil {
		slog.Error("Failed to write local copy", "err", err)
	}
}

func (s *Syncer) notify() {
	if s.onChange != nil {
		s.onChange(s.Notes())
	}
}
