// Package content holds the editable text of the page for one session and
// mirrors it into a persistence backend.
//
// A Store is constructed once at startup and passed to every consumer.
// Update never blocks on I/O: it changes the in-memory mapping, marks the
// store dirty and queues a write-through of the whole mapping. Only a
// successful PersistAll clears the dirty flag.
package content

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"flyer/internal/backend"
	"flyer/internal/codec"
	"flyer/internal/logging"

	"github.com/google/uuid"
)

// MaxKeyLen is the longest accepted content key, in bytes.
const MaxKeyLen = 256

var logger = logging.For("content")

// ChangeKind says what produced a Change.
type ChangeKind string

const (
	ChangeUpdate ChangeKind = "update"
	ChangeLoad   ChangeKind = "load"
)

// Change describes an accepted mutation. Key is empty for loads. Origin is
// whatever the caller passed to UpdateAs.
type Change struct {
	Kind     ChangeKind
	Key      string
	Revision uint64
	Origin   string
}

// ChangeHandler is called after an update or load is applied, outside the
// store's lock.
type ChangeHandler func(Change)

// Status is a point-in-time view of the store's flags.
type Status struct {
	Session       string
	Dirty         bool
	Loading       bool
	Saving        bool
	Revision      uint64
	SavedRevision uint64
	Keys          int
}

// Option configures a Store.
type Option func(*Store)

// WithCodec sets the blob codec. The default is JSON.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithInitial seeds the mapping used until a load succeeds.
func WithInitial(values map[string]string) Option {
	return func(s *Store) { s.values = maps.Clone(values) }
}

// WithFilter rewrites every value passed to Update before it is stored.
// It is how markup from editing surfaces gets sanitized.
func WithFilter(fn func(key, value string) string) Option {
	return func(s *Store) { s.filter = fn }
}

// Store is the single source of truth for editable text.
type Store struct {
	backend backend.Backend
	codec   codec.Codec
	filter  func(key, value string) string
	session string
	log     *slog.Logger

	mu       sync.RWMutex
	values   map[string]string
	dirty    bool
	savedRev uint64
	handlers []ChangeHandler
	rev      revisionClock

	loading atomic.Int32
	saving  atomic.Int32

	// ioMu serializes every backend access that must observe a consistent
	// mapping: writes take their snapshot while holding it, so blobs reach
	// the backend in revision order.
	ioMu       sync.Mutex
	durableRev uint64

	writes *writeThrough
}

// New creates a Store over b. Call Load to populate it.
func New(b backend.Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		codec:   codec.JSON{},
		session: uuid.NewString(),
		values:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	s.log = logger.With("session", s.session)
	s.writes = newWriteThrough(func(ctx context.Context) (uint64, error) {
		return s.writeSnapshot(ctx, false)
	}, s.log)
	return s
}

// Session returns the identifier of this store's session.
func (s *Store) Session() string {
	return s.session
}

// Get returns the value for key, or def when the key is absent.
func (s *Store) Get(key, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key]; ok {
		return v
	}
	return def
}

// Lookup returns the value for key and whether it is present.
func (s *Store) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Update sets key to value, marks the store dirty and queues a
// write-through. The write-through outcome does not affect the result;
// failures are logged and can be observed with Flush.
func (s *Store) Update(key, value string) error {
	_, err := s.UpdateAs("", key, value)
	return err
}

// UpdateAs is Update tagged with origin, which is passed on in the Change.
// It returns the revision assigned to this update.
func (s *Store) UpdateAs(origin, key, value string) (uint64, error) {
	if err := ValidateKey(key); err != nil {
		return 0, err
	}
	if s.filter != nil {
		value = s.filter(key, value)
	}

	s.mu.Lock()
	s.values[key] = value
	s.dirty = true
	rev := s.rev.Tick()
	handlers := s.handlers
	s.mu.Unlock()

	s.writes.schedule(rev)
	s.notify(handlers, Change{Kind: ChangeUpdate, Key: key, Revision: rev, Origin: origin})
	return rev, nil
}

// Flush waits for the write-through covering every Update made before the
// call and returns its error.
func (s *Store) Flush(ctx context.Context) error {
	return s.writes.wait(ctx, s.rev.Current())
}

// Dirty reports whether the mapping diverged from the last successful
// PersistAll or Load.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Loading reports whether a Load is in progress.
func (s *Store) Loading() bool {
	return s.loading.Load() > 0
}

// Saving reports whether a PersistAll is in progress.
func (s *Store) Saving() bool {
	return s.saving.Load() > 0
}

// Revision returns the number of mutations applied so far.
func (s *Store) Revision() uint64 {
	return s.rev.Current()
}

// Status returns all flags at once.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Session:       s.session,
		Dirty:         s.dirty,
		Loading:       s.loading.Load() > 0,
		Saving:        s.saving.Load() > 0,
		Revision:      s.rev.Current(),
		SavedRevision: s.savedRev,
		Keys:          len(s.values),
	}
}

// Snapshot returns a copy of the mapping.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Keys returns the present keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Len returns the number of present keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// ConfirmLeave returns ErrUnsavedChanges while the store is dirty. Surfaces
// call it before closing a session.
func (s *Store) ConfirmLeave() error {
	if s.Dirty() {
		return ErrUnsavedChanges
	}
	return nil
}

// OnChange registers h for every later update and load.
func (s *Store) OnChange(h ChangeHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(slices.Clip(s.handlers), h)
}

// Close waits for queued write-throughs to finish. It does not close the
// backend.
func (s *Store) Close(ctx context.Context) error {
	return s.writes.drain(ctx)
}

func (s *Store) notify(handlers []ChangeHandler, c Change) {
	for _, h := range handlers {
		h(c)
	}
}

// ValidateKey checks that key can name a content slot.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if len(key) > MaxKeyLen {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKey, MaxKeyLen)
	}
	return nil
}
