package content

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"flyer/internal/backend"
)

// LoadStatus is the outcome of Load. Only LoadOK replaces the mapping.
type LoadStatus int

const (
	LoadOK          LoadStatus = iota
	LoadAbsent                 // nothing saved yet
	LoadMalformed              // saved bytes did not decode
	LoadUnavailable            // backend read failed
	LoadSuperseded             // an update landed during the read; the saved mapping is older
	LoadSkipped                // LoadIfClean found unsaved changes
)

func (l LoadStatus) String() string {
	switch l {
	case LoadOK:
		return "ok"
	case LoadAbsent:
		return "absent"
	case LoadMalformed:
		return "malformed"
	case LoadUnavailable:
		return "unavailable"
	case LoadSuperseded:
		return "superseded"
	case LoadSkipped:
		return "skipped"
	}
	return fmt.Sprintf("LoadStatus(%d)", int(l))
}

// Load reads the saved mapping and, if it decodes, replaces the in-memory
// mapping wholesale and clears the dirty flag. Any other outcome keeps the
// current mapping; none of them is an error for the caller. An Update that
// lands while the backend is being read wins: the read is discarded and
// LoadSuperseded is returned.
func (s *Store) Load(ctx context.Context) LoadStatus {
	return s.load(ctx, false)
}

// LoadIfClean is Load for external changes: it adopts the saved mapping
// only while the store has no unsaved changes, and returns LoadSkipped
// otherwise. The check and the swap happen under the store's lock.
func (s *Store) LoadIfClean(ctx context.Context) LoadStatus {
	return s.load(ctx, true)
}

func (s *Store) load(ctx context.Context, onlyClean bool) LoadStatus {
	s.loading.Add(1)
	defer s.loading.Add(-1)

	status, handlers, rev := s.loadLocked(ctx, onlyClean)
	if status == LoadOK {
		s.notify(handlers, Change{Kind: ChangeLoad, Revision: rev})
	}
	return status
}

// loadLocked does the work of Load while holding ioMu, which keeps an
// in-flight write-through of the old mapping from landing on top of the
// one being adopted.
func (s *Store) loadLocked(ctx context.Context, onlyClean bool) (LoadStatus, []ChangeHandler, uint64) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.RLock()
	seen, dirty := s.rev.Current(), s.dirty
	s.mu.RUnlock()
	if onlyClean && dirty {
		s.log.Debug("unsaved changes, not reloading", "revision", seen)
		return LoadSkipped, nil, 0
	}

	blob, err := s.backend.Read(ctx)
	switch {
	case errors.Is(err, backend.ErrAbsent):
		s.log.Debug("no saved content, using defaults", "backend", s.backend.String())
		return LoadAbsent, nil, 0
	case err != nil:
		s.log.Warn("content backend unavailable, keeping current content", "backend", s.backend.String(), "err", err)
		return LoadUnavailable, nil, 0
	}

	values, err := s.codec.Decode(blob)
	if err != nil {
		s.log.Warn("discarding malformed saved content", "backend", s.backend.String(),
			"codec", s.codec.Name(), "bytes", len(blob), "err", err)
		return LoadMalformed, nil, 0
	}

	s.mu.Lock()
	// Only Update ticks the clock while ioMu is held, so any movement means
	// an edit arrived after the read started.
	if current := s.rev.Current(); current != seen {
		s.mu.Unlock()
		s.log.Warn("content changed during load, keeping edits", "read_at", seen, "revision", current)
		if onlyClean {
			return LoadSkipped, nil, 0
		}
		return LoadSuperseded, nil, 0
	}
	s.values = values
	s.dirty = false
	rev := s.rev.Tick()
	s.savedRev = rev
	handlers := s.handlers
	s.mu.Unlock()

	s.durableRev = rev
	s.writes.observe(rev)
	s.log.Info("loaded content", "keys", len(values), "revision", rev)
	return LoadOK, handlers, rev
}

// PersistAll writes the current mapping. On success the dirty flag is
// cleared unless an Update landed after the snapshot was taken. On failure
// the flag stays set and the error wraps ErrPersist.
func (s *Store) PersistAll(ctx context.Context) error {
	s.saving.Add(1)
	defer s.saving.Add(-1)

	rev, err := s.writeSnapshot(ctx, true)
	if err != nil {
		s.log.Error("saving content failed", "backend", s.backend.String(), "revision", rev, "err", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}

	s.mu.Lock()
	if s.rev.Current() == rev {
		s.dirty = false
	}
	if rev > s.savedRev {
		s.savedRev = rev
	}
	dirty := s.dirty
	s.mu.Unlock()

	s.writes.observe(rev)
	s.log.Info("saved content", "revision", rev, "still_dirty", dirty)
	return nil
}

// writeSnapshot encodes the mapping as of now and writes it. Unless force
// is set, a write that would not add anything beyond the last durable
// revision is skipped. It returns the revision the snapshot reflects.
func (s *Store) writeSnapshot(ctx context.Context, force bool) (uint64, error) {
	s.ioMu.Lock()
	defer s.ioMu.Unlock()

	s.mu.RLock()
	rev := s.rev.Current()
	values := maps.Clone(s.values)
	s.mu.RUnlock()

	if !force && rev <= s.durableRev {
		return rev, nil
	}

	blob, err := s.codec.Encode(values)
	if err != nil {
		return rev, fmt.Errorf("encoding content: %w", err)
	}
	if err := s.backend.Write(ctx, blob); err != nil {
		return rev, err
	}
	if rev > s.durableRev {
		s.durableRev = rev
	}
	return rev, nil
}
