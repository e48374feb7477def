package content

import (
	"context"
	"log/slog"
	"sync"
)

// writeThrough is the queue behind Update. At most one write is in flight;
// updates that arrive during a write are coalesced into a single follow-up
// write of the then-current mapping. The whole mapping lives in one slot,
// so coalescing per slot also coalesces per key.
type writeThrough struct {
	write func(ctx context.Context) (uint64, error)
	log   *slog.Logger

	mu        sync.Mutex
	requested uint64 // highest revision scheduled
	written   uint64 // highest revision known durable
	failedRev uint64 // revision of the last failed attempt
	lastErr   error  // error of the last failed attempt, cleared once covered
	running   bool
	idle      chan struct{} // closed whenever running is false
	waiters   []*flushWaiter
}

type flushWaiter struct {
	target uint64
	done   chan error
}

func newWriteThrough(write func(ctx context.Context) (uint64, error), log *slog.Logger) *writeThrough {
	idle := make(chan struct{})
	close(idle)
	return &writeThrough{
		write: write,
		log:   log,
		idle:  idle,
	}
}

// schedule asks for a write covering rev.
func (w *writeThrough) schedule(rev uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rev > w.requested {
		w.requested = rev
	}
	if w.running {
		return
	}
	w.running = true
	w.idle = make(chan struct{})
	go w.run()
}

func (w *writeThrough) run() {
	for {
		// Writes are not cancelable once started.
		rev, err := w.write(context.Background())

		w.mu.Lock()
		if err != nil {
			w.lastErr = err
			w.failedRev = rev
			w.log.Warn("write-through failed, changes stay unsaved", "revision", rev, "err", err)
		} else {
			w.markWritten(rev)
		}
		w.settle(rev, err)

		if w.requested > rev {
			w.mu.Unlock()
			continue
		}
		w.running = false
		close(w.idle)
		w.mu.Unlock()
		return
	}
}

// observe records that rev became durable through another path
// (PersistAll or Load).
func (w *writeThrough) observe(rev uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.markWritten(rev)
	w.settle(rev, nil)
}

func (w *writeThrough) markWritten(rev uint64) {
	if rev > w.written {
		w.written = rev
	}
	if w.written >= w.failedRev {
		w.lastErr = nil
	}
}

// settle releases waiters whose target is now durable, and hands err to
// waiters whose target was covered by the failed attempt at rev.
// Must be called with mu held.
func (w *writeThrough) settle(rev uint64, err error) {
	kept := w.waiters[:0]
	for _, fw := range w.waiters {
		switch {
		case fw.target <= w.written:
			fw.done <- nil
		case err != nil && fw.target <= rev:
			fw.done <- err
		default:
			kept = append(kept, fw)
		}
	}
	clear(w.waiters[len(kept):])
	w.waiters = kept
}

// wait blocks until a write covering target finished.
func (w *writeThrough) wait(ctx context.Context, target uint64) error {
	w.mu.Lock()
	if target <= w.written {
		w.mu.Unlock()
		return nil
	}
	// Nothing in flight and the last attempt already covered target: that
	// attempt failed.
	if !w.running && w.requested >= target && w.failedRev >= target && w.lastErr != nil {
		err := w.lastErr
		w.mu.Unlock()
		return err
	}
	fw := &flushWaiter{target: target, done: make(chan error, 1)}
	w.waiters = append(w.waiters, fw)
	w.mu.Unlock()

	select {
	case err := <-fw.done:
		return err
	case <-ctx.Done():
		w.mu.Lock()
		for i, other := range w.waiters {
			if other == fw {
				w.waiters = append(w.waiters[:i], w.waiters[i+1:]...)
				break
			}
		}
		w.mu.Unlock()
		return ctx.Err()
	}
}

// drain waits until no write is in flight.
func (w *writeThrough) drain(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
