package backend

import (
	"context"
	"sync"
)

// Memory keeps the blob in process memory. It is the backend for tests and
// for throwaway preview sessions; faults can be injected per operation.
type Memory struct {
	mu       sync.Mutex
	blob     []byte
	present  bool
	readErr  error
	writeErr error
	gate     chan struct{}
	entered  chan struct{}
	writes   int
}

// NewMemory returns an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a Memory backend already holding blob.
func NewMemoryWith(blob []byte) *Memory {
	m := &Memory{}
	m.Set(blob)
	return m
}

// Set replaces the stored blob without counting as a write.
func (m *Memory) Set(blob []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blob = append([]byte(nil), blob...)
	m.present = true
}

// Blob returns a copy of the stored blob and whether one exists.
func (m *Memory) Blob() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.blob...), m.present
}

// Writes reports how many writes succeeded.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// FailReads makes every Read return err until cleared with nil.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

// FailWrites makes every Write return err until cleared with nil.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Hold makes writes block until release is called. Each write that starts
// blocking sends on entered.
func (m *Memory) Hold() (entered <-chan struct{}, release func()) {
	gate := make(chan struct{})
	ent := make(chan struct{}, 16)
	m.mu.Lock()
	m.gate = gate
	m.entered = ent
	m.mu.Unlock()
	var once sync.Once
	return ent, func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gate == gate {
				m.gate = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

func (m *Memory) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	if !m.present {
		return nil, ErrAbsent
	}
	return append([]byte(nil), m.blob...), nil
}

func (m *Memory) Write(ctx context.Context, blob []byte) error {
	m.mu.Lock()
	gate, entered := m.gate, m.entered
	m.mu.Unlock()
	if gate != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.blob = append([]byte(nil), blob...)
	m.present = true
	m.writes++
	return nil
}

// Clear drops the stored blob.
func (m *Memory) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.blob, m.present = nil, false
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) String() string { return "memory" }
