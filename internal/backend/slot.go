package backend

import (
	"context"
	"fmt"

	"flyer/internal/store"
)

var contentBucket = []byte("content")

// Slot keeps the blob under one key of a bucketed store.
type Slot struct {
	st   store.Store
	name string
}

// NewSlot wraps st. The Slot owns st and closes it on Close.
func NewSlot(st store.Store, name string) *Slot {
	return &Slot{st: st, name: name}
}

func (s *Slot) Read(ctx context.Context) ([]byte, error) {
	val, err := s.st.Get(ctx, contentBucket, []byte(s.name))
	if err != nil {
		return nil, fmt.Errorf("reading slot %s: %w", s.name, err)
	}
	if val == nil {
		return nil, ErrAbsent
	}
	return val, nil
}

func (s *Slot) Write(ctx context.Context, blob []byte) error {
	if err := s.st.Set(ctx, contentBucket, []byte(s.name), blob); err != nil {
		return fmt.Errorf("writing slot %s: %w", s.name, err)
	}
	return nil
}

// Clear deletes this slot's blob. Other slots in the store are untouched.
func (s *Slot) Clear(ctx context.Context) error {
	if err := s.st.Delete(ctx, contentBucket, []byte(s.name)); err != nil {
		return fmt.Errorf("clearing slot %s: %w", s.name, err)
	}
	return nil
}

// Name returns the slot this backend reads and writes.
func (s *Slot) Name() string {
	return s.name
}

// Slots lists every slot saved in the underlying store with its blob size.
// Several pages can share one data dir under different slot names.
func (s *Slot) Slots(ctx context.Context) (map[string]int, error) {
	all, err := s.st.Snapshot(ctx, contentBucket)
	if err != nil {
		return nil, fmt.Errorf("listing slots: %w", err)
	}
	sizes := make(map[string]int, len(all))
	for name, blob := range all {
		sizes[name] = len(blob)
	}
	return sizes, nil
}

func (s *Slot) Close() error {
	return s.st.Close()
}

func (s *Slot) String() string {
	return fmt.Sprintf("%T slot %q", s.st, s.name)
}
