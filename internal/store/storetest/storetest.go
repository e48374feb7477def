// Package storetest holds behaviour checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"testing"

	"flyer/internal/store"
)

var testBucket = []byte("test-bucket")

// Run exercises open against the store.Store contract. open must return a
// fresh, empty store; Run closes it.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		s := open(t)
		defer func() { _ = s.Close() }()
		if err := s.Set(ctx, testBucket, []byte("key1"), []byte("val1")); err != nil {
			t.Fatal(err)
		}
		val, err := s.Get(ctx, testBucket, []byte("key1"))
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "val1" {
			t.Fatalf("expected val1, got %q", val)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := open(t)
		defer func() { _ = s.Close() }()
		val, err := s.Get(ctx, []byte("no-bucket"), []byte("key"))
		if err != nil {
			t.Fatal(err)
		}
		if val != nil {
			t.Fatalf("expected nil for nonexistent bucket, got %q", val)
		}
		if err := s.Set(ctx, testBucket, []byte("other"), []byte("v")); err != nil {
			t.Fatal(err)
		}
		val, err = s.Get(ctx, testBucket, []byte("missing"))
		if err != nil {
			t.Fatal(err)
		}
		if val != nil {
			t.Fatalf("expected nil for missing key, got %q", val)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := open(t)
		defer func() { _ = s.Close() }()
		for _, v := range []string{"v1", "v2"} {
			if err := s.Set(ctx, testBucket, []byte("k"), []byte(v)); err != nil {
				t.Fatal(err)
			}
		}
		val, err := s.Get(ctx, testBucket, []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if string(val) != "v2" {
			t.Fatalf("expected v2 after overwrite, got %q", val)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		defer func() { _ = s.Close() }()
		if err := s.Delete(ctx, []byte("no-bucket"), []byte("k")); err != nil {
			t.Fatalf("delete on missing bucket: %v", err)
		}
		if err := s.Set(ctx, testBucket, []byte("k"), []byte("v")); err != nil {
			t.Fatal(err)
		}
		if err := s.Delete(ctx, testBucket, []byte("k")); err != nil {
			t.Fatal(err)
		}
		val, err := s.Get(ctx, testBucket, []byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		if val != nil {
			t.Fatalf("expected nil after delete, got %q", val)
		}
	})

	t.Run("SnapshotIsolatedCopy", func(t *testing.T) {
		s := open(t)
		defer func() { _ = s.Close() }()
		other := []byte("other-bucket")
		if err := s.Set(ctx, testBucket, []byte("x"), []byte("1")); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(ctx, testBucket, []byte("y"), []byte("2")); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(ctx, other, []byte("x"), []byte("elsewhere")); err != nil {
			t.Fatal(err)
		}

		snap, err := s.Snapshot(ctx, testBucket)
		if err != nil {
			t.Fatal(err)
		}
		if len(snap) != 2 || string(snap["x"]) != "1" || string(snap["y"]) != "2" {
			t.Fatalf("unexpected snapshot content: %v", snap)
		}

		snap["x"][0] = 'X'
		val, _ := s.Get(ctx, testBucket, []byte("x"))
		if string(val) != "1" {
			t.Fatal("snapshot mutation should not affect store")
		}

		empty, err := s.Snapshot(ctx, []byte("no-bucket"))
		if err != nil {
			t.Fatal(err)
		}
		if len(empty) != 0 {
			t.Fatalf("expected empty snapshot, got %d entries", len(empty))
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		s := open(t)
		defer func() { _ = s.Close() }()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := s.Set(cctx, testBucket, []byte("k"), []byte("v")); !errors.Is(err, context.Canceled) {
			t.Fatalf("Set with canceled ctx: got %v, want context.Canceled", err)
		}
	})

	t.Run("UseAfterClose", func(t *testing.T) {
		s := open(t)
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if err := s.Set(ctx, testBucket, []byte("k"), []byte("v")); !errors.Is(err, store.ErrClosed) {
			t.Fatalf("Set after Close: got %v, want ErrClosed", err)
		}
	})
}
