// Package backend provides the durable blob slot the content store mirrors
// into. Every implementation stores exactly one blob.
package backend

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"flyer/internal/logging"
	boltstore "flyer/internal/store/bolt"
	sqlitestore "flyer/internal/store/sqlite"
)

// ErrAbsent is returned by Read when nothing has been written yet.
var ErrAbsent = errors.New("backend: no saved content")

// ErrTooLarge is returned by Read when the stored blob exceeds what the
// backend will buffer.
var ErrTooLarge = errors.New("backend: blob too large")

var logger = logging.For("backend")

// Backend is a durable single-blob store.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, blob []byte) error
	Close() error
	String() string
}

// Clearer is implemented by backends that can remove the saved blob, so
// that the next Read reports ErrAbsent.
type Clearer interface {
	Clear(ctx context.Context) error
}

var (
	_ Clearer = (*Slot)(nil)
	_ Clearer = (*File)(nil)
	_ Clearer = (*Memory)(nil)
)

// Kinds accepted by Open.
const (
	KindBolt   = "bolt"
	KindSQLite = "sqlite"
	KindFile   = "file"
	KindRemote = "remote"
	KindMemory = "memory"
)

// DefaultSlot is the well-known name the content blob is stored under.
const DefaultSlot = "flyer-content"

// Kinds lists the accepted backend kinds.
func Kinds() []string {
	return []string{KindBolt, KindSQLite, KindFile, KindRemote, KindMemory}
}

// Options selects and configures a backend.
type Options struct {
	Kind          string
	DataDir       string
	Slot          string
	FilePath      string // file kind; defaults to DataDir/<slot>.json
	RemoteURL     string // remote kind
	RemoteTimeout time.Duration
}

// Open builds the backend described by opts.
func Open(opts Options) (Backend, error) {
	slot := opts.Slot
	if slot == "" {
		slot = DefaultSlot
	}
	switch strings.ToLower(opts.Kind) {
	case "", KindBolt:
		st, err := boltstore.Open(filepath.Join(opts.DataDir, "flyer.db"))
		if err != nil {
			return nil, err
		}
		return NewSlot(st, slot), nil
	case KindSQLite:
		st, err := sqlitestore.Open(filepath.Join(opts.DataDir, "flyer.sqlite"))
		if err != nil {
			return nil, err
		}
		return NewSlot(st, slot), nil
	case KindFile:
		path := opts.FilePath
		if path == "" {
			path = filepath.Join(opts.DataDir, slot+".json")
		}
		return NewFile(path), nil
	case KindRemote:
		return NewRemote(opts.RemoteURL, opts.RemoteTimeout)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want one of %s)", opts.Kind, strings.Join(Kinds(), ", "))
	}
}
