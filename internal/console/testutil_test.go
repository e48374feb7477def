package console

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"

	"flyer/internal/backend"
	"flyer/internal/content"
	"flyer/internal/page"

	"golang.org/x/term"
)

// mockTerminal creates a term.Terminal backed by an in-memory pipe.
// Returns the terminal and a function that reads all written output.
func mockTerminal(t *testing.T) (*term.Terminal, func() string) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	t.Cleanup(func() { _ = w.Close() })
	terminal := term.NewTerminal(readWriter{r, w}, "> ")
	readOutput := func() string {
		_ = w.Close()
		data, _ := io.ReadAll(r)
		return string(data)
	}
	return terminal, readOutput
}

// syncBuffer is a bytes.Buffer safe for the session's event printer and
// command output writing concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newSession(t *testing.T, mem *backend.Memory) *Session {
	t.Helper()
	p, err := page.Default()
	if err != nil {
		t.Fatal(err)
	}
	return &Session{Name: "tester", Store: content.New(mem), Page: p}
}
