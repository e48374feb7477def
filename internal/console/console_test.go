package console

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"flyer/internal/backend"
	"flyer/internal/content"
	"flyer/internal/logging"
	"flyer/internal/notify"
	"flyer/internal/page"
)

func newConsole(t *testing.T, mem *backend.Memory) (*Console, *content.Store) {
	t.Helper()
	p, err := page.Default()
	if err != nil {
		t.Fatal(err)
	}
	st := content.New(mem)
	return New(st, p, nil), st
}

func TestServeScript(t *testing.T) {
	c, st := newConsole(t, backend.NewMemory())
	var out syncBuffer
	script := strings.Join([]string{
		"",
		"hello?",
		"/set hero-title Hello",
		"/quit",
		"/save",
		"/quit",
		"/get hero-title",
	}, "\n")

	if err := c.Serve(context.Background(), "script", newLineTerminal(strings.NewReader(script), &out)); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		`Editing "Passing the Fire - Watani Stiner"`,
		"Commands start with /",
		"Updated hero-title",
		content.UnloadMessage,
		"Saved!",
		"Goodbye.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "hero-title: Hello") {
		t.Error("commands after /quit should not run")
	}
	if st.Dirty() {
		t.Error("store should be clean after /save")
	}
}

func TestServeEOFWhileDirtyLogs(t *testing.T) {
	capture := logging.CaptureForTest()
	defer capture.Restore()

	c, st := newConsole(t, backend.NewMemory())
	var out syncBuffer
	if err := c.Serve(context.Background(), "dropped", newLineTerminal(strings.NewReader("/set hero-title Lost\n"), &out)); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if !st.Dirty() {
		t.Fatal("expected unsaved changes")
	}
	if !capture.Has(slog.LevelWarn, "console closed with unsaved changes") {
		t.Error("expected a warning about unsaved changes")
	}
}

func TestServeFreezesRegistry(t *testing.T) {
	c, _ := newConsole(t, backend.NewMemory())
	var out syncBuffer
	if err := c.Serve(context.Background(), "x", newLineTerminal(strings.NewReader(""), &out)); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic registering after Serve")
		}
	}()
	c.Commands().Register("/late", Command{Handler: func(CommandContext) bool { return false }})
}

func TestServeLongScriptedValue(t *testing.T) {
	c, st := newConsole(t, backend.NewMemory())
	long := strings.Repeat("x", 200<<10)
	var out syncBuffer
	script := "/set invitation-body " + long + "\n/save\n/quit\n"
	if err := c.Serve(context.Background(), "bulk", newLineTerminal(strings.NewReader(script), &out)); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if got := st.Get("invitation-body", ""); got != long {
		t.Fatalf("stored %d bytes, want %d", len(got), len(long))
	}
	if st.Dirty() {
		t.Fatal("expected /save to run after the long line")
	}
}

func TestServeEchoesOnlyOtherOrigins(t *testing.T) {
	p, err := page.Default()
	if err != nil {
		t.Fatal(err)
	}
	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()
	st := content.New(backend.NewMemory())
	st.OnChange(hub.HandleChange)
	c := New(st, p, hub)

	// The script pauses on a pipe so an outside edit can land mid-session.
	pr, pw := io.Pipe()
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- c.Serve(context.Background(), "echo", newLineTerminal(pr, &out)) }()

	_, _ = io.WriteString(pw, "/set hero-title Mine\n")
	waitFor(t, &out, "Updated hero-title")
	if _, err := st.UpdateAs("http", "about-heading", "Theirs"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, &out, "* about-heading changed")
	_ = pw.Close()

	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if strings.Contains(out.String(), "* hero-title changed") {
		t.Fatalf("own edit echoed back:\n%s", out.String())
	}
}

func waitFor(t *testing.T, out *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %q:\n%s", want, out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
