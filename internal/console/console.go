// Package console is a line-oriented editor for page content, served on a
// local terminal or over SSH.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"flyer/internal/content"
	"flyer/internal/logging"
	"flyer/internal/notify"
	"flyer/internal/page"

	"github.com/google/uuid"
	"golang.org/x/term"
)

var logger = logging.For("console")

const prompt = "flyer> "

// Session is one connected console user.
type Session struct {
	Name  string
	Store *content.Store
	Page  *page.Page

	origin string // tags this session's updates so its own events are not echoed
}

// Console serves editing sessions against a shared store.
type Console struct {
	store    *content.Store
	page     *page.Page
	hub      *notify.Hub
	commands *CommandRegistry
}

// New creates a console. hub may be nil, in which case sessions do not see
// changes made elsewhere.
func New(st *content.Store, p *page.Page, hub *notify.Hub) *Console {
	reg := NewCommandRegistry()
	reg.RegisterBuiltins()
	return &Console{store: st, page: p, hub: hub, commands: reg}
}

// Commands returns the registry so callers can add commands before the
// first session starts.
func (c *Console) Commands() CommandRegistrar {
	return c.commands
}

// Serve runs one session on t until the user quits or input ends.
func (c *Console) Serve(ctx context.Context, name string, t Terminal) error {
	c.commands.Freeze()
	sess := &Session{Name: name, Store: c.store, Page: c.page, origin: "console:" + uuid.NewString()}
	log := logger.With("user", name)

	done := make(chan struct{})
	var sub *notify.Subscriber
	if c.hub != nil {
		sub = c.hub.Subscribe("console:" + name)
	}
	if sub != nil {
		go func() {
			defer close(done)
			for ev := range sub.Events {
				if ev.Origin == sess.origin {
					continue
				}
				switch ev.Kind {
				case string(content.ChangeLoad):
					_, _ = fmt.Fprintf(t, "* content reloaded (revision %d)\n", ev.Revision)
				default:
					_, _ = fmt.Fprintf(t, "* %s changed (revision %d)\n", ev.Key, ev.Revision)
				}
			}
		}()
	} else {
		close(done)
	}
	defer func() {
		c.hub.Unsubscribe(sub)
		<-done
	}()

	_, _ = fmt.Fprintf(t, "Editing %q\n", c.title())
	_, _ = fmt.Fprintln(t, "Type /help for commands.")
	_, _ = fmt.Fprintln(t, "")
	log.Info("console session started")

	for {
		line, err := t.ReadLine()
		if err != nil {
			if c.store.Dirty() {
				log.Warn("console closed with unsaved changes", "revision", c.store.Revision())
			} else {
				log.Info("console session ended")
			}
			if err == io.EOF {
				return nil
			}
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			_, _ = fmt.Fprintln(t, "Commands start with / (try /help)")
			continue
		}
		if c.commands.Dispatch(ctx, line, sess, t) {
			log.Info("console session ended", "dirty", c.store.Dirty())
			return nil
		}
	}
}

func (c *Console) title() string {
	if c.page != nil && c.page.Title != "" {
		return c.page.Title
	}
	return "flyer"
}

type readWriter struct {
	io.Reader
	io.Writer
}

// RunLocal serves a single session on in and out. A terminal is switched to
// raw mode for line editing; other inputs are read line by line.
func (c *Console) RunLocal(ctx context.Context, in *os.File, out io.Writer) error {
	name := os.Getenv("USER")
	if name == "" {
		name = "local"
	}

	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return c.Serve(ctx, name, newLineTerminal(in, out))
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, old) }()

	return c.Serve(ctx, name, term.NewTerminal(readWriter{in, out}, prompt))
}

// lineTerminal reads newline-terminated commands, for scripted input.
type lineTerminal struct {
	scanner *bufio.Scanner
	io.Writer
}

// maxLineBytes bounds one scripted line. Content values have no limit of
// their own, so this only guards against unbounded input.
const maxLineBytes = 64 << 20

func newLineTerminal(r io.Reader, w io.Writer) *lineTerminal {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	return &lineTerminal{scanner: sc, Writer: w}
}

func (l *lineTerminal) ReadLine() (string, error) {
	if l.scanner.Scan() {
		return l.scanner.Text(), nil
	}
	if err := l.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
