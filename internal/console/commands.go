package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"flyer/internal/content"
)

// Terminal is the line-oriented surface commands talk to. *term.Terminal
// satisfies it.
type Terminal interface {
	io.Writer
	ReadLine() (string, error)
}

// CommandContext holds the state available to command handlers.
type CommandContext struct {
	Ctx      context.Context
	Session  *Session
	Terminal Terminal
	Args     []string
	Rest     string // text after the first argument, inner spacing kept
}

// CommandHandler processes a console command. Returns true if the session
// should be closed.
type CommandHandler func(ctx CommandContext) bool

// Command describes a registered console command.
type Command struct {
	Usage   string // full usage for help (e.g., "/get <key>"); defaults to command name
	Help    string
	Handler CommandHandler
}

// CommandRegistrar is the interface for registering commands before the
// console starts serving.
type CommandRegistrar interface {
	Register(name string, cmd Command)
}

// CommandRegistry maps command names to handlers and produces dynamic help.
// It is safe for concurrent use by multiple sessions. Once frozen, no new
// commands can be registered.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string // insertion order for stable help output
	frozen   bool
}

// NewCommandRegistry creates an empty registry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]Command),
	}
}

// Register adds a command. The name includes the leading slash.
// Registering the same name twice overwrites the previous entry.
// Panics if cmd.Handler is nil or if the registry is frozen.
func (r *CommandRegistry) Register(name string, cmd Command) {
	if cmd.Handler == nil {
		panic("console: Register called with nil handler for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		panic("console: Register called on frozen registry for " + name)
	}
	if _, exists := r.commands[name]; !exists {
		r.order = append(r.order, name)
	}
	r.commands[name] = cmd
}

// Freeze prevents further command registration.
func (r *CommandRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Dispatch parses a command line and calls the matching handler.
// Returns true if the session should be closed.
func (r *CommandRegistry) Dispatch(ctx context.Context, line string, sess *Session, terminal Terminal) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	name := parts[0]

	r.mu.RLock()
	cmd, ok := r.commands[name]
	r.mu.RUnlock()

	if !ok {
		_, _ = fmt.Fprintf(terminal, "Unknown command: %s (try /help)\n", name)
		return false
	}

	return cmd.Handler(CommandContext{
		Ctx:      ctx,
		Session:  sess,
		Terminal: terminal,
		Args:     parts[1:],
		Rest:     restAfterFirstArg(line),
	})
}

// restAfterFirstArg returns everything after "/cmd arg", so markup passed
// to /set keeps its spacing.
func restAfterFirstArg(line string) string {
	_, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	_, rest, _ = strings.Cut(strings.TrimLeft(rest, " \t"), " ")
	return strings.TrimLeft(rest, " \t")
}

// HelpText returns a formatted help string listing all registered commands
// in registration order.
func (r *CommandRegistry) HelpText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range r.order {
		cmd := r.commands[name]
		display := name
		if cmd.Usage != "" {
			display = cmd.Usage
		}
		_, _ = fmt.Fprintf(&b, "  %-22s %s\n", display, cmd.Help)
	}
	return b.String()
}

// flushTimeout bounds how long /flush waits for a write-through.
const flushTimeout = 10 * time.Second

// RegisterBuiltins registers the content editing commands.
func (r *CommandRegistry) RegisterBuiltins() {
	r.Register("/get", Command{
		Usage: "/get <key>",
		Help:  "show the value of a field",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) == 0 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /get <key>")
				return false
			}
			key := ctx.Args[0]
			value, source := ctx.Session.value(key)
			switch source {
			case sourceNone:
				_, _ = fmt.Fprintf(ctx.Terminal, "%s: not set\n", key)
			case sourceDefault:
				_, _ = fmt.Fprintf(ctx.Terminal, "%s (default): %s\n", key, value)
			default:
				_, _ = fmt.Fprintf(ctx.Terminal, "%s: %s\n", key, value)
			}
			return false
		},
	})

	r.Register("/set", Command{
		Usage: "/set <key> <markup>",
		Help:  "change a field",
		Handler: func(ctx CommandContext) bool {
			if len(ctx.Args) < 2 {
				_, _ = fmt.Fprintln(ctx.Terminal, "Usage: /set <key> <markup>")
				return false
			}
			key := ctx.Args[0]
			if ctx.Session.Page != nil {
				if f, ok := ctx.Session.Page.Field(key); ok && f.Disabled {
					_, _ = fmt.Fprintf(ctx.Terminal, "%s is not editable\n", key)
					return false
				}
			}
			rev, err := ctx.Session.Store.UpdateAs(ctx.Session.origin, key, ctx.Rest)
			if err != nil {
				_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\n", err)
				return false
			}
			_, _ = fmt.Fprintf(ctx.Terminal, "Updated %s (unsaved, revision %d)\n", key, rev)
			return false
		},
	})

	r.Register("/keys", Command{
		Help: "list fields; * marks stored values",
		Handler: func(ctx CommandContext) bool {
			for _, key := range ctx.Session.keys() {
				mark := " "
				if _, ok := ctx.Session.Store.Lookup(key); ok {
					mark = "*"
				}
				_, _ = fmt.Fprintf(ctx.Terminal, "%s %s\n", mark, key)
			}
			return false
		},
	})

	r.Register("/show", Command{
		Help: "show every field",
		Handler: func(ctx CommandContext) bool {
			for _, key := range ctx.Session.keys() {
				value, _ := ctx.Session.value(key)
				_, _ = fmt.Fprintf(ctx.Terminal, "%s: %s\n", key, value)
			}
			return false
		},
	})

	r.Register("/save", Command{
		Help: "save all changes",
		Handler: func(ctx CommandContext) bool {
			if err := ctx.Session.Store.PersistAll(ctx.Ctx); err != nil {
				_, _ = fmt.Fprintf(ctx.Terminal, "Save failed: %v\n", err)
				_, _ = fmt.Fprintln(ctx.Terminal, "Your changes are still unsaved; try /save again.")
				return false
			}
			_, _ = fmt.Fprintln(ctx.Terminal, "Saved!")
			return false
		},
	})

	r.Register("/status", Command{
		Help: "show whether there are unsaved changes",
		Handler: func(ctx CommandContext) bool {
			st := ctx.Session.Store.Status()
			if st.Dirty {
				_, _ = fmt.Fprintln(ctx.Terminal, "Status: unsaved changes (use /save)")
			} else {
				_, _ = fmt.Fprintln(ctx.Terminal, "Status: all changes saved")
			}
			_, _ = fmt.Fprintf(ctx.Terminal, "  revision %d, saved %d, %d keys\n", st.Revision, st.SavedRevision, st.Keys)
			if st.Loading || st.Saving {
				_, _ = fmt.Fprintf(ctx.Terminal, "  loading=%v saving=%v\n", st.Loading, st.Saving)
			}
			_, _ = fmt.Fprintf(ctx.Terminal, "  session %s\n", st.Session)
			return false
		},
	})

	r.Register("/reload", Command{
		Usage: "/reload [force]",
		Help:  "reload saved content",
		Handler: func(ctx CommandContext) bool {
			st := ctx.Session.Store
			var status content.LoadStatus
			if len(ctx.Args) > 0 && ctx.Args[0] == "force" {
				status = st.Load(ctx.Ctx)
			} else {
				status = st.LoadIfClean(ctx.Ctx)
			}
			if status == content.LoadSkipped || status == content.LoadSuperseded {
				_, _ = fmt.Fprintln(ctx.Terminal, "You have unsaved changes. /reload force discards them.")
				return false
			}
			_, _ = fmt.Fprintf(ctx.Terminal, "Reload: %s\n", status)
			return false
		},
	})

	r.Register("/flush", Command{
		Help: "wait for pending writes",
		Handler: func(ctx CommandContext) bool {
			fctx, cancel := context.WithTimeout(ctx.Ctx, flushTimeout)
			defer cancel()
			if err := ctx.Session.Store.Flush(fctx); err != nil {
				_, _ = fmt.Fprintf(ctx.Terminal, "Write-through failed: %v\n", err)
				return false
			}
			_, _ = fmt.Fprintln(ctx.Terminal, "Write-through complete")
			return false
		},
	})

	r.Register("/help", Command{
		Help: "show this help",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprint(ctx.Terminal, r.HelpText())
			return false
		},
	})

	r.Register("/quit", Command{
		Help: "leave (refused while there are unsaved changes)",
		Handler: func(ctx CommandContext) bool {
			if err := ctx.Session.Store.ConfirmLeave(); errors.Is(err, content.ErrUnsavedChanges) {
				_, _ = fmt.Fprintln(ctx.Terminal, content.UnloadMessage)
				_, _ = fmt.Fprintln(ctx.Terminal, "Use /save first, or /quit! to leave anyway.")
				return false
			}
			_, _ = fmt.Fprintln(ctx.Terminal, "Goodbye.")
			return true
		},
	})

	r.Register("/quit!", Command{
		Help: "leave even with unsaved changes",
		Handler: func(ctx CommandContext) bool {
			_, _ = fmt.Fprintln(ctx.Terminal, "Goodbye.")
			return true
		},
	})
}

type valueSource int

const (
	sourceNone valueSource = iota
	sourceDefault
	sourceStored
)

// value resolves key the way the page renders it.
func (s *Session) value(key string) (string, valueSource) {
	if v, ok := s.Store.Lookup(key); ok {
		return v, sourceStored
	}
	if s.Page != nil {
		if f, ok := s.Page.Field(key); ok {
			return f.DefaultMarkup(), sourceDefault
		}
	}
	return "", sourceNone
}

// keys lists page fields in page order followed by stored keys the page
// does not define.
func (s *Session) keys() []string {
	var keys []string
	if s.Page != nil {
		keys = s.Page.Keys()
	}
	for _, k := range s.Store.Keys() {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}
