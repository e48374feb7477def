package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"flyer/internal/backend"
	"flyer/internal/codec"
	"flyer/internal/config"
	"flyer/internal/content"
	"flyer/internal/logging"
	"flyer/internal/page"

	"github.com/spf13/cobra"
)

var logger = logging.For("main")

// app carries the persistent flags and the resolved configuration shared by
// every subcommand.
type app struct {
	configPath string
	dataDir    string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "flyer",
		Short: "An editable landing page with write-through content storage",
		Long: `flyer serves a single landing page whose text fields can be edited in
place. Edits are written through to a durable backend as they happen; the
page keeps showing "unsaved changes" until they are saved explicitly.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to config file (default ~/.flyer/config.toml)")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (overrides config)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newServeCmd(a),
		newConsoleCmd(a),
		newGetCmd(a),
		newSetCmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newResetCmd(a),
		newSlotsCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup resolves the configuration: defaults, then the TOML file, then
// FLYER_* variables, then flags.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.Site.DataDir = a.dataDir
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	applyServeFlags(cmd, cfg)
	cfg.Expand()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	a.cfg = cfg
	return nil
}

// session is one opened content store together with what it was built from.
type session struct {
	page    *page.Page
	san     *page.Sanitizer
	backend backend.Backend
	store   *content.Store
	loaded  content.LoadStatus
}

func (a *app) open(ctx context.Context) (*session, error) {
	cfg := a.cfg
	if err := os.MkdirAll(cfg.Site.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	p, err := page.Load(cfg.Site.Page)
	if err != nil {
		return nil, err
	}
	san := page.NewSanitizer(p, cfg.Editor.Sanitize)

	c, err := codec.Lookup(cfg.Storage.Codec)
	if err != nil {
		return nil, err
	}
	b, err := backend.Open(backend.Options{
		Kind:          cfg.Storage.Backend,
		DataDir:       cfg.Site.DataDir,
		Slot:          cfg.Storage.Slot,
		FilePath:      cfg.Storage.FilePath,
		RemoteURL:     cfg.Storage.RemoteURL,
		RemoteTimeout: cfg.Storage.RemoteTimeout.Duration,
	})
	if err != nil {
		return nil, fmt.Errorf("opening backend: %w", err)
	}

	st := content.New(b, content.WithCodec(c), content.WithFilter(san.Clean))
	loaded := st.Load(ctx)
	logger.Debug("content opened", "backend", b.String(), "codec", c.Name(),
		"load", loaded.String(), "keys", st.Len(), "session", st.Session())

	return &session{page: p, san: san, backend: b, store: st, loaded: loaded}, nil
}

// writable refuses to go on when the saved content exists but could not be
// read: saving would replace it with a mapping built without it.
func (s *session) writable() error {
	switch s.loaded {
	case content.LoadOK, content.LoadAbsent:
		return nil
	}
	return fmt.Errorf("saved content in %s is %s; refusing to overwrite it", s.backend, s.loaded)
}

func (s *session) close(ctx context.Context) error {
	return errors.Join(s.store.Close(ctx), s.backend.Close())
}
