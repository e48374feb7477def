package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"flyer/internal/console"
	"flyer/internal/logging"
	"flyer/internal/notify"

	"github.com/spf13/cobra"
)

func newConsoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Edit page content from this terminal",
		Long: `console opens an interactive editing session on the configured backend.
Log output goes to console.log in the data directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, ok := cmd.InOrStdin().(*os.File)
			if !ok {
				return errors.New("console needs a file or terminal on stdin")
			}

			cfg := a.cfg
			if err := os.MkdirAll(cfg.Site.DataDir, 0o700); err != nil {
				return fmt.Errorf("creating data dir: %w", err)
			}
			logFile, err := os.OpenFile(filepath.Join(cfg.Site.DataDir, "console.log"),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("opening console log: %w", err)
			}
			defer func() { _ = logFile.Close() }()
			logging.InitWriter(logFile, cfg.Logging.Level, cfg.Logging.Format)

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}

			hub := notify.NewHub()
			go hub.Run()
			defer hub.Stop()
			sess.store.OnChange(hub.HandleChange)

			c := console.New(sess.store, sess.page, hub)
			registerSlotCommands(c.Commands(), sess.backend)
			runErr := c.RunLocal(ctx, in, cmd.OutOrStdout())
			return errors.Join(runErr, shutdown(sess))
		},
	}
}
