package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flyer/internal/backend"
	"flyer/internal/config"
	"flyer/internal/console"
	"flyer/internal/content"
	"flyer/internal/hostkey"
	"flyer/internal/notify"
	"flyer/internal/web"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editable page over HTTP (and the edit console over SSH)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().String("listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().String("ssh-listen", "", "SSH console listen address (overrides config)")
	return cmd
}

// applyServeFlags copies serve's own flags into cfg. Other commands do not
// define them.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	for name, dst := range map[string]*string{
		"listen":     &cfg.HTTP.Listen,
		"ssh-listen": &cfg.SSH.Listen,
	} {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		*dst = f.Value.String()
	}
}

func (a *app) serve(parent context.Context) (err error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := a.cfg
	sess, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, shutdown(sess)) }()
	st := sess.store

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()
	st.OnChange(hub.HandleChange)

	if f, ok := sess.backend.(*backend.File); ok && cfg.Editor.Watch {
		go func() {
			err := f.Watch(ctx, func() {
				if st.LoadIfClean(ctx) == content.LoadSkipped {
					logger.Warn("content file changed on disk, keeping unsaved edits", "path", f.Path())
				}
			})
			if err != nil {
				logger.Error("watching content file", "path", f.Path(), "err", err)
			}
		}()
		logger.Info("watching content file", "path", f.Path())
	}

	// A remote backend is another server's blob; re-exporting it would only
	// proxy.
	var blob backend.Backend
	if _, remote := sess.backend.(*backend.Remote); !remote {
		blob = sess.backend
	}
	srv, err := web.NewServer(web.Config{
		Addr:      cfg.HTTP.Listen,
		Store:     st,
		Page:      sess.page,
		Sanitizer: sess.san,
		Hub:       hub,
		Blob:      blob,
	})
	if err != nil {
		return err
	}

	if cfg.SSH.Listen != "" {
		sshServer, sshErr := a.startSSH(ctx, sess, hub)
		if sshErr != nil {
			return sshErr
		}
		defer sshServer.Stop()
	}

	logger.Info("serving page", "title", sess.page.Title, "backend", sess.backend.String(),
		"load", sess.loaded.String(), "sanitize", sess.san.Enabled())
	err = srv.ListenAndServe(ctx)
	logger.Info("shutting down")
	return err
}

func (a *app) startSSH(ctx context.Context, sess *session, hub *notify.Hub) (*console.Server, error) {
	cfg := a.cfg
	key, err := hostkey.Load(cfg.Site.DataDir)
	if err != nil {
		return nil, fmt.Errorf("host key: %w", err)
	}
	c := console.New(sess.store, sess.page, hub)
	registerSlotCommands(c.Commands(), sess.backend)

	srv, err := console.NewServer(cfg.SSH.Listen, key, c, cfg.SSH.AuthorizedKeys)
	if err != nil {
		return nil, err
	}
	if err := srv.Listen(); err != nil {
		return nil, err
	}
	go func() {
		if err := srv.Serve(ctx); err != nil {
			logger.Error("ssh console stopped", "err", err)
		}
	}()
	logger.Info("ssh console listening", "addr", srv.Addr(), "fingerprint", key.Fingerprint)
	return srv, nil
}

// shutdown waits for the last write-through and warns when the session ends
// with changes that were never explicitly saved.
func shutdown(sess *session) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	st := sess.store
	if err := st.Flush(ctx); err != nil {
		logger.Error("last write-through failed, recent edits may be lost", "err", err)
	}
	if err := st.ConfirmLeave(); err != nil {
		logger.Warn("exiting with unsaved changes", "revision", st.Revision())
	}
	return sess.close(ctx)
}
