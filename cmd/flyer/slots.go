package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"flyer/internal/backend"
	"flyer/internal/console"

	"github.com/spf13/cobra"
)

func newResetCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the saved content so the page shows its defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return errors.New("reset deletes the saved content; pass --force to confirm")
			}
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.close(ctx) }()

			c, ok := sess.backend.(backend.Clearer)
			if !ok {
				return fmt.Errorf("%s cannot be cleared from here", sess.backend)
			}
			if err := c.Clear(ctx); err != nil {
				return err
			}
			logger.Info("cleared saved content", "backend", sess.backend.String())
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", sess.backend)
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm deleting the saved content")
	return cmd
}

func newSlotsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "List the content slots saved in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.close(ctx) }()
			return printSlots(ctx, cmd.OutOrStdout(), sess.backend)
		},
	}
}

// registerSlotCommands adds console commands that need the backend itself
// rather than the content store.
func registerSlotCommands(reg console.CommandRegistrar, b backend.Backend) {
	reg.Register("/slots", console.Command{
		Help: "list content slots in this data dir (* is the one being edited)",
		Handler: func(ctx console.CommandContext) bool {
			if err := printSlots(ctx.Ctx, ctx.Terminal, b); err != nil {
				_, _ = fmt.Fprintf(ctx.Terminal, "Error: %v\n", err)
			}
			return false
		},
	})
}

func printSlots(ctx context.Context, w io.Writer, b backend.Backend) error {
	slot, ok := b.(*backend.Slot)
	if !ok {
		return fmt.Errorf("%s keeps a single blob, not named slots", b)
	}
	sizes, err := slot.Slots(ctx)
	if err != nil {
		return err
	}
	if len(sizes) == 0 {
		_, err = fmt.Fprintln(w, "No saved slots")
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(sizes)) {
		mark := " "
		if name == slot.Name() {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-24s %d bytes\n", mark, name, sizes[name]); err != nil {
			return err
		}
	}
	return nil
}
