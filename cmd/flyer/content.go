package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"flyer/internal/content"

	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	var def string
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print the saved value of a field, or its default",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if err := content.ValidateKey(key); err != nil {
				return err
			}
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.close(ctx) }()

			fallback := def
			if !cmd.Flags().Changed("default") {
				if f, ok := sess.page.Field(key); ok {
					fallback = f.DefaultMarkup()
				}
			}
			value := sess.san.Clean(key, sess.store.Get(key, fallback))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			return err
		},
	}
	cmd.Flags().StringVar(&def, "default", "", "value to print when the key is not set (default: the page's default)")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <markup...>",
		Short: "Set a field and save",
		Long:  `set stores the markup for a field and saves at once. Use "-" as the markup to read it from stdin.`,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			value := strings.Join(args[1:], " ")
			if value == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				value = strings.TrimRight(string(data), "\r\n")
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.close(ctx) }()
			if err := sess.writable(); err != nil {
				return err
			}
			if f, ok := sess.page.Field(key); ok && f.Disabled {
				return fmt.Errorf("%s is not editable", key)
			}

			if err := sess.store.Update(key, value); err != nil {
				return err
			}
			if err := sess.store.PersistAll(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (revision %d)\n", key, sess.store.Revision())
			return err
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var withDefaults bool
	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the saved content as JSON to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.close(ctx) }()
			if sess.loaded != content.LoadOK && sess.loaded != content.LoadAbsent {
				return fmt.Errorf("saved content in %s is %s", sess.backend, sess.loaded)
			}

			values := sess.store.Snapshot()
			if withDefaults {
				for key, def := range sess.page.Defaults() {
					if _, ok := values[key]; !ok {
						values[key] = def
					}
				}
			}

			data, err := json.MarshalIndent(values, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding content: %w", err)
			}
			data = append(data, '\n')

			if len(args) == 0 || args[0] == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(args[0], data, 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}
			logger.Info("exported content", "path", args[0], "keys", len(values))
			return nil
		},
	}
	cmd.Flags().BoolVar(&withDefaults, "defaults", false, "include page defaults for fields that are not set")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Merge content from a JSON export and save",
		Long:  `import sets every key in a JSON object of strings, as written by export, and saves. Use "-" to read stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening import: %w", err)
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			var values map[string]string
			if err := json.NewDecoder(r).Decode(&values); err != nil {
				return fmt.Errorf("parsing import: %w", err)
			}
			var errs []error
			for key := range values {
				if err := content.ValidateKey(key); err != nil {
					errs = append(errs, fmt.Errorf("key %q: %w", key, err))
				}
			}
			if err := errors.Join(errs...); err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = sess.close(ctx) }()
			if err := sess.writable(); err != nil {
				return err
			}

			n := 0
			for _, key := range slices.Sorted(maps.Keys(values)) {
				if f, ok := sess.page.Field(key); ok && f.Disabled {
					logger.Warn("skipping field that is not editable", "key", key)
					continue
				}
				if err := sess.store.Update(key, values[key]); err != nil {
					return err
				}
				n++
			}
			if err := sess.store.PersistAll(ctx); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d keys\n", n)
			return err
		},
	}
}
