// Package initcmder provides the init command for initializing a local .grove
// directory and store in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/config"
)

const (
	dirName = ".grove"
)

const initLongDesc string = `Initialize a new .grove/ directory in the current working directory.

Creates a local .grove/ directory that takes precedence over the default
~/.grove/ directory, writes a config.toml and bootstraps the store: the
well-known id sequences and the system root branch.

Use --preset to pick a storage preset for the generated config.toml:
  memory     Nothing is persisted
  sqlite     A grove.db file inside .grove/ (default)
  postgres   A local PostgreSQL database and a Kafka change set stream

An existing config.toml is never overwritten.

Examples:
  grove init
  grove init --preset postgres`

const initShortDesc string = "Initialize a local .grove/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Storage preset for config.toml (memory, sqlite, postgres)")
	return cmd
}

func runInit(cmd *cobra.Command, preset string) error {
	w := cmd.OutOrStdout()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .grove directory: %w", err)
	}
	fmt.Fprintf(w, "Initialized .grove directory: %s\n", dir)

	if err := writeConfig(w, dir, preset); err != nil {
		return err
	}

	return cliui.Step(w, "Bootstrapping store", func() error {
		s, err := session.OpenIn(cmd.Context(), cmd, dir)
		if err != nil {
			return err
		}
		return s.Close()
	})
}

func writeConfig(w io.Writer, dir, preset string) error {
	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	_, err = os.Stat(cfger.GetTarget())
	switch {
	case err == nil:
		if preset != "" {
			fmt.Fprintf(w, "Keeping existing config, ignoring --preset %s\n", preset)
		}
		return nil
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("reading config: %w", err)
	}

	cfg := config.NewDefaultConfig()
	if preset != "" {
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(w, "Wrote %s\n", cfger.GetTarget())
	return nil
}
