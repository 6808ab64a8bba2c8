// Package session opens the grove engine for a CLI command from the resolved
// flags, environment and config.toml.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/config"
	"github.com/papercomputeco/grove/pkg/dotdir"
	"github.com/papercomputeco/grove/pkg/engine"
	"github.com/papercomputeco/grove/pkg/logger"
	"github.com/papercomputeco/grove/pkg/storage"
)

const logFileName = "grove.log"

// Flags holds the storage flag targets of one command.
type Flags struct {
	driver      string
	sqlitePath  string
	postgresDSN string
	prefetch    uint
	publisher   string
	brokers     string
	topic       string
}

// AddFlags registers the storage flags on cmd.
func AddFlags(cmd *cobra.Command) *Flags {
	f := &Flags{}
	config.AddStringFlag(cmd, config.Registry, config.FlagStorageDriver, &f.driver)
	config.AddStringFlag(cmd, config.Registry, config.FlagSQLite, &f.sqlitePath)
	config.AddStringFlag(cmd, config.Registry, config.FlagPostgresDSN, &f.postgresDSN)
	config.AddUintFlag(cmd, config.Registry, config.FlagInitialPrefetch, &f.prefetch)
	config.AddStringFlag(cmd, config.Registry, config.FlagPublisher, &f.publisher)
	config.AddStringFlag(cmd, config.Registry, config.FlagKafkaBrokers, &f.brokers)
	config.AddStringFlag(cmd, config.Registry, config.FlagEventTopic, &f.topic)
	return f
}

// Session is an open, bootstrapped engine plus what the command resolved to
// get there.
type Session struct {
	Engine    *engine.Engine
	Root      *branch.Branch
	Config    *config.Config
	ConfigDir string
	Author    string
	Logger    *slog.Logger

	logFile *os.File
}

// Open resolves configuration for cmd, opens the store and bootstraps it.
func Open(ctx context.Context, cmd *cobra.Command) (*Session, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	return OpenIn(ctx, cmd, configDir)
}

// OpenIn is Open against an explicit .grove/ directory.
func OpenIn(ctx context.Context, cmd *cobra.Command, configDir string) (*Session, error) {
	debug, _ := cmd.Flags().GetBool("debug")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, err
	}
	config.BindRegisteredFlags(v, cmd, config.Registry, config.StorageFlags)
	config.BindRegisteredFlags(v, cmd, config.Registry, []string{config.FlagJoinMaxAge})
	cfg := config.FromViper(v)

	logFile, err := openLogFile(configDir)
	if err != nil {
		return nil, err
	}

	log := logger.Tee(
		logger.New(
			logger.WithPretty(true),
			logger.WithDebug(debug),
			logger.WithWriter(cmd.ErrOrStderr()),
		),
		logger.New(
			logger.WithJSON(true),
			logger.WithDebug(true),
			logger.WithWriter(logFile),
		),
	)

	e, err := engine.Open(ctx, cfg, configDir, log)
	if err != nil {
		return nil, errors.Join(err, logFile.Close())
	}

	author := Author()
	root, err := e.Bootstrap(ctx, author)
	if err != nil {
		return nil, errors.Join(err, e.Close(), logFile.Close())
	}

	return &Session{
		Engine:    e,
		Root:      root,
		Config:    cfg,
		ConfigDir: configDir,
		Author:    author,
		Logger:    log,
		logFile:   logFile,
	}, nil
}

// openLogFile opens the JSON debug log kept in the .grove/ directory.
func openLogFile(configDir string) (*os.File, error) {
	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// Close releases the engine and the log file.
func (s *Session) Close() error {
	return errors.Join(s.Engine.Close(), s.logFile.Close())
}

// Author names the current user for commit records.
func Author() string {
	if u := os.Getenv("GROVE_AUTHOR"); u != "" {
		return u
	}
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "grove"
}

// Branch resolves a branch reference: an id, an alias or a name. An empty
// reference means the checked out branch, or the root when nothing is
// checked out.
func (s *Session) Branch(ref string) (*branch.Branch, error) {
	if ref == "" {
		state, err := dotdir.NewManager().LoadCheckoutState(s.ConfigDir)
		if err != nil {
			return nil, fmt.Errorf("loading checkout state: %w", err)
		}
		if state == nil {
			return s.Root, nil
		}
		b, err := s.Engine.Branches.Get(state.BranchID)
		if err != nil {
			return nil, fmt.Errorf("checked out branch %d: %w", state.BranchID, err)
		}
		return b, nil
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.Engine.Branches.Get(id)
	}
	if b, err := s.Engine.Branches.ByAlias(ref); err == nil {
		return b, nil
	}
	for _, b := range s.Engine.Branches.All() {
		if b.Name() == ref {
			return b, nil
		}
	}
	return nil, storage.NotFoundError{Kind: "branch", Key: ref}
}
