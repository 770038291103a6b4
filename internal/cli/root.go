package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nhle/action-store/internal/config"
	"github.com/nhle/action-store/internal/logging"
	"github.com/nhle/action-store/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Check found problems that were not repaired
	ExitCommandError = 2 // Command error (bad config, unreadable database, etc.)
)

// ExitError carries the exit code a command failure should produce.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string
	Verbose    bool
}

// NewRootCommand creates the root command for the actionstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "actionstore",
		Short: "Inspect and maintain an action store database",
		Long: `actionstore manages the SQLite database that holds folders and their
ordered actions: create it, check it for orphaned rows, and back it up.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", config.DefaultConfigPath(), "config file")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database file (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewInfoCommand(opts))
	cmd.AddCommand(NewFoldersCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewBackupCommand(opts))

	return cmd
}

// env is what every command needs: the loaded config, the open store and a
// cleanup func that closes both the store and the log file.
type env struct {
	cfg   *config.AppConfig
	store *store.Store
	close func()
}

func openEnv(ctx context.Context, opts *RootOptions) (*env, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "loading config", Err: err}
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, logCloser, err := logging.Init(cfg.Log.Path, level)
	if err != nil {
		return nil, &ExitError{Code: ExitCommandError, Message: "initializing logging", Err: err}
	}

	s, err := store.Open(ctx, cfg.Database.Path,
		store.WithLogger(logger),
		store.WithBusyTimeout(cfg.Database.BusyTimeout()),
		store.WithWAL(cfg.Database.WAL),
	)
	if err != nil {
		logCloser.Close()
		return nil, &ExitError{Code: ExitCommandError, Message: "opening " + cfg.Database.Path, Err: err}
	}

	return &env{
		cfg:   cfg,
		store: s,
		close: func() {
			s.Close(true)
			closeQuietly(logCloser, logger)
		},
	}, nil
}

func closeQuietly(c io.Closer, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("closing log output", "error", err)
	}
}
