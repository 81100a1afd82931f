// Package cli implements tasksctl, a terminal client for the task store.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/s1natex/lightly-tasks/internal/config"
	"github.com/s1natex/lightly-tasks/internal/storage"
	"github.com/s1natex/lightly-tasks/internal/tasks"
)

// app is the state shared by every subcommand for one invocation.
type app struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg          config.Config
	store        *tasks.Store
	closeStorage func() error
	writeErr     func() error
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "tasksctl",
		Short:         "Manage your tasks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite file to use (overrides the configured backend)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log store diagnostics to stderr")

	root.AddCommand(
		a.withStore(newAddCmd(a)),
		a.withStore(newListCmd(a)),
		a.withStore(newToggleCmd(a)),
		a.withStore(newEditCmd(a)),
		a.withStore(newRemoveCmd(a)),
		a.withStore(newCategoriesCmd(a)),
		a.withStore(newStreakCmd(a)),
		newTokenCmd(a),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.Storage.Backend = string(storage.BackendSQLite)
		cfg.Storage.SQLitePath = a.dbPath
	}
	a.cfg = cfg
	return nil
}

// withStore opens the store around cmd's RunE and always flushes it, even
// when the command fails.
func (a *app) withStore(cmd *cobra.Command) *cobra.Command {
	runE := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		if err := a.open(cmd.Context(), cmd.ErrOrStderr()); err != nil {
			return err
		}
		defer func() {
			if cerr := a.close(); err == nil {
				err = cerr
			}
		}()
		return runE(cmd, args)
	}
	return cmd
}

func (a *app) open(ctx context.Context, stderr io.Writer) error {
	if err := a.loadConfig(); err != nil {
		return err
	}

	level := slog.LevelError
	if a.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	provider, closeStorage, err := storage.Open(ctx, storage.Options{
		Backend:     storage.Backend(a.cfg.Storage.Backend),
		SQLitePath:  a.cfg.Storage.SQLitePath,
		RedisAddr:   a.cfg.Storage.RedisAddr,
		RedisPrefix: a.cfg.Storage.RedisPrefix,
	})
	if err != nil {
		return err
	}

	var writeErr error
	a.closeStorage = closeStorage
	a.store = tasks.NewStore(provider,
		tasks.WithLogger(logger),
		tasks.WithSeedCategories(a.cfg.SeedCategories),
		tasks.WithKeys(a.cfg.Storage.TasksKey, a.cfg.Storage.CategoriesKey),
		tasks.WithOnWriteError(func(key string, err error) {
			writeErr = fmt.Errorf("saving %s: %w", key, err)
		}),
	)
	a.store.Load(ctx)

	// surfaced by close once the writer has stopped
	a.writeErr = func() error { return writeErr }
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := a.store.Close(ctx)
	if err == nil {
		err = a.writeErr()
	}
	if cerr := a.closeStorage(); err == nil {
		err = cerr
	}
	a.store = nil
	return err
}
