// Package app wires configuration, storage and the scope pipeline into the
// subcommands the CLI exposes.
package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/quidnu/subtubular/internal/config"
	"github.com/quidnu/subtubular/internal/index"
	"github.com/quidnu/subtubular/internal/pipeline"
	"github.com/quidnu/subtubular/internal/search"
	"github.com/quidnu/subtubular/internal/storage"
	"github.com/quidnu/subtubular/internal/youtube"
	"github.com/spf13/pflag"
)

// RunParams contains dependencies for the run functions
type RunParams struct {
	LoadSettings  func(*pflag.FlagSet) (*config.Settings, error)
	ValidSettings func(*config.Settings) error
	Out           io.Writer
	// CustomIOTransport is optional, for testing the MCP mode with custom IO
	CustomIOTransport mcp.Transport
}

// DefaultRunParams returns production dependencies
func DefaultRunParams() RunParams {
	return RunParams{
		LoadSettings:  config.LoadSettingsWithFlags,
		ValidSettings: config.ValidateSettings,
		Out:           os.Stdout,
	}
}

// App holds one command invocation's opened resources. The storage lock is
// held for the App's whole lifetime; Close releases everything.
type App struct {
	Settings *config.Settings
	Store    *index.Store
	Data     *storage.SQLiteStore
	Pipeline *pipeline.Pipeline

	lock *storage.FileLock
}

// Setup loads and validates settings, configures logging and opens the
// storage-backed App.
func Setup(params RunParams, flags *pflag.FlagSet, version string) (*App, error) {
	settings, err := params.LoadSettings(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := params.ValidSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Configure logging - always use stderr so output stays parseable
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	slog.Info("Starting SubTubular", "version", version)
	config.Log(settings)

	return Open(settings)
}

// Open acquires the storage lock and opens the shard store, the cache
// database and the upstream client for the given settings.
func Open(settings *config.Settings) (*App, error) {
	lock := storage.NewFileLock(settings.LockPath())
	if err := lock.Lock(settings.LockTimeout); err != nil {
		return nil, fmt.Errorf("lock storage directory %s: %w", settings.StorageDir, err)
	}

	store, err := index.NewStore(settings.IndexDir())
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	data, err := storage.NewSQLiteStore(settings.CachePath())
	if err != nil {
		_ = store.Close()
		_ = lock.Unlock()
		return nil, err
	}

	client := youtube.New(settings.ShardSize)
	return &App{
		Settings: settings,
		Store:    store,
		Data:     data,
		Pipeline: &pipeline.Pipeline{
			Source:      client,
			Store:       store,
			Engine:      search.NewEngine(store),
			Data:        data,
			Refresher:   client,
			Concurrency: settings.FetchConcurrency,
		},
		lock: lock,
	}, nil
}

// Close releases the shard store, the cache database and the storage lock.
func (a *App) Close() error {
	return errors.Join(a.Store.Close(), a.Data.Close(), a.lock.Unlock())
}

func outOf(params RunParams) io.Writer {
	if params.Out != nil {
		return params.Out
	}
	return os.Stdout
}
