package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Settings application settings
type Settings struct {
	// StorageDir holds the shard indexes, the cache database and the
	// process lock.
	StorageDir string `mapstructure:"storage_dir"`

	// ShardSize is the number of videos per index shard. The indexing
	// engine has a practical per-index size ceiling; collections larger
	// than this are split across numbered shards.
	ShardSize int `mapstructure:"shard_size"`

	// MaxResults caps raw hits per shard and search output.
	MaxResults int `mapstructure:"max_results"`

	// FetchConcurrency bounds concurrent video fetches per scope.
	FetchConcurrency int `mapstructure:"fetch_concurrency"`

	// CacheFreshness is how old a cached video list may be before a
	// background refresh is started.
	CacheFreshness time.Duration `mapstructure:"cache_freshness"`

	// LockTimeout bounds waiting for another process to leave the
	// storage directory.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
}

// LoadSettings loads settings from environment variables and optional .env file
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > .env file > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("storage_dir", defaultStorageDir())
	v.SetDefault("shard_size", 200)
	v.SetDefault("max_results", 100)
	v.SetDefault("fetch_concurrency", 4)
	v.SetDefault("cache_freshness", 24*time.Hour)
	v.SetDefault("lock_timeout", 5*time.Second)

	// Environment variables
	v.SetEnvPrefix("SUBTUBULAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("storage_dir", "SUBTUBULAR_STORAGE_DIR")
	_ = v.BindEnv("shard_size", "SUBTUBULAR_SHARD_SIZE")
	_ = v.BindEnv("max_results", "SUBTUBULAR_MAX_RESULTS")
	_ = v.BindEnv("fetch_concurrency", "SUBTUBULAR_FETCH_CONCURRENCY")
	_ = v.BindEnv("cache_freshness", "SUBTUBULAR_CACHE_FRESHNESS")
	_ = v.BindEnv("lock_timeout", "SUBTUBULAR_LOCK_TIMEOUT")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		_ = v.BindPFlag("storage_dir", flags.Lookup("storage-dir"))
		_ = v.BindPFlag("shard_size", flags.Lookup("shard-size"))
		_ = v.BindPFlag("max_results", flags.Lookup("max-results"))
		_ = v.BindPFlag("fetch_concurrency", flags.Lookup("fetch-concurrency"))
		_ = v.BindPFlag("cache_freshness", flags.Lookup("cache-freshness"))
		_ = v.BindPFlag("lock_timeout", flags.Lookup("lock-timeout"))
	}

	// Helper to look for .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if .env doesn't exist

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	settings.StorageDir = expandHomeDir(settings.StorageDir)

	return &settings, nil
}

// IndexDir returns the shard index directory under the storage dir.
func (s *Settings) IndexDir() string {
	return filepath.Join(s.StorageDir, "indexes")
}

// CachePath returns the cache database path under the storage dir.
func (s *Settings) CachePath() string {
	return filepath.Join(s.StorageDir, "cache.db")
}

// LockPath returns the process lock path under the storage dir.
func (s *Settings) LockPath() string {
	return filepath.Join(s.StorageDir, "storage.lock")
}

// defaultStorageDir returns the default storage directory
func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".subtubular"
	}
	return filepath.Join(home, ".subtubular")
}

// expandHomeDir expands ~ to the user's home directory
func expandHomeDir(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	return path
}

// ValidateSettings checks for unusable configurations.
func ValidateSettings(s *Settings) error {
	if s.StorageDir == "" {
		return errors.New("storage-dir cannot be empty")
	}
	if s.ShardSize <= 0 {
		return errors.New("shard-size must be positive")
	}
	if s.MaxResults <= 0 {
		return errors.New("max-results must be positive")
	}
	if s.FetchConcurrency <= 0 {
		return errors.New("fetch-concurrency must be positive")
	}
	if s.CacheFreshness < 0 {
		return errors.New("cache-freshness must not be negative")
	}
	if s.LockTimeout <= 0 {
		return errors.New("lock-timeout must be positive")
	}
	return nil
}
