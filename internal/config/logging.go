package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: storage_dir", "value", s.StorageDir)
	logger.InfoContext(ctx, "Config: shard_size", "value", s.ShardSize)
	logger.InfoContext(ctx, "Config: max_results", "value", s.MaxResults)
	logger.InfoContext(ctx, "Config: fetch_concurrency", "value", s.FetchConcurrency)
	logger.InfoContext(ctx, "Config: cache_freshness", "value", s.CacheFreshness)
	logger.InfoContext(ctx, "Config: lock_timeout", "value", s.LockTimeout)
}

// SettingsLogValue returns a slog.Value for Settings
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.String("storage_dir", s.StorageDir),
		slog.Int("shard_size", s.ShardSize),
		slog.Int("max_results", s.MaxResults),
		slog.Int("fetch_concurrency", s.FetchConcurrency),
		slog.Duration("cache_freshness", s.CacheFreshness),
		slog.Duration("lock_timeout", s.LockTimeout),
	)
}
