package app

import "github.com/spf13/pflag"

// RegisterFlags registers the configuration flags shared by all subcommands
// on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("storage-dir", "", "Directory holding the shard indexes and caches")
	flags.Int("shard-size", 0, "Number of videos per index shard")
	flags.IntP("max-results", "m", 0, "Maximum number of search results")
	flags.Int("fetch-concurrency", 0, "Concurrent video fetches per scope")
	flags.Duration("cache-freshness", 0, "How old a cached video list may be before it is refreshed")
	flags.Duration("lock-timeout", 0, "How long to wait for another process to release the storage directory")
}

// RegisterScopeFlags registers the scope selection flags used by the search
// and keywords subcommands
func RegisterScopeFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("channel", "c", nil, "Channel ids to include (repeatable)")
	flags.StringSliceP("playlist", "p", nil, "Playlist ids to include (repeatable)")
	flags.StringSliceP("videos", "v", nil, "Explicit video ids to include (comma-separated)")
	flags.Int("skip", 0, "Videos to skip from the top of each collection")
	flags.Int("take", 0, "Videos to take per collection after skipping (0 = all)")
}
