package preflight

import (
	"context"
	"strings"

	"mixcraft/internal/config"
)

// minFreeBytes is the space the SQLite store and log files need to keep
// writing.
const minFreeBytes = 256 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// RunAll executes all applicable preflight checks for the given config.
// Redis is only checked when a backend uses it.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	if cfg.Paths.LogDir != "" && cfg.Paths.LogDir != cfg.Paths.DataDir {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	results = append(results, CheckFreeSpace("Data disk", cfg.Paths.DataDir, minFreeBytes))

	if usesRedis(cfg) {
		results = append(results, CheckRedis(ctx, cfg.Redis))
	}
	return results
}

func usesRedis(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Queue.Backend, "redis") || strings.EqualFold(cfg.Chat.Backend, "redis")
}
