package testsupport

import (
	"path/filepath"
	"testing"

	"mixcraft/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Queue and chat backends default to memory so no Redis is needed.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Queue.Backend = "memory"
	cfgVal.Chat.Backend = "memory"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRedis points the config at a Redis server and switches both queue and
// chat backends to it.
func WithRedis(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Redis.Addr = addr
		b.cfg.Queue.Backend = "redis"
		b.cfg.Chat.Backend = "redis"
	}
}

// WithDraftProfile overrides the draft scoring profile.
func WithDraftProfile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.DraftProfile = name
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
