package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mixcraft/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "mixcraft")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "mixcraft.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIBind != "127.0.0.1:7490" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Chat.HistoryLimit != 10 {
		t.Fatalf("expected chat history limit 10, got %d", cfg.Chat.HistoryLimit)
	}
	if cfg.Scoring.DraftProfile != "draft" || cfg.Scoring.MixProfile != "mix" {
		t.Fatalf("unexpected scoring profiles: %+v", cfg.Scoring)
	}
	if cfg.Queue.Backend != "redis" {
		t.Fatalf("expected redis queue backend, got %q", cfg.Queue.Backend)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "mixcraft.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Queue struct {
			Backend string `toml:"backend"`
		} `toml:"queue"`
		Chat struct {
			Backend      string `toml:"backend"`
			HistoryLimit int    `toml:"history_limit"`
		} `toml:"chat"`
		Scoring struct {
			DraftProfile string `toml:"draft_profile"`
		} `toml:"scoring"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Queue.Backend = "Memory"
	custom.Chat.Backend = "redis"
	custom.Chat.HistoryLimit = 4
	custom.Scoring.DraftProfile = "mix"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.DataDir != custom.Paths.DataDir {
		t.Fatalf("expected data dir from file, got %q", cfg.Paths.DataDir)
	}
	if cfg.Queue.Backend != "memory" {
		t.Fatalf("expected normalized memory backend, got %q", cfg.Queue.Backend)
	}
	if cfg.Chat.Backend != "redis" || cfg.Chat.HistoryLimit != 4 {
		t.Fatalf("unexpected chat config: %+v", cfg.Chat)
	}
	if cfg.Scoring.DraftProfile != "mix" {
		t.Fatalf("expected draft profile override, got %q", cfg.Scoring.DraftProfile)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvRedisAddr, "redis.internal:6380")
	t.Setenv(config.EnvRedisPassword, "secret")
	t.Setenv(config.EnvNtfyTopic, " https://ntfy.sh/mixes ")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Redis.Addr != "redis.internal:6380" {
		t.Fatalf("expected redis addr from env, got %q", cfg.Redis.Addr)
	}
	if cfg.Redis.Password != "secret" {
		t.Fatalf("expected redis password from env, got %q", cfg.Redis.Password)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/mixes" {
		t.Fatalf("expected trimmed ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestDotEnvFillsUnsetVariables(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(config.EnvRedisPassword, "")
	os.Unsetenv(config.EnvRedisPassword)
	t.Setenv(config.EnvNtfyTopic, "from-process")

	dotenv := config.EnvRedisPassword + "=from-dotenv\n" + config.EnvNtfyTopic + "=from-dotenv\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(dotenv), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Redis.Password != "from-dotenv" {
		t.Fatalf("expected password from .env, got %q", cfg.Redis.Password)
	}
	if cfg.Notifications.NtfyTopic != "from-process" {
		t.Fatalf("expected process env to win over .env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[scoring]") {
		t.Fatalf("sample config missing scoring section: %s", contents)
	}

	cfg := config.Default()
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config should validate: %v", err)
	}
	if !strings.Contains(cfg.Paths.DataDir, "mixcraft") {
		t.Fatalf("expected data dir to contain mixcraft, got %q", cfg.Paths.DataDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"queue backend", func(c *config.Config) { c.Queue.Backend = "kafka" }},
		{"chat backend", func(c *config.Config) { c.Chat.Backend = "disk" }},
		{"chat limit", func(c *config.Config) { c.Chat.HistoryLimit = 0 }},
		{"scoring profile", func(c *config.Config) { c.Scoring.DraftProfile = "loud" }},
		{"retry interval", func(c *config.Config) { c.Workflow.ErrorRetryInterval = 0 }},
		{"progress bucket", func(c *config.Config) { c.Workflow.ProgressBucket = 101 }},
		{"request timeout", func(c *config.Config) { c.Notifications.RequestTimeout = 0 }},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }},
		{"same lists", func(c *config.Config) { c.Redis.ProcessingList = c.Redis.ResultList }},
	}
	for _, tc := range cases {
		cfg := config.Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
