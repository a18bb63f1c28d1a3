package main

import (
	"testing"
)

func TestCheckCommandWithMemoryBackends(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "Data directory")
	requireContains(t, out, "OK")
}

func TestCheckCommandFailsWhenRedisUnreachable(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Queue.Backend = "redis"
	env.cfg.Redis.Addr = "127.0.0.1:1"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"check"}, env.configPath)
	if err == nil {
		t.Fatal("expected unreachable redis to fail the check")
	}
	requireContains(t, out, "FAIL")
	requireContains(t, err.Error(), "checks failed")
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}
