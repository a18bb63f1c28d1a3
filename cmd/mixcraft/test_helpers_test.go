package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mixcraft/internal/config"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/store"
	"mixcraft/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("NO_COLOR", "1")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		store:      testsupport.MustOpenStore(t, cfg),
		configPath: configPath,
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// readyProject stores three analyzed tracks and leaves the project READY
// so it can be reordered.
func readyProject(t *testing.T, st *store.Store) (*store.Project, []*store.Track) {
	t.Helper()
	project := testsupport.NewProject(t, st, "Friday set")
	tracks := []*store.Track{
		testsupport.AnalyzedTrack(t, st, project.ID, "/music/t1.wav", 122, "8A", 0.3),
		testsupport.AnalyzedTrack(t, st, project.ID, "/music/t2.wav", 124, "9A", 0.5),
		testsupport.AnalyzedTrack(t, st, project.ID, "/music/t3.wav", 123, "8A", 0.4),
	}
	project.Status = pipeline.ProjectReady
	if err := st.UpdateProject(context.Background(), project); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	return project, tracks
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
