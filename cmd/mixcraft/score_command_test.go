package main

import (
	"strings"
	"testing"
)

func TestScoreCommandRendersBreakdown(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"score", "--a", "8A:122:0.3", "--b", "9A:124:0.5"}, env.configPath)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	for _, want := range []string{"Overall 89 (mix profile)", "Adjacent", "Perfect", "Strong Rise", "1.64%", "+0.200"} {
		requireContains(t, out, want)
	}
	if strings.Contains(out, "warning:") {
		t.Fatalf("expected no warnings, got %q", out)
	}
}

func TestScoreCommandDraftProfileAndWarnings(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"score", "--a", "8a:122:0.3", "--b", "3B:140:0.9", "--profile", "draft"}, env.configPath)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	requireContains(t, out, "(draft profile)")
	requireContains(t, out, "Risky")
	requireContains(t, out, "Distance")
	requireContains(t, out, "warning: keys clash on the Camelot wheel")
	requireContains(t, out, "warning: tempo differs by 14.75%")
}

func TestScoreCommandRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing field", []string{"--a", "8A:122", "--b", "9A:124:0.5"}, "expected CAMELOT:BPM:ENERGY"},
		{"bad bpm", []string{"--a", "8A:fast:0.3", "--b", "9A:124:0.5"}, "invalid bpm"},
		{"bad key", []string{"--a", "13A:122:0.3", "--b", "9A:124:0.5"}, "Camelot key"},
		{"energy range", []string{"--a", "8A:122:0.3", "--b", "9A:124:1.5"}, "energy in [0, 1]"},
		{"unknown profile", []string{"--a", "8A:122:0.3", "--b", "9A:124:0.5", "--profile", "club"}, "unknown scoring profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, append([]string{"score"}, tt.args...), env.configPath)
			if err == nil {
				t.Fatal("expected error")
			}
			requireContains(t, err.Error(), tt.want)
		})
	}
}
