package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	tests := []struct {
		name  string
		xdg   string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "xdg set", xdg: "/custom/config", input: "$XDG_CONFIG_HOME/report-scheduler/config.yaml", want: filepath.Join("/custom/config", "report-scheduler", "config.yaml")},
		{name: "xdg unset falls back", input: "$XDG_CONFIG_HOME/report-scheduler", want: filepath.Join(home, ".config", "report-scheduler")},
		{name: "xdg only", xdg: "/custom/config", input: "$XDG_CONFIG_HOME", want: "/custom/config"},
		{name: "tilde", input: "~/logs/scheduler.log", want: filepath.Join(home, "logs", "scheduler.log")},
		{name: "tilde only", input: "~", want: home},
		{name: "relative cleaned", input: "./configs/../config.json", want: "config.json"},
		{name: "absolute", input: "/etc/report-scheduler/config.yaml", want: "/etc/report-scheduler/config.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tt.xdg)
			got, err := ExpandPath(tt.input)
			if err != nil {
				t.Fatalf("ExpandPath() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(file, []byte("a: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("expected file to exist")
	}
	if FileExists(dir) {
		t.Error("directory should not count as a file")
	}
	if FileExists(filepath.Join(dir, "missing")) {
		t.Error("missing file reported as existing")
	}
}
