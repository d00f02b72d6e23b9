package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	out, err := runCLI(t, "--help")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if out == "" {
		t.Error("expected help output, got empty string")
	}
	for _, want := range []string{"pquilt", "Patch Stack:", "push", "refresh"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help to contain %q", want)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	SetVersion("1.2.3")

	out, err := runCLI(t, "--version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "1.2.3") {
		t.Errorf("expected version output to contain version, got %q", out)
	}

	out, err = runCLI(t, "version")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(out) != "1.2.3" {
		t.Errorf("version = %q, want %q", out, "1.2.3")
	}
}

func TestRootCommand_InvalidCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetErr(&buf)
	defer rootCmd.SetErr(nil)

	if _, err := runCLI(t, "invalid-command"); err == nil {
		t.Error("expected error for invalid command")
	}
}

func TestSetVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		want    string
	}{
		{"normal version", "1.2.3", "1.2.3"},
		{"empty version", "", "1.2.3"}, // Should not change if empty
		{"dev version", "dev", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetVersion(tt.version)
			if rootCmd.Version != tt.want {
				t.Errorf("SetVersion(%q) = %q, want %q", tt.version, rootCmd.Version, tt.want)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	subcommands := []string{
		"push", "pop", "new", "delete", "refresh", "revert", "add", "edit",
		"import", "top", "next", "previous", "series", "applied", "unapplied",
		"version", "completion",
	}

	for _, cmd := range subcommands {
		t.Run(cmd, func(t *testing.T) {
			subCmd, _, err := rootCmd.Find([]string{cmd})
			if err != nil {
				t.Errorf("Find(%q) error = %v", cmd, err)
			}
			if subCmd == nil || subCmd.Name() != cmd {
				t.Errorf("Find(%q) returned %v", cmd, subCmd)
			}
			if subCmd != nil && subCmd.GroupID == "" {
				t.Errorf("%s is not in a command group", cmd)
			}
		})
	}
}

func TestCompletion(t *testing.T) {
	out, err := runCLI(t, "completion", "bash")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out, "pquilt") {
		t.Error("expected completion script to mention pquilt")
	}
}
