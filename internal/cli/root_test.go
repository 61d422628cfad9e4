package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestRootCommand_Help(t *testing.T) {
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"--help"})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "gda") {
		t.Error("expected help to contain 'gda'")
	}
	for _, group := range []string{"Project Setup:", "Asset Sync:", "CLI & Tooling:"} {
		if !strings.Contains(output, group) {
			t.Errorf("expected help to contain group %q", group)
		}
	}
}

func TestRootCommand_Version(t *testing.T) {
	resetFlags(rootCmd)
	SetVersion("1.2.3")
	rootCmd.SetArgs([]string{"--version"})
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)

	err := rootCmd.Execute()
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !strings.Contains(buf.String(), "1.2.3") {
		t.Errorf("expected version output to contain version, got %q", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	SetVersion("2.0.0")
	out, err := runCLI(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if strings.TrimSpace(out) != "2.0.0" {
		t.Errorf("version output = %q", out)
	}
}

func TestRootCommand_InvalidCommand(t *testing.T) {
	resetFlags(rootCmd)
	rootCmd.SetArgs([]string{"invalid-command"})
	var buf bytes.Buffer
	rootCmd.SetErr(&buf)

	err := rootCmd.Execute()
	if err == nil {
		t.Error("expected error for invalid command")
	}
}

func TestSetVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{"normal version", "1.2.3"},
		{"empty version", ""}, // Should not change if empty
		{"dev version", "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := rootCmd.Version
			SetVersion(tt.version)
			want := tt.version
			if want == "" {
				want = before
			}
			if rootCmd.Version != want {
				t.Errorf("SetVersion(%q) = %q, want %q", tt.version, rootCmd.Version, want)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	subcommands := []string{"init", "resolve", "pull", "push", "status", "version", "completion"}

	for _, cmd := range subcommands {
		t.Run(cmd, func(t *testing.T) {
			subCmd, _, err := rootCmd.Find([]string{cmd})
			if err != nil {
				t.Errorf("Find(%q) error = %v", cmd, err)
			}
			if subCmd == nil || subCmd.Name() != cmd {
				t.Errorf("Find(%q) returned %v", cmd, subCmd)
			}
		})
	}
}
