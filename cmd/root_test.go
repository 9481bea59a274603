package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestSetVersion(t *testing.T) {
	testVersion := "1.2.3-test"
	SetVersion(testVersion)

	if rootCmd.Version != testVersion {
		t.Errorf("Expected version to be %s, got %s", testVersion, rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "wm" {
		t.Errorf("Expected Use to be 'wm', got %s", rootCmd.Use)
	}

	if rootCmd.Short == "" {
		t.Error("Expected Short description to be set")
	}

	if rootCmd.Long == "" {
		t.Error("Expected Long description to be set")
	}

	if !rootCmd.SilenceUsage {
		t.Error("Expected SilenceUsage to be true")
	}

	if rootCmd.PersistentFlags().Lookup("debug") == nil {
		t.Error("Expected a persistent --debug flag")
	}
}

func TestVersionTemplate(t *testing.T) {
	testCmd := &cobra.Command{
		Use:     "test",
		Version: "1.0.0",
	}
	testCmd.SetVersionTemplate(`{{printf "wm version %s\n" .Version}}`)

	var buf bytes.Buffer
	testCmd.SetOut(&buf)
	testCmd.SetArgs([]string{"--version"})
	if err := testCmd.Execute(); err != nil {
		t.Fatalf("Error executing version command: %v", err)
	}

	if got, want := buf.String(), "wm version 1.0.0\n"; got != want {
		t.Errorf("Expected version output %q, got %q", want, got)
	}
}

func TestVersionCommand(t *testing.T) {
	originalVersion := rootCmd.Version
	defer func() { rootCmd.Version = originalVersion }()
	rootCmd.Version = "0.4.2"

	cmd := newVersionCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.Run(cmd, nil)

	if got := buf.String(); got != "wm version 0.4.2\n" {
		t.Errorf("Unexpected version output %q", got)
	}
}

func TestSubcommands(t *testing.T) {
	expectedCommands := []string{"run", "secret", "version", "self-update", "completions"}
	foundCommands := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		foundCommands[cmd.Name()] = true
	}

	for _, expected := range expectedCommands {
		if !foundCommands[expected] {
			t.Errorf("Expected subcommand %s to be registered", expected)
		}
	}
}

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	testRootCmd := &cobra.Command{
		Use:          rootCmd.Use,
		Short:        rootCmd.Short,
		Long:         rootCmd.Long,
		SilenceUsage: true,
	}
	testRootCmd.SetOut(&buf)
	testRootCmd.SetArgs([]string{"--help"})

	if err := testRootCmd.Execute(); err != nil {
		t.Fatalf("Error executing help command: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "wm") {
		t.Errorf("Help output should contain 'wm'. Got: %q", output)
	}
	if !strings.Contains(output, "war_machine.toml") {
		t.Errorf("Help output should contain the long description. Got: %q", output)
	}
}

func TestCompletionsCommand(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	defer rootCmd.SetOut(nil)
	defer rootCmd.SetArgs(nil)

	for _, args := range [][]string{{"completions", "bash"}, {"completion", "zsh"}} {
		buf.Reset()
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("wm %s failed: %v", strings.Join(args, " "), err)
		}
		if !strings.Contains(buf.String(), "wm") {
			t.Errorf("wm %s should print a script for wm. Got: %q", strings.Join(args, " "), buf.String())
		}
	}

	rootCmd.SetArgs([]string{"completions", "tcsh"})
	rootCmd.SetErr(&buf)
	defer rootCmd.SetErr(nil)
	if err := rootCmd.Execute(); err == nil {
		t.Error("Expected an error for an unsupported shell")
	}
}
