package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/m3rciful/winbingo/core/buildinfo"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != buildinfo.String() {
		t.Fatalf("version = %q, want %q", got, buildinfo.String())
	}
}

func TestMigrateMissingConfig(t *testing.T) {
	t.Setenv(configEnvVar, "")
	rootCmd.SetArgs([]string{"migrate", "--config", t.TempDir() + "/absent.yaml"})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}
