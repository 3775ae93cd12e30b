package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigPrintsMergedConfig(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	got, err := runRoot(t, "", "config")
	if err != nil {
		t.Fatalf("execute config: %v", err)
	}

	if !strings.Contains(got, "[llm.default]") {
		t.Fatalf("expected llm.default section, got %q", got)
	}
	if !strings.Contains(got, "provider = 'anthropic'") {
		t.Fatalf("expected merged provider in output, got %q", got)
	}
	if !strings.Contains(got, "[executor]") {
		t.Fatalf("expected executor section in output, got %q", got)
	}
}

func TestConfigInitWritesStarterConfig(t *testing.T) {
	dataDir := createTestHome(t)

	out, err := runRoot(t, "", "config", "init")
	if err != nil {
		t.Fatalf("execute config init: %v", err)
	}
	path := filepath.Join(dataDir, "config.toml")
	if !strings.Contains(out, path) {
		t.Fatalf("expected path in output, got %q", out)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read written config: %v", err)
	}
	if !strings.Contains(string(raw), "$OPSCLAW_PLATFORM_TOKEN") {
		t.Fatalf("expected token placeholder, got %q", raw)
	}

	_, err = runRoot(t, "", "config", "init")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing config to be kept, got %v", err)
	}
	if _, err := runRoot(t, "", "config", "init", "--force"); err != nil {
		t.Fatalf("expected --force to replace config: %v", err)
	}
}
