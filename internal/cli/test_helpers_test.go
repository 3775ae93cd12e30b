package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/saturn-platform/opsclaw/internal/config"
	"github.com/saturn-platform/opsclaw/internal/provider"
)

const baseConfig = `
[llm.default]
api_key = "test-key"
provider = "anthropic"
model = "claude-sonnet-4-5"

[executor]
team_id = "team-1"
operator = "alice"
`

func createTestHome(t *testing.T) string {
	t.Helper()
	dataDir := filepath.Join(t.TempDir(), ".opsclaw")
	t.Setenv(config.HomeEnv, dataDir)
	return dataDir
}

// writeValidConfig writes the base config followed by any extra TOML sections.
func writeValidConfig(t *testing.T, dataDir string, extra ...string) {
	t.Helper()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	body := baseConfig
	for _, e := range extra {
		body += "\n" + e + "\n"
	}
	if err := os.WriteFile(filepath.Join(dataDir, "config.toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

type fakeProvider struct {
	resp     provider.ChatResponse
	requests *[]provider.ChatRequest
}

func (p fakeProvider) Chat(_ context.Context, req provider.ChatRequest) provider.ChatResponse {
	if p.requests != nil {
		*p.requests = append(*p.requests, req)
	}
	return p.resp
}

func useFakeProvider(t *testing.T, p provider.Provider) {
	t.Helper()
	orig := providerFactory
	t.Cleanup(func() { providerFactory = orig })
	providerFactory = func(config.LLMProviderConfig) (provider.Provider, error) {
		return p, nil
	}
}

// runRoot executes the root command with args and stdin, returning combined output.
func runRoot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetIn(bytes.NewBufferString(stdin))
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}
