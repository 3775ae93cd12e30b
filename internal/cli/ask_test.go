package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/saturn-platform/opsclaw/internal/provider"
	"github.com/saturn-platform/opsclaw/internal/tooldefs"
)

func TestAskRunsModelToolCall(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	var requests []provider.ChatRequest
	resp := provider.Succeeded("anthropic", "claude-sonnet-4-5", "", []provider.ToolCall{{
		ID:        "tool_1",
		Name:      tooldefs.ExecuteCommandTool,
		Arguments: map[string]any{"commands": []any{map[string]any{"action": "help"}}},
		Type:      "function",
	}})
	useFakeProvider(t, fakeProvider{resp: resp, requests: &requests})

	out, err := runRoot(t, "", "ask", "what", "can", "you", "do")
	if err != nil {
		t.Fatalf("execute ask: %v", err)
	}
	if !strings.Contains(out, "Supported actions:") {
		t.Fatalf("expected help output, got %q", out)
	}
	if len(requests) != 1 || requests[0].Messages[0].Content != "what can you do" {
		t.Fatalf("unexpected model requests %+v", requests)
	}
}

func TestAskWithoutLookupBackend(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	out, err := runRoot(t, "", "ask", "--no-model", "restart app api")
	if err != nil {
		t.Fatalf("execute ask: %v", err)
	}
	if !strings.Contains(out, "Resource lookup is not configured") {
		t.Fatalf("expected missing lookup message, got %q", out)
	}
}

func TestAskPromptsBeforeDangerousCommand(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	out, err := runRoot(t, "n\n", "ask", "--no-model", "delete app api")
	if err != nil {
		t.Fatalf("execute ask: %v", err)
	}
	if !strings.Contains(out, "[y/N]") {
		t.Fatalf("expected confirmation prompt, got %q", out)
	}
	if !strings.Contains(out, "Cancelled") {
		t.Fatalf("expected cancellation, got %q", out)
	}
}

func TestAskRejectsSlashCommands(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	_, err := runRoot(t, "", "ask", "/reset")
	if err == nil || !strings.Contains(err.Error(), "only available in the repl") {
		t.Fatalf("expected slash command rejection, got %v", err)
	}
}

func TestAskJSONOutput(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	out, err := runRoot(t, "", "ask", "--no-model", "--json", "help")
	if err != nil {
		t.Fatalf("execute ask: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got["source"] != "heuristic" || got["input"] != "help" {
		t.Fatalf("unexpected turn %v", got)
	}
	results, ok := got["results"].([]any)
	if !ok || len(results) != 1 {
		t.Fatalf("expected one result, got %v", got["results"])
	}
}

func TestAskSessionParksDangerousCommandsUntilConfirmed(t *testing.T) {
	mr := miniredis.RunT(t)
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir, "[redis]\naddr = \""+mr.Addr()+"\"")

	out, err := runRoot(t, "", "ask", "--no-model", "--session", "chat-7", "delete app api")
	if err != nil {
		t.Fatalf("execute ask: %v", err)
	}
	if !strings.Contains(out, "opsclaw confirm chat-7") {
		t.Fatalf("expected confirm hint, got %q", out)
	}
	if !mr.Exists("opsclaw:pending:chat-7") {
		t.Fatalf("expected parked intent in redis")
	}

	out, err = runRoot(t, "", "confirm", "chat-7")
	if err != nil {
		t.Fatalf("execute confirm: %v", err)
	}
	if !strings.Contains(out, "Resource lookup is not configured") {
		t.Fatalf("expected confirmed delete to reach the executor, got %q", out)
	}

	_, err = runRoot(t, "", "confirm", "chat-7")
	if err == nil || !strings.Contains(err.Error(), "nothing is waiting") {
		t.Fatalf("expected second confirm to fail, got %v", err)
	}
}

func TestConfirmCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir, "[redis]\naddr = \""+mr.Addr()+"\"")

	if _, err := runRoot(t, "", "ask", "--no-model", "--session", "s1", "stop service redis"); err != nil {
		t.Fatalf("execute ask: %v", err)
	}
	out, err := runRoot(t, "", "confirm", "--cancel", "s1")
	if err != nil {
		t.Fatalf("execute confirm --cancel: %v", err)
	}
	if strings.TrimSpace(out) != "Cancelled." {
		t.Fatalf("unexpected output %q", out)
	}
	if mr.Exists("opsclaw:pending:s1") {
		t.Fatalf("expected parked intent to be discarded")
	}
}

func TestAskSessionRequiresRedis(t *testing.T) {
	dataDir := createTestHome(t)
	writeValidConfig(t, dataDir)

	_, err := runRoot(t, "", "ask", "--no-model", "--session", "s1", "delete app api")
	if err == nil || !strings.Contains(err.Error(), "redis.addr is not configured") {
		t.Fatalf("expected redis error, got %v", err)
	}
}
