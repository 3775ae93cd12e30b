package insights

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
	"github.com/saturn-platform/opsclaw/internal/platform"
	"github.com/saturn-platform/opsclaw/internal/provider"
)

type fakePlatform struct {
	logs       string
	deployment platform.Deployment
	latest     platform.Deployment
	err        error
	gotUUID    string
}

func (f *fakePlatform) Logs(context.Context, executor.Resource, int) (string, error) {
	return f.logs, f.err
}

func (f *fakePlatform) Deployment(_ context.Context, uuid string) (platform.Deployment, error) {
	f.gotUUID = uuid
	return f.deployment, f.err
}

func (f *fakePlatform) LatestDeployment(context.Context, executor.Resource) (platform.Deployment, error) {
	return f.latest, f.err
}

type fakeModel struct {
	resp provider.ChatResponse
	reqs []provider.ChatRequest
}

func (m *fakeModel) Chat(_ context.Context, req provider.ChatRequest) provider.ChatResponse {
	m.reqs = append(m.reqs, req)
	return m.resp
}

var api = executor.Resource{Name: "api", UUID: "app-1", Type: command.ResourceApplication}

func fixedNow() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

func TestAnalyzeErrorsFiltersByWindow(t *testing.T) {
	logs := strings.Join([]string{
		"2026-03-01T10:00:00Z ERROR old failure",
		"2026-03-09T10:00:00Z ERROR db timeout",
		"2026-03-09T10:00:01Z info request ok",
		"panic: nil map write",
	}, "\n")
	model := &fakeModel{resp: provider.Succeeded("anthropic", "m", "DB timeouts (1x): check pool size.", nil)}
	a := New(&fakePlatform{logs: logs}, model)
	a.now = fixedNow

	out, err := a.AnalyzeErrors(context.Background(), api, 7)
	if err != nil {
		t.Fatalf("analyze errors: %v", err)
	}
	if out.Data["error_lines"] != 2 {
		t.Fatalf("expected 2 error lines, got %v", out.Data["error_lines"])
	}
	if !strings.Contains(out.Message, "DB timeouts") {
		t.Fatalf("expected model summary in %q", out.Message)
	}
	prompt := model.reqs[0].Messages[0].Content
	if strings.Contains(prompt, "old failure") || !strings.Contains(prompt, "nil map write") {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}

func TestAnalyzeErrorsWithoutErrorsSkipsModel(t *testing.T) {
	model := &fakeModel{}
	a := New(&fakePlatform{logs: "all good\nstill good"}, model)

	out, err := a.AnalyzeErrors(context.Background(), api, 1)
	if err != nil {
		t.Fatalf("analyze errors: %v", err)
	}
	if !strings.Contains(out.Message, "no errors found") || len(model.reqs) != 0 {
		t.Fatalf("unexpected outcome %q with %d model calls", out.Message, len(model.reqs))
	}
}

func TestAnalyzeErrorsFallsBackWhenModelFails(t *testing.T) {
	model := &fakeModel{resp: provider.Failed(errors.New("overloaded"), "anthropic", "m")}
	a := New(&fakePlatform{logs: "Exception in thread main"}, model)

	out, err := a.AnalyzeErrors(context.Background(), api, 1)
	if err != nil {
		t.Fatalf("analyze errors: %v", err)
	}
	if !strings.Contains(out.Message, "Most recent:\nException in thread main") {
		t.Fatalf("expected raw fallback, got %q", out.Message)
	}
}

func TestAnalyzeDeploymentByUUIDAndLatest(t *testing.T) {
	fp := &fakePlatform{
		deployment: platform.Deployment{UUID: "dep-1", Status: "failed", Logs: "step 1\nnpm ERR! missing script: build"},
		latest:     platform.Deployment{UUID: "dep-2", Status: "finished"},
	}
	a := New(fp, nil)

	out, err := a.AnalyzeDeployment(context.Background(), api, "dep-1")
	if err != nil {
		t.Fatalf("analyze deployment: %v", err)
	}
	if fp.gotUUID != "dep-1" || !strings.HasPrefix(out.Message, "Deployment dep-1 of api: failed.") {
		t.Fatalf("unexpected outcome %q", out.Message)
	}
	if !strings.Contains(out.Message, "missing script") {
		t.Fatalf("expected log tail without a model, got %q", out.Message)
	}

	out, err = a.AnalyzeDeployment(context.Background(), api, "")
	if err != nil {
		t.Fatalf("analyze latest deployment: %v", err)
	}
	if !strings.Contains(out.Message, "dep-2") || !strings.Contains(out.Message, "No build log") {
		t.Fatalf("unexpected latest outcome %q", out.Message)
	}
}

func TestReviewCode(t *testing.T) {
	fp := &fakePlatform{latest: platform.Deployment{UUID: "dep-3", Commit: "0123456789abcdef", CommitMessage: "add cache layer"}}

	out, err := New(fp, nil).ReviewCode(context.Background(), api)
	if err != nil {
		t.Fatalf("review code: %v", err)
	}
	if !strings.Contains(out.Message, "0123456 add cache layer") || !strings.Contains(out.Message, "needs a configured model") {
		t.Fatalf("unexpected outcome %q", out.Message)
	}

	model := &fakeModel{resp: provider.Succeeded("openai", "m", "Cache has no eviction.", nil)}
	out, err = New(fp, model).ReviewCode(context.Background(), api)
	if err != nil {
		t.Fatalf("review code: %v", err)
	}
	if !strings.HasSuffix(out.Message, "Cache has no eviction.") || model.reqs[0].SystemPrompt != reviewPrompt {
		t.Fatalf("unexpected outcome %q", out.Message)
	}
}

func TestPlatformErrorsPropagate(t *testing.T) {
	a := New(&fakePlatform{err: platform.ErrUnsupported}, nil)
	if _, err := a.AnalyzeErrors(context.Background(), api, 1); !errors.Is(err, platform.ErrUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
	if _, err := a.ReviewCode(context.Background(), api); !errors.Is(err, platform.ErrUnsupported) {
		t.Fatalf("expected unsupported error, got %v", err)
	}
}
