package approval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
)

type fakeApprover struct {
	decisions []Decision
	err       error
	requests  []Request
}

func (f *fakeApprover) RequestApproval(_ context.Context, req Request) (Decision, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return Denied, f.err
	}
	if len(f.decisions) == 0 {
		return Denied, nil
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d, nil
}

type recordingExecutor struct {
	ran []command.Action
}

func (r *recordingExecutor) execute(_ context.Context, cmd command.ParsedCommand) executor.Result {
	r.ran = append(r.ran, cmd.Action)
	return executor.Result{Success: true, Action: cmd.Action}
}

func mixedIntent() command.ParsedIntent {
	return command.NewParsedIntent([]command.ParsedCommand{
		{Action: command.ActionStatus, ResourceType: command.ResourceApplication, ResourceName: "api"},
		{Action: command.ActionStop, ResourceType: command.ResourceApplication, ResourceName: "api"},
		{Action: command.ActionStart, ResourceType: command.ResourceApplication, ResourceName: "worker"},
	}, 0.9, "")
}

func TestGate_SafeCommandsNeverPrompt(t *testing.T) {
	appr := &fakeApprover{}
	rec := &recordingExecutor{}
	intent := command.NewParsedIntent([]command.ParsedCommand{
		{Action: command.ActionStatus, ResourceName: "api"},
		{Action: command.ActionRestart, ResourceName: "api"},
	}, 0.8, "")

	report, err := NewGate(appr).Run(context.Background(), intent, rec.execute)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(appr.requests) != 0 {
		t.Fatalf("expected no approval requests, got %d", len(appr.requests))
	}
	if len(report.Results) != 2 || report.Denied || len(report.Skipped) != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestGate_ApprovedDangerousCommandRuns(t *testing.T) {
	appr := &fakeApprover{decisions: []Decision{Approved}}
	rec := &recordingExecutor{}

	report, err := NewGate(appr).Run(context.Background(), mixedIntent(), rec.execute)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []command.Action{command.ActionStatus, command.ActionStop, command.ActionStart}
	if strings.Join(actions(rec.ran), ",") != strings.Join(actions(want), ",") {
		t.Fatalf("expected order %v, got %v", want, rec.ran)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if len(appr.requests) != 1 || appr.requests[0].Action != command.ActionStop {
		t.Fatalf("expected one stop approval request, got %+v", appr.requests)
	}
	desc := appr.requests[0].Description
	if !strings.Contains(desc, "needs confirmation") || !strings.Contains(desc, `Next: stop application "api"`) {
		t.Fatalf("unexpected approval description %q", desc)
	}
}

func TestGate_DenialStopsRemainingCommands(t *testing.T) {
	appr := &fakeApprover{decisions: []Decision{Denied}}
	rec := &recordingExecutor{}

	report, err := NewGate(appr).Run(context.Background(), mixedIntent(), rec.execute)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.ran) != 1 || rec.ran[0] != command.ActionStatus {
		t.Fatalf("only the command before the denial may run, got %v", rec.ran)
	}
	if !report.Denied || len(report.Skipped) != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	if got := DeniedMessage(report.Skipped); got != `Cancelled: stop application "api" and 1 more commands were not run.` {
		t.Fatalf("unexpected denied message %q", got)
	}
}

func TestGate_NilApproverDenies(t *testing.T) {
	rec := &recordingExecutor{}
	intent := command.NewParsedIntent([]command.ParsedCommand{{Action: command.ActionDelete, ResourceName: "old"}}, 1, "")

	report, err := NewGate(nil).Run(context.Background(), intent, rec.execute)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(rec.ran) != 0 || !report.Denied {
		t.Fatalf("nil approver must deny, got %+v", report)
	}
	if got := DeniedMessage(report.Skipped); got != `Cancelled: delete "old" was not run.` {
		t.Fatalf("unexpected denied message %q", got)
	}
}

func TestGate_ApproverErrorStops(t *testing.T) {
	appr := &fakeApprover{err: errors.New("stdin closed")}
	rec := &recordingExecutor{}

	report, err := NewGate(appr).Run(context.Background(), mixedIntent(), rec.execute)
	if err == nil || !strings.Contains(err.Error(), "stdin closed") {
		t.Fatalf("expected approver error, got %v", err)
	}
	if len(rec.ran) != 1 || len(report.Skipped) != 2 || report.Denied {
		t.Fatalf("unexpected report %+v (ran %v)", report, rec.ran)
	}
}

func TestGate_CancelledContextSkipsEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recordingExecutor{}

	report, err := NewGate(&fakeApprover{}).Run(ctx, mixedIntent(), rec.execute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(rec.ran) != 0 || len(report.Skipped) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestFormatPrompt(t *testing.T) {
	cases := []struct {
		req  Request
		want string
	}{
		{Request{Action: command.ActionStop}, "run stop? [y/N]: "},
		{Request{Action: command.ActionStop, Description: `stop "api"`}, `run stop "api"? [y/N]: `},
		{Request{Action: command.ActionStop, Description: "two\nlines"}, "two\nlines\nproceed? [y/N]: "},
	}
	for _, tc := range cases {
		if got := FormatPrompt(tc.req); got != tc.want {
			t.Fatalf("FormatPrompt(%+v) = %q, want %q", tc.req, got, tc.want)
		}
	}
}

func actions(in []command.Action) []string {
	out := make([]string, len(in))
	for i, a := range in {
		out[i] = string(a)
	}
	return out
}
