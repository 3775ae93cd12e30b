// Package insights answers the analysis actions by reading logs and
// deployments from the platform and asking a model to summarize them.
package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/saturn-platform/opsclaw/internal/executor"
	"github.com/saturn-platform/opsclaw/internal/logging"
	"github.com/saturn-platform/opsclaw/internal/platform"
	"github.com/saturn-platform/opsclaw/internal/provider"
)

const (
	errorLogLines    = 1000
	maxPromptLines   = 80
	maxDeploymentLog = 6000
	summaryMaxTokens = 600
)

var errorMarkers = []string{"error", "exception", "fatal", "panic", "traceback", "err!", "ошибка"}

// PlatformReader is the part of the platform API the analyses need.
type PlatformReader interface {
	Logs(ctx context.Context, r executor.Resource, lines int) (string, error)
	Deployment(ctx context.Context, deploymentUUID string) (platform.Deployment, error)
	LatestDeployment(ctx context.Context, r executor.Resource) (platform.Deployment, error)
}

// Analyzer implements executor.Insights. A nil model still produces the
// deterministic part of each analysis.
type Analyzer struct {
	platform PlatformReader
	model    provider.Provider
	now      func() time.Time
}

func New(p PlatformReader, model provider.Provider) *Analyzer {
	return &Analyzer{platform: p, model: model, now: time.Now}
}

// AnalyzeErrors scans recent logs for error lines within the last days and
// summarizes them.
func (a *Analyzer) AnalyzeErrors(ctx context.Context, r executor.Resource, days int) (executor.Outcome, error) {
	logs, err := a.platform.Logs(ctx, r, errorLogLines)
	if err != nil {
		return executor.Outcome{}, err
	}

	since := a.now().Add(-time.Duration(days) * 24 * time.Hour)
	lines := errorLines(logs, since)
	data := map[string]any{"error_lines": len(lines), "days": days}
	if len(lines) == 0 {
		return executor.Outcome{
			Message: fmt.Sprintf("%s: no errors found in the last %dd of logs.", r.Name, days),
			Data:    data,
		}, nil
	}

	header := fmt.Sprintf("%s: %d error lines in the last %dd.", r.Name, len(lines), days)
	prompt := fmt.Sprintf("Resource %q (%s) logged these errors in the last %d days:\n\n%s",
		r.Name, r.Type, days, strings.Join(lastN(lines, maxPromptLines), "\n"))
	summary := a.summarize(ctx, errorsPrompt, prompt)
	if summary == "" {
		summary = "Most recent:\n" + strings.Join(lastN(lines, 5), "\n")
	}
	return executor.Outcome{Message: header + "\n" + summary, Data: data}, nil
}

// AnalyzeDeployment explains the outcome of a deployment. An empty uuid
// analyzes the latest deployment of r.
func (a *Analyzer) AnalyzeDeployment(ctx context.Context, r executor.Resource, deploymentUUID string) (executor.Outcome, error) {
	var (
		d   platform.Deployment
		err error
	)
	if deploymentUUID != "" {
		d, err = a.platform.Deployment(ctx, deploymentUUID)
	} else {
		d, err = a.platform.LatestDeployment(ctx, r)
	}
	if err != nil {
		return executor.Outcome{}, err
	}

	header := fmt.Sprintf("Deployment %s of %s: %s.", d.UUID, r.Name, orUnknown(d.Status))
	data := map[string]any{"deployment_uuid": d.UUID, "status": d.Status}
	if strings.TrimSpace(d.Logs) == "" {
		return executor.Outcome{Message: header + " No build log was recorded.", Data: data}, nil
	}

	prompt := fmt.Sprintf("Deployment %s of %q finished with status %q.\nCommit: %s %s\n\nBuild log:\n%s",
		d.UUID, r.Name, d.Status, d.Commit, d.CommitMessage, lastBytes(d.Logs, maxDeploymentLog))
	summary := a.summarize(ctx, deploymentPrompt, prompt)
	if summary == "" {
		summary = "Log tail:\n" + strings.Join(lastN(splitLines(d.Logs), 5), "\n")
	}
	return executor.Outcome{Message: header + "\n" + summary, Data: data}, nil
}

// ReviewCode reviews the change shipped by the latest deployment of r.
func (a *Analyzer) ReviewCode(ctx context.Context, r executor.Resource) (executor.Outcome, error) {
	d, err := a.platform.LatestDeployment(ctx, r)
	if err != nil {
		return executor.Outcome{}, err
	}
	data := map[string]any{"deployment_uuid": d.UUID, "commit": d.Commit}
	header := fmt.Sprintf("Latest change to %s: %s %s", r.Name, shortCommit(d.Commit), strings.TrimSpace(d.CommitMessage))

	if a.model == nil {
		return executor.Outcome{Message: header + "\nCode review needs a configured model.", Data: data}, nil
	}
	prompt := fmt.Sprintf("Commit %s on %q: %s\n\nBuild log:\n%s",
		d.Commit, r.Name, d.CommitMessage, lastBytes(d.Logs, maxDeploymentLog))
	summary := a.summarize(ctx, reviewPrompt, prompt)
	if summary == "" {
		summary = "The model did not return a review."
	}
	return executor.Outcome{Message: header + "\n" + summary, Data: data}, nil
}

// summarize returns the model's answer, or "" when no model is configured or
// the call failed.
func (a *Analyzer) summarize(ctx context.Context, system, prompt string) string {
	if a.model == nil {
		return ""
	}
	resp := a.model.Chat(ctx, provider.ChatRequest{
		SystemPrompt: system,
		Messages:     []provider.ChatMessage{{Role: provider.RoleUser, Content: prompt}},
		MaxTokens:    summaryMaxTokens,
	})
	if !resp.Success {
		logging.Logger().Warn("insight summary failed", "provider", resp.Provider, "err", resp.Error)
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// errorLines keeps lines that look like errors. Lines starting with an
// RFC 3339 timestamp older than since are dropped.
func errorLines(logs string, since time.Time) []string {
	var out []string
	for _, line := range splitLines(logs) {
		lower := strings.ToLower(line)
		if !containsAny(lower, errorMarkers) {
			continue
		}
		if ts, ok := lineTimestamp(line); ok && ts.Before(since) {
			continue
		}
		out = append(out, line)
	}
	return out
}

func lineTimestamp(line string) (time.Time, bool) {
	field, _, _ := strings.Cut(line, " ")
	ts, err := time.Parse(time.RFC3339Nano, field)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimRight(line, "\r"); strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func lastBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
