// Package executor runs parsed commands against the platform for one operator
// and team. It resolves textual resource references, dispatches lifecycle
// actions and analyses, and turns every failure into an operator-facing result.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/logging"
)

// ErrNoLookup is reported when a command needs resource resolution but no
// lookup backend is configured.
var ErrNoLookup = errors.New("resource lookup is not configured")

// Scope is the authenticated operator and team a command runs for.
type Scope struct {
	TeamID   string
	Operator string
}

// ResourceLookup finds resources of one type whose name matches nameFilter.
// An empty filter returns every resource of the type.
type ResourceLookup interface {
	FindResources(ctx context.Context, teamID string, t command.ResourceType, nameFilter string) ([]Resource, error)
}

// Outcome is what a backend reports for one resource.
type Outcome struct {
	Message string
	Data    map[string]any
}

// ActionDispatcher performs lifecycle actions and log retrieval.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, action command.Action, r Resource) (Outcome, error)
}

// Insights runs the analysis actions.
type Insights interface {
	AnalyzeErrors(ctx context.Context, r Resource, days int) (Outcome, error)
	AnalyzeDeployment(ctx context.Context, r Resource, deploymentUUID string) (Outcome, error)
	ReviewCode(ctx context.Context, r Resource) (Outcome, error)
}

// MetricsSource reports resource metrics over a window of days.
type MetricsSource interface {
	ResourceMetrics(ctx context.Context, r Resource, days int) (Outcome, error)
}

// Deps are the executor's collaborators. Any of them may be nil; commands
// that need a missing one fail with an explanatory message.
type Deps struct {
	Lookup     ResourceLookup
	Dispatcher ActionDispatcher
	Insights   Insights
	Metrics    MetricsSource
}

// Result is the outcome of one command, ready to show to the operator.
type Result struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message"`
	Action     command.Action   `json:"action"`
	Resolution ResolutionStatus `json:"resolution,omitempty"`
	Resources  []Resource       `json:"resources,omitempty"`
	Candidates []string         `json:"candidates,omitempty"`
	Data       map[string]any   `json:"data,omitempty"`
}

// Executor holds no state between calls and never caches resolved resources.
type Executor struct {
	scope         Scope
	deps          Deps
	recorder      *Recorder
	defaultPeriod string
}

type Option func(*Executor)

// WithRecorder exports command metrics through r.
func WithRecorder(r *Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithDefaultPeriod sets the window used when a command names none.
func WithDefaultPeriod(period string) Option {
	return func(e *Executor) { e.defaultPeriod = period }
}

func New(scope Scope, deps Deps, opts ...Option) *Executor {
	e := &Executor{scope: scope, deps: deps, defaultPeriod: "7d"}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HelpMessage lists every supported action name.
func HelpMessage() string {
	names := make([]string, 0, len(command.Actions))
	for _, a := range command.Actions {
		if a != command.ActionNone {
			names = append(names, string(a))
		}
	}
	return "Supported actions: " + strings.Join(names, ", ") + "."
}

// ExecuteCommand runs one command. It never panics on caller input: unknown
// actions, missing backends and lookup failures all come back as failed results.
func (e *Executor) ExecuteCommand(ctx context.Context, cmd command.ParsedCommand) Result {
	start := time.Now()
	res := e.execute(ctx, cmd)
	res.Action = cmd.Action
	e.recorder.observe(res, time.Since(start))

	logging.Logger().Info(
		"command executed",
		"action", cmd.Action,
		"team_id", e.scope.TeamID,
		"operator", e.scope.Operator,
		"success", res.Success,
		"resolution", res.Resolution,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return res
}

func (e *Executor) execute(ctx context.Context, cmd command.ParsedCommand) Result {
	switch cmd.Action {
	case command.ActionHelp:
		return Result{Success: true, Message: HelpMessage()}
	case command.ActionNone:
		return failure("Nothing to do.")
	case command.ActionDeploy, command.ActionRestart, command.ActionStop,
		command.ActionStart, command.ActionDelete, command.ActionLogs:
		return e.forEachTarget(ctx, cmd, e.dispatch)
	case command.ActionStatus:
		return e.forEachTarget(ctx, cmd, e.status)
	case command.ActionHealthCheck:
		return e.forEachTarget(ctx, cmd, e.healthCheck)
	case command.ActionAnalyzeErrors:
		return e.forEachTarget(ctx, cmd, e.analyzeErrors)
	case command.ActionAnalyzeDeployment:
		return e.forEachTarget(ctx, cmd, e.analyzeDeployment)
	case command.ActionCodeReview:
		return e.forEachTarget(ctx, cmd, e.reviewCode)
	case command.ActionMetrics:
		return e.forEachTarget(ctx, cmd, e.metrics)
	default:
		return failure(fmt.Sprintf("Unknown action: %s", cmd.Action))
	}
}

type resourceHandler func(ctx context.Context, cmd command.ParsedCommand, r Resource) (Outcome, error)

// forEachTarget resolves every target of cmd and runs handle on each resolved
// resource in order. A resolution problem stops before any handler runs.
func (e *Executor) forEachTarget(ctx context.Context, cmd command.ParsedCommand, handle resourceHandler) Result {
	if e.deps.Lookup == nil {
		logging.Logger().Warn("command needs resource lookup", "action", cmd.Action, "err", ErrNoLookup)
		return failure("Resource lookup is not configured, so I cannot find the resource.")
	}

	targets, res, ok := e.resolveTargets(ctx, cmd)
	if !ok {
		return res
	}

	var lines []string
	data := make(map[string]any, len(targets))
	success := true
	for _, r := range targets {
		out, err := handle(ctx, cmd, r)
		if err != nil {
			success = false
			logging.Logger().Warn("command failed", "action", cmd.Action, "resource", r.Name, "err", err)
			lines = append(lines, fmt.Sprintf("%s: %s failed: %s", r.Name, cmd.Action, operatorMessage(err)))
			continue
		}
		lines = append(lines, out.Message)
		if out.Data != nil {
			data[r.Name] = out.Data
		}
	}
	if len(data) == 0 {
		data = nil
	}
	return Result{
		Success:    success,
		Message:    strings.Join(lines, "\n"),
		Resolution: ResolutionResolved,
		Resources:  targets,
		Data:       data,
	}
}

// resolveTargets maps the command's name, names or scope onto resources.
func (e *Executor) resolveTargets(ctx context.Context, cmd command.ParsedCommand) ([]Resource, Result, bool) {
	names := cmd.Targets()
	if len(names) == 0 {
		types := searchTypes(cmd.ResourceType)
		all, err := e.find(ctx, types, "")
		if err != nil {
			return nil, lookupFailure(err), false
		}
		all = filterQualifier(all, cmd.ProjectName, cmd.EnvironmentName)
		if cmd.TargetScope == command.ScopeAll && len(all) > 0 {
			return all, Result{}, true
		}
		return nil, notFound(cmd, "", all), false
	}

	var targets []Resource
	for _, name := range names {
		res, err := e.resolveName(ctx, cmd, name)
		if err != nil {
			return nil, lookupFailure(err), false
		}
		switch res.status {
		case ResolutionNotFound:
			return nil, notFound(cmd, name, res.available), false
		case ResolutionAmbig:
			cands := resourceNames(res.candidates)
			return nil, Result{
				Message: fmt.Sprintf("%q matches several resources: %s. Which one did you mean?",
					name, strings.Join(cands, ", ")),
				Resolution: ResolutionAmbig,
				Resources:  res.candidates,
				Candidates: cands,
			}, false
		}
		targets = append(targets, *res.resource)
	}
	return targets, Result{}, true
}

func (e *Executor) dispatch(ctx context.Context, cmd command.ParsedCommand, r Resource) (Outcome, error) {
	if e.deps.Dispatcher == nil {
		return Outcome{}, errBackendMissing("action backend")
	}
	out, err := e.deps.Dispatcher.Dispatch(ctx, cmd.Action, r)
	if err != nil {
		return Outcome{}, err
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("%s %s: done.", cmd.Action, r.Name)
	}
	return out, nil
}

func (e *Executor) status(_ context.Context, _ command.ParsedCommand, r Resource) (Outcome, error) {
	health := DetermineHealthStatus(r.Status)
	raw := r.Status
	if raw == "" {
		raw = "no status reported"
	}
	return Outcome{
		Message: fmt.Sprintf("%s (%s): %s [%s]", r.Name, r.Type, health, raw),
		Data:    map[string]any{"health": string(health), "status": r.Status},
	}, nil
}

func (e *Executor) healthCheck(_ context.Context, _ command.ParsedCommand, r Resource) (Outcome, error) {
	health := DetermineHealthStatus(r.Status)
	msg := fmt.Sprintf("%s is %s.", r.Name, health)
	if health != HealthHealthy && r.Status != "" {
		msg = fmt.Sprintf("%s is %s (status %q).", r.Name, health, r.Status)
	}
	return Outcome{Message: msg, Data: map[string]any{"health": string(health)}}, nil
}

func (e *Executor) analyzeErrors(ctx context.Context, cmd command.ParsedCommand, r Resource) (Outcome, error) {
	if e.deps.Insights == nil {
		return Outcome{}, errBackendMissing("analysis")
	}
	return e.deps.Insights.AnalyzeErrors(ctx, r, e.periodDays(cmd))
}

func (e *Executor) analyzeDeployment(ctx context.Context, cmd command.ParsedCommand, r Resource) (Outcome, error) {
	if e.deps.Insights == nil {
		return Outcome{}, errBackendMissing("analysis")
	}
	return e.deps.Insights.AnalyzeDeployment(ctx, r, cmd.DeploymentUUID)
}

func (e *Executor) reviewCode(ctx context.Context, _ command.ParsedCommand, r Resource) (Outcome, error) {
	if e.deps.Insights == nil {
		return Outcome{}, errBackendMissing("code review")
	}
	return e.deps.Insights.ReviewCode(ctx, r)
}

func (e *Executor) metrics(ctx context.Context, cmd command.ParsedCommand, r Resource) (Outcome, error) {
	if e.deps.Metrics == nil {
		return Outcome{}, errBackendMissing("metrics backend")
	}
	return e.deps.Metrics.ResourceMetrics(ctx, r, e.periodDays(cmd))
}

func (e *Executor) periodDays(cmd command.ParsedCommand) int {
	if cmd.TimePeriod != "" {
		return ParsePeriodToDays(cmd.TimePeriod)
	}
	return ParsePeriodToDays(e.defaultPeriod)
}

// OperatorError is implemented by collaborator errors whose message is safe
// to show to the operator as is.
type OperatorError interface {
	error
	OperatorMessage() string
}

type backendMissingError struct{ what string }

func (e backendMissingError) Error() string { return e.what + " is not configured" }

func errBackendMissing(what string) error { return backendMissingError{what: what} }

// operatorMessage keeps internal error chains out of operator-facing text.
func operatorMessage(err error) string {
	var (
		missing backendMissingError
		safe    OperatorError
	)
	switch {
	case errors.As(err, &missing):
		return missing.Error()
	case errors.As(err, &safe):
		return safe.OperatorMessage()
	case errors.Is(err, context.DeadlineExceeded):
		return "the platform did not answer in time"
	case errors.Is(err, context.Canceled):
		return "the request was cancelled"
	default:
		return "the platform reported an error"
	}
}

func failure(msg string) Result {
	return Result{Success: false, Message: msg}
}

func lookupFailure(err error) Result {
	logging.Logger().Warn("resource lookup failed", "err", err)
	return Result{Message: "I could not look up resources right now: " + operatorMessage(err) + "."}
}

func notFound(cmd command.ParsedCommand, name string, available []Resource) Result {
	kind := "resource"
	if cmd.ResourceType != "" && cmd.ResourceType != command.ResourceNone {
		kind = string(cmd.ResourceType)
	}
	var b strings.Builder
	if name == "" {
		fmt.Fprintf(&b, "Which %s should I use for %s?", kind, cmd.Action)
	} else {
		fmt.Fprintf(&b, "No %s named %q was found.", kind, name)
	}
	if len(available) == 0 {
		b.WriteString(" There are no resources available.")
	} else {
		b.WriteString(" Available: ")
		b.WriteString(strings.Join(resourceNames(available), ", "))
		b.WriteByte('.')
	}
	return Result{
		Message:    b.String(),
		Resolution: ResolutionNotFound,
		Resources:  available,
	}
}
