// Package approval defines the Approver interface and gates dangerous commands
// behind an explicit operator decision before they execute.
package approval

import (
	"context"
	"fmt"

	"github.com/saturn-platform/opsclaw/internal/command"
	"github.com/saturn-platform/opsclaw/internal/executor"
	"github.com/saturn-platform/opsclaw/internal/logging"
)

// Approver requests and returns operator approval decisions.
type Approver interface {
	RequestApproval(ctx context.Context, req Request) (Decision, error)
}

// Request describes a single approval prompt.
type Request struct {
	Action      command.Action
	Description string
	Command     command.ParsedCommand
}

// Decision is the operator's answer to an approval request.
type Decision int

const (
	// Denied is the zero value so that a failed prompt never approves.
	Denied Decision = iota
	Approved
)

// ExecuteFunc runs one approved command.
type ExecuteFunc func(ctx context.Context, cmd command.ParsedCommand) executor.Result

// Report is what happened to each command of an intent.
type Report struct {
	Results []executor.Result
	Skipped []command.ParsedCommand
	// Denied is set when the operator refused a dangerous command.
	Denied bool
}

// Gate executes an intent's commands in order and stops at the first
// dangerous command the operator does not approve.
type Gate struct {
	approver Approver
}

// NewGate returns a gate. With a nil approver every dangerous command is denied.
func NewGate(approver Approver) *Gate {
	return &Gate{approver: approver}
}

// Run executes intent's commands strictly in order. Commands after a denied
// one are reported as skipped and never executed. An approver error also
// stops execution and is returned with the partial report.
func (g *Gate) Run(ctx context.Context, intent command.ParsedIntent, execute ExecuteFunc) (Report, error) {
	commands := intent.Commands()
	var report Report
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			report.Skipped = commands[i:]
			return report, err
		}
		if cmd.IsDangerous() {
			decision, err := g.decide(ctx, intent, cmd)
			if err != nil {
				report.Skipped = commands[i:]
				return report, fmt.Errorf("approval for %s: %w", cmd.Action, err)
			}
			if decision != Approved {
				logging.Logger().Info("dangerous command denied", "action", cmd.Action, "targets", cmd.Targets())
				report.Denied = true
				report.Skipped = commands[i:]
				return report, nil
			}
		}
		report.Results = append(report.Results, execute(ctx, cmd))
	}
	return report, nil
}

func (g *Gate) decide(ctx context.Context, intent command.ParsedIntent, cmd command.ParsedCommand) (Decision, error) {
	if g.approver == nil {
		return Denied, nil
	}
	return g.approver.RequestApproval(ctx, Request{
		Action:      cmd.Action,
		Description: describe(intent, cmd),
		Command:     cmd,
	})
}

func describe(intent command.ParsedIntent, cmd command.ParsedCommand) string {
	what := command.DescribeCommand(cmd)
	if msg := intent.ConfirmationMessage(); msg != "" && intent.HasMultipleCommands() {
		return fmt.Sprintf("%s\nNext: %s", msg, what)
	}
	return what
}

// DeniedMessage is the operator-facing text for commands skipped after a denial.
func DeniedMessage(skipped []command.ParsedCommand) string {
	switch len(skipped) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("Cancelled: %s was not run.", command.DescribeCommand(skipped[0]))
	default:
		return fmt.Sprintf("Cancelled: %s and %d more commands were not run.", command.DescribeCommand(skipped[0]), len(skipped)-1)
	}
}
