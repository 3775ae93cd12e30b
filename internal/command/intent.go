package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParsedIntent is the result of one parse or model turn. Confirmation fields
// are derived once in NewParsedIntent and cannot change afterwards.
type ParsedIntent struct {
	commands     []ParsedCommand
	confidence   float64
	responseText string

	requiresConfirmation bool
	confirmationMessage  string
}

// NewParsedIntent builds an intent and derives its confirmation requirement
// from the dangerous subset of commands.
func NewParsedIntent(commands []ParsedCommand, confidence float64, responseText string) ParsedIntent {
	intent := ParsedIntent{
		commands:     append([]ParsedCommand(nil), commands...),
		confidence:   clampConfidence(confidence),
		responseText: responseText,
	}
	dangerous := intent.DangerousCommands()
	if len(dangerous) > 0 {
		intent.requiresConfirmation = true
		intent.confirmationMessage = buildConfirmationMessage(dangerous)
	}
	return intent
}

// Commands returns a copy of the parsed commands in execution order.
func (p ParsedIntent) Commands() []ParsedCommand {
	return append([]ParsedCommand(nil), p.commands...)
}

func (p ParsedIntent) Confidence() float64 { return p.confidence }

func (p ParsedIntent) ResponseText() string { return p.responseText }

func (p ParsedIntent) RequiresConfirmation() bool { return p.requiresConfirmation }

func (p ParsedIntent) ConfirmationMessage() string { return p.confirmationMessage }

func (p ParsedIntent) HasCommands() bool { return len(p.commands) > 0 }

func (p ParsedIntent) HasMultipleCommands() bool { return len(p.commands) > 1 }

// FirstCommand returns the first command, if any.
func (p ParsedIntent) FirstCommand() (ParsedCommand, bool) {
	if len(p.commands) == 0 {
		return ParsedCommand{}, false
	}
	return p.commands[0], true
}

// HasDangerousCommands reports whether any command needs confirmation.
func (p ParsedIntent) HasDangerousCommands() bool {
	for _, c := range p.commands {
		if c.IsDangerous() {
			return true
		}
	}
	return false
}

// DangerousCommands returns the dangerous commands in their original order.
func (p ParsedIntent) DangerousCommands() []ParsedCommand {
	var out []ParsedCommand
	for _, c := range p.commands {
		if c.IsDangerous() {
			out = append(out, c)
		}
	}
	return out
}

type parsedIntentJSON struct {
	Commands             []ParsedCommand `json:"commands"`
	Confidence           float64         `json:"confidence"`
	ResponseText         string          `json:"response_text,omitempty"`
	RequiresConfirmation bool            `json:"requires_confirmation"`
	ConfirmationMessage  string          `json:"confirmation_message,omitempty"`
}

// MarshalJSON encodes the intent including its derived confirmation fields.
func (p ParsedIntent) MarshalJSON() ([]byte, error) {
	commands := p.commands
	if commands == nil {
		commands = []ParsedCommand{}
	}
	return json.Marshal(parsedIntentJSON{
		Commands:             commands,
		Confidence:           p.confidence,
		ResponseText:         p.responseText,
		RequiresConfirmation: p.requiresConfirmation,
		ConfirmationMessage:  p.confirmationMessage,
	})
}

// UnmarshalJSON decodes an intent. Confirmation fields in the payload are
// ignored and derived again from the commands.
func (p *ParsedIntent) UnmarshalJSON(data []byte) error {
	var raw parsedIntentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = NewParsedIntent(raw.Commands, raw.Confidence, raw.ResponseText)
	return nil
}

// DescribeCommand renders "<action> <type> <targets>" for prompts and messages.
func DescribeCommand(c ParsedCommand) string {
	var b strings.Builder
	b.WriteString(string(c.Action))
	if c.ResourceType != "" && c.ResourceType != ResourceNone {
		b.WriteByte(' ')
		b.WriteString(string(c.ResourceType))
	}
	targets := c.Targets()
	switch {
	case len(targets) > 0:
		quoted := make([]string, 0, len(targets))
		for _, t := range targets {
			quoted = append(quoted, fmt.Sprintf("%q", t))
		}
		b.WriteByte(' ')
		b.WriteString(strings.Join(quoted, ", "))
	case c.TargetScope == ScopeAll:
		b.WriteString(" (all)")
	}
	if c.ProjectName != "" {
		b.WriteString(" in ")
		b.WriteString(c.ProjectName)
		if c.EnvironmentName != "" {
			b.WriteByte('/')
			b.WriteString(c.EnvironmentName)
		}
	}
	return b.String()
}

func buildConfirmationMessage(dangerous []ParsedCommand) string {
	var b strings.Builder
	if len(dangerous) == 1 {
		b.WriteString("This action needs confirmation:")
	} else {
		fmt.Fprintf(&b, "These %d actions need confirmation:", len(dangerous))
	}
	for _, c := range dangerous {
		b.WriteString("\n- ")
		b.WriteString(DescribeCommand(c))
	}
	return b.String()
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
