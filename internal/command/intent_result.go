package command

import "fmt"

// legacyActionable is the single-intent allow-list. It is intentionally
// narrower than ParsedCommand.IsActionable.
var legacyActionable = map[string]bool{
	"deploy":  true,
	"restart": true,
	"stop":    true,
	"start":   true,
	"logs":    true,
	"status":  true,
}

// IntentResult is the simplified single-intent shape used by callers that do
// not batch commands. An empty Intent means no intent was recognised.
type IntentResult struct {
	Intent               string         `json:"intent,omitempty"`
	Params               map[string]any `json:"params,omitempty"`
	Confidence           float64        `json:"confidence"`
	RequiresConfirmation bool           `json:"requires_confirmation"`
	ConfirmationMessage  string         `json:"confirmation_message,omitempty"`
	ResponseText         string         `json:"response_text,omitempty"`
}

func (r IntentResult) HasIntent() bool { return r.Intent != "" }

// IsActionable reports whether the intent is on the legacy allow-list.
func (r IntentResult) IsActionable() bool { return legacyActionable[r.Intent] }

func (r IntentResult) IsDangerous() bool { return isDangerousAction(Action(r.Intent)) }

// Param returns a string parameter or "" when absent or not a scalar.
func (r IntentResult) Param(key string) string {
	if r.Params == nil {
		return ""
	}
	switch v := r.Params[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	case float64, int, int64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

// ToCommand converts the legacy shape into a ParsedCommand.
func (r IntentResult) ToCommand() ParsedCommand {
	action := Action(r.Intent)
	if r.Intent == "" {
		action = ActionNone
	}
	name := r.Param("resource_name")
	if name == "" {
		name = r.Param("resource_id")
	}
	resourceType := ResourceType(r.Param("resource_type"))
	if resourceType == "" {
		resourceType = ResourceNone
	}
	return ParsedCommand{
		Action:          action,
		ResourceType:    resourceType,
		ResourceName:    name,
		ProjectName:     r.Param("project_name"),
		EnvironmentName: r.Param("environment_name"),
		DeploymentUUID:  r.Param("deployment_uuid"),
	}
}
