// Package command defines the typed command model produced from operator text
// or model tool-call output, and the parser that builds it.
package command

// Action is one operator-requested operation.
type Action string

const (
	ActionDeploy            Action = "deploy"
	ActionRestart           Action = "restart"
	ActionStop              Action = "stop"
	ActionStart             Action = "start"
	ActionDelete            Action = "delete"
	ActionLogs              Action = "logs"
	ActionStatus            Action = "status"
	ActionAnalyzeErrors     Action = "analyze_errors"
	ActionAnalyzeDeployment Action = "analyze_deployment"
	ActionCodeReview        Action = "code_review"
	ActionHealthCheck       Action = "health_check"
	ActionMetrics           Action = "metrics"
	ActionHelp              Action = "help"
	ActionNone              Action = "none"
)

// Actions lists every known action in display order.
var Actions = []Action{
	ActionDeploy,
	ActionRestart,
	ActionStop,
	ActionStart,
	ActionDelete,
	ActionLogs,
	ActionStatus,
	ActionAnalyzeErrors,
	ActionAnalyzeDeployment,
	ActionCodeReview,
	ActionHealthCheck,
	ActionMetrics,
	ActionHelp,
	ActionNone,
}

// Known reports whether a is one of the defined actions.
func (a Action) Known() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// ResourceType is the kind of platform resource a command targets.
type ResourceType string

const (
	ResourceApplication ResourceType = "application"
	ResourceService     ResourceType = "service"
	ResourceDatabase    ResourceType = "database"
	ResourceServer      ResourceType = "server"
	ResourceProject     ResourceType = "project"
	ResourceNone        ResourceType = "none"
)

// TargetScope tells how many resources a command addresses. Empty means unset.
type TargetScope string

const (
	ScopeSingle   TargetScope = "single"
	ScopeMultiple TargetScope = "multiple"
	ScopeAll      TargetScope = "all"
)

// ParsedCommand is one atomic operator intent.
type ParsedCommand struct {
	Action          Action       `json:"action"`
	ResourceType    ResourceType `json:"resource_type"`
	ResourceName    string       `json:"resource_name,omitempty"`
	ProjectName     string       `json:"project_name,omitempty"`
	EnvironmentName string       `json:"environment_name,omitempty"`
	TargetScope     TargetScope  `json:"target_scope,omitempty"`
	DeploymentUUID  string       `json:"deployment_uuid,omitempty"`
	ResourceNames   []string     `json:"resource_names,omitempty"`
	TimePeriod      string       `json:"time_period,omitempty"`
}

// IsActionable reports whether the command asks for any operation at all.
func (c ParsedCommand) IsActionable() bool {
	return c.Action != ActionHelp && c.Action != ActionNone
}

// IsDangerous reports whether the action is irreversible or service-impacting.
func (c ParsedCommand) IsDangerous() bool {
	return isDangerousAction(c.Action)
}

// HasResource reports whether a resource name was given.
func (c ParsedCommand) HasResource() bool {
	return c.ResourceName != ""
}

// Targets returns the resource names the command addresses.
func (c ParsedCommand) Targets() []string {
	if c.TargetScope == ScopeMultiple && len(c.ResourceNames) > 0 {
		return append([]string(nil), c.ResourceNames...)
	}
	if c.ResourceName != "" {
		return []string{c.ResourceName}
	}
	return nil
}

func isDangerousAction(a Action) bool {
	switch a {
	case ActionDeploy, ActionStop, ActionDelete:
		return true
	default:
		return false
	}
}
