package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/saturn-platform/opsclaw/internal/command"
)

// ResolutionStatus tells callers how a textual resource reference resolved.
type ResolutionStatus string

const (
	ResolutionNone     ResolutionStatus = ""
	ResolutionResolved ResolutionStatus = "resolved"
	ResolutionNotFound ResolutionStatus = "not_found"
	ResolutionAmbig    ResolutionStatus = "ambiguous"
)

// Resource is one platform resource visible to the operator's team.
type Resource struct {
	ID          string               `json:"id"`
	UUID        string               `json:"uuid,omitempty"`
	Name        string               `json:"name"`
	Type        command.ResourceType `json:"type"`
	Status      string               `json:"status,omitempty"`
	Project     string               `json:"project,omitempty"`
	Environment string               `json:"environment,omitempty"`
}

// ResolveUniqueMatch picks the single resource meant by cleanName from
// candidates already filtered by a partial name match. One candidate is
// returned as is. With several, exactly one case-insensitive exact match is
// required; otherwise nil is returned and the caller must ask the operator.
func ResolveUniqueMatch(candidates []Resource, cleanName string) *Resource {
	switch len(candidates) {
	case 0:
		return nil
	case 1:
		r := candidates[0]
		return &r
	}

	var exact *Resource
	for i := range candidates {
		if !strings.EqualFold(strings.TrimSpace(candidates[i].Name), cleanName) {
			continue
		}
		if exact != nil {
			return nil
		}
		r := candidates[i]
		exact = &r
	}
	return exact
}

// searchTypes is the set of resource types looked up for a command. An
// unspecified type searches every type that can be addressed by name.
func searchTypes(t command.ResourceType) []command.ResourceType {
	if t == "" || t == command.ResourceNone {
		return []command.ResourceType{command.ResourceApplication, command.ResourceService, command.ResourceDatabase}
	}
	return []command.ResourceType{t}
}

type resolution struct {
	status     ResolutionStatus
	resource   *Resource
	candidates []Resource
	available  []Resource
}

func (e *Executor) find(ctx context.Context, types []command.ResourceType, filter string) ([]Resource, error) {
	var out []Resource
	for _, t := range types {
		found, err := e.deps.Lookup.FindResources(ctx, e.scope.TeamID, t, filter)
		if err != nil {
			return nil, fmt.Errorf("find %s resources: %w", t, err)
		}
		out = append(out, found...)
	}
	return out, nil
}

// resolveName resolves one textual reference. Not found and ambiguous are
// regular outcomes; only lookup failures are errors.
func (e *Executor) resolveName(ctx context.Context, cmd command.ParsedCommand, name string) (resolution, error) {
	types := searchTypes(cmd.ResourceType)
	clean := strings.ToLower(strings.TrimSpace(name))

	candidates, err := e.find(ctx, types, clean)
	if err != nil {
		return resolution{}, err
	}
	candidates = filterQualifier(candidates, cmd.ProjectName, cmd.EnvironmentName)

	if len(candidates) == 0 {
		available, err := e.find(ctx, types, "")
		if err != nil {
			return resolution{}, err
		}
		return resolution{status: ResolutionNotFound, available: available}, nil
	}
	if match := ResolveUniqueMatch(candidates, clean); match != nil {
		return resolution{status: ResolutionResolved, resource: match, candidates: candidates}, nil
	}
	return resolution{status: ResolutionAmbig, candidates: candidates}, nil
}

// filterQualifier drops candidates outside the requested project and
// environment. Resources without project data are kept.
func filterQualifier(candidates []Resource, project, env string) []Resource {
	if project == "" && env == "" {
		return candidates
	}
	out := candidates[:0:0]
	for _, r := range candidates {
		if project != "" && r.Project != "" && !strings.EqualFold(r.Project, project) {
			continue
		}
		if env != "" && r.Environment != "" && !strings.EqualFold(r.Environment, env) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func resourceNames(resources []Resource) []string {
	names := make([]string, 0, len(resources))
	for _, r := range resources {
		names = append(names, r.Name)
	}
	return names
}
