package tooldefs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrUnknownTool is returned when arguments are validated for a tool that is
// not offered to the model.
var ErrUnknownTool = errors.New("unknown tool")

// ValidateArguments checks tool-call arguments against the tool's schema.
// Null values are dropped first because strict-mode providers send null for
// every optional field they leave unset.
func ValidateArguments(toolName string, args map[string]any) error {
	spec, ok := lookupSpec(toolName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTool, toolName)
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(map[string]any(spec.schema())),
		gojsonschema.NewGoLoader(dropNulls(args)),
	)
	if err != nil {
		return fmt.Errorf("validate %s arguments: %w", toolName, err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid %s arguments: %s", toolName, strings.Join(msgs, "; "))
}

func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch tv := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = dropNulls(tv)
		case []any:
			items := make([]any, 0, len(tv))
			for _, item := range tv {
				if child, ok := item.(map[string]any); ok {
					items = append(items, dropNulls(child))
					continue
				}
				if item != nil {
					items = append(items, item)
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}
