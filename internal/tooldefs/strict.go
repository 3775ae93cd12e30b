package tooldefs

import (
	"maps"
	"slices"
)

// Keywords rejected by OpenAI strict mode on some models.
var strictUnsupported = []string{"minimum", "maximum", "default"}

// Strict returns a deep copy of schema rewritten for OpenAI strict mode: every
// object lists all of its properties as required, forbids additional
// properties, and properties that were optional accept null.
func Strict(schema Schema) Schema {
	return Schema(strictNode(map[string]any(schema)))
}

func strictNode(node map[string]any) map[string]any {
	out := make(map[string]any, len(node)+1)
	for k, v := range node {
		out[k] = v
	}
	for _, k := range strictUnsupported {
		delete(out, k)
	}

	if items, ok := out["items"].(map[string]any); ok {
		out["items"] = strictNode(items)
	}

	props, ok := out["properties"].(map[string]any)
	if !ok {
		return out
	}
	required := make(map[string]bool)
	for _, name := range requiredOf(out) {
		required[name] = true
	}

	names := slices.Sorted(maps.Keys(props))
	newProps := make(map[string]any, len(props))
	for _, name := range names {
		child, ok := props[name].(map[string]any)
		if !ok {
			newProps[name] = props[name]
			continue
		}
		child = strictNode(child)
		if !required[name] {
			child = nullable(child)
		}
		newProps[name] = child
	}
	out["properties"] = newProps
	out["required"] = names
	out["additionalProperties"] = false
	return out
}

// nullable widens a property so the model can send null for it.
func nullable(node map[string]any) map[string]any {
	switch t := node["type"].(type) {
	case string:
		if t != "null" {
			node["type"] = []any{t, "null"}
		}
	case []any:
		if !containsValue(t, "null") {
			node["type"] = append(append([]any(nil), t...), "null")
		}
	}
	switch enum := node["enum"].(type) {
	case []string:
		values := make([]any, 0, len(enum)+1)
		for _, v := range enum {
			values = append(values, v)
		}
		node["enum"] = append(values, nil)
	case []any:
		if !containsValue(enum, nil) {
			node["enum"] = append(append([]any(nil), enum...), nil)
		}
	}
	return node
}

func containsValue(values []any, want any) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
