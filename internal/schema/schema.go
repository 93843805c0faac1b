package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// Object is the parameter schema a tool declares to the agent. It mirrors the
// JSON-schema subset tool-calling models consume.
type Object struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

func NewObject() Object {
	return Object{Type: "object", Properties: map[string]Property{}}
}

// Validate checks raw arguments against the schema. It runs before any wallet
// or network access: malformed or out-of-enum input never reaches a provider.
func Validate(o Object, raw json.RawMessage) error {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return binkerr.Wrap(binkerr.CodeValidation, "arguments must be a JSON object", err)
	}

	for _, name := range o.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return binkerr.Newf(binkerr.CodeValidation, "missing required parameter %q", name)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return binkerr.Newf(binkerr.CodeValidation, "parameter %q must not be empty", name)
		}
	}

	for name, v := range args {
		prop, ok := o.Properties[name]
		if !ok || v == nil {
			continue
		}
		if err := checkType(name, prop, v); err != nil {
			return err
		}
	}
	return nil
}

func checkType(name string, prop Property, v any) error {
	switch prop.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			return binkerr.Newf(binkerr.CodeValidation, "parameter %q must be a string", name)
		}
		if len(prop.Enum) > 0 && !containsFold(prop.Enum, s) {
			return binkerr.Newf(binkerr.CodeValidation,
				"parameter %q must be one of: %s", name, strings.Join(sorted(prop.Enum), ", "))
		}
	case "number", "integer":
		if _, ok := v.(float64); !ok {
			return binkerr.Newf(binkerr.CodeValidation, "parameter %q must be a number", name)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return binkerr.Newf(binkerr.CodeValidation, "parameter %q must be a boolean", name)
		}
	}
	return nil
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

func sorted(values []string) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

// Describe renders a one-line signature for logs and CLI help.
func Describe(name string, o Object) string {
	params := make([]string, 0, len(o.Properties))
	for p := range o.Properties {
		params = append(params, p)
	}
	sort.Strings(params)
	return fmt.Sprintf("%s(%s)", name, strings.Join(params, ", "))
}
