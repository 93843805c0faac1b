package policy

import (
	"strings"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// Check enforces the enabled-tools allowlist. An empty list allows every
// tool; otherwise the tool name must match one entry (case-insensitive).
func Check(enabled []string, toolName string) error {
	if len(enabled) == 0 {
		return nil
	}
	want := normalize(toolName)
	for _, name := range enabled {
		if normalize(name) == want {
			return nil
		}
	}
	return binkerr.Newf(binkerr.CodeBlocked,
		"tool %s blocked by --enable-tools policy (enabled: %s)",
		toolName, strings.Join(normalizeAll(enabled), ", "))
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func normalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if norm := normalize(n); norm != "" {
			out = append(out, norm)
		}
	}
	return out
}
