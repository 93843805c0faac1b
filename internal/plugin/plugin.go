// Package plugin defines the unit of composition the agent assembles. A
// plugin bundles related tools behind one name; the agent only sees the
// tools.
package plugin

import "github.com/tonyfindev/BinkOS-sub002/internal/tool"

type Plugin interface {
	Name() string
	Tools() []tool.Tool
}
