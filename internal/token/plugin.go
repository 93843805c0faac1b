// Package token exposes read-only token lookups to the agent: metadata and
// wallet balances, served from the shared caches.
package token

import (
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
	"github.com/tonyfindev/BinkOS-sub002/internal/wallet"
)

type PluginConfig struct {
	Base   *provider.Base
	Wallet wallet.Wallet
	Stats  *stats.Collector
}

type Plugin struct {
	tools []tool.Tool
}

func NewPlugin(cfg PluginConfig) *Plugin {
	return &Plugin{tools: []tool.Tool{
		newInfoTool(cfg),
		newBalanceTool(cfg),
	}}
}

func (p *Plugin) Name() string { return "token" }

func (p *Plugin) Tools() []tool.Tool { return p.tools }
