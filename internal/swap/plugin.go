package swap

import (
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/registry"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
	"github.com/tonyfindev/BinkOS-sub002/internal/wallet"
)

// Plugin bundles the swap tool with its provider registry.
type Plugin struct {
	reg      *registry.Registry[Provider]
	swapTool *Tool
}

type PluginConfig struct {
	Base      *provider.Base
	Store     quotes.Store[*Quote]
	Wallet    wallet.Wallet
	Stats     *stats.Collector
	Providers []Provider
}

func NewPlugin(cfg PluginConfig) *Plugin {
	reg := registry.New[Provider]()
	for _, p := range cfg.Providers {
		reg.Register(p)
	}
	return &Plugin{
		reg: reg,
		swapTool: NewTool(ToolConfig{
			Base:     cfg.Base,
			Registry: reg,
			Store:    cfg.Store,
			Wallet:   cfg.Wallet,
			Stats:    cfg.Stats,
		}),
	}
}

func (p *Plugin) Name() string { return "swap" }

// Tools lists the agent-facing tools this plugin contributes.
func (p *Plugin) Tools() []tool.Tool { return []tool.Tool{p.swapTool} }

// Register adds a provider after construction; later registrations win.
func (p *Plugin) Register(prov Provider) { p.reg.Register(prov) }

// Networks is the union of the registered providers' networks.
func (p *Plugin) Networks() []core.NetworkID { return p.reg.Networks() }
