package wallet

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
)

type PluginConfig struct {
	Base   *provider.Base
	Wallet Wallet
	Stats  *stats.Collector
}

// Plugin exposes the agent wallet itself as a queryable surface.
type Plugin struct {
	infoTool *infoTool
}

func NewPlugin(cfg PluginConfig) *Plugin {
	return &Plugin{infoTool: &infoTool{
		base:   cfg.Base,
		wallet: cfg.Wallet,
		stats:  cfg.Stats,
		log:    logging.Named("wallet.info"),
	}}
}

func (p *Plugin) Name() string { return "wallet" }

func (p *Plugin) Tools() []tool.Tool { return []tool.Tool{p.infoTool} }

type infoTool struct {
	base   *provider.Base
	wallet Wallet
	stats  *stats.Collector
	log    *slog.Logger
}

func (t *infoTool) Name() string { return "get_wallet_info" }

func (t *infoTool) Description() string {
	return "Report the agent wallet's address and native balance on a network, optionally with well-known token balances."
}

func (t *infoTool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["network"] = schema.Property{
		Type:        "string",
		Description: "Network to inspect",
		Enum:        tool.NetworkEnum(t.base.Networks()),
	}
	o.Properties["includeTokens"] = schema.Property{
		Type:        "boolean",
		Description: "Also read balances for the bootstrap-registry tokens",
	}
	o.Required = []string{"network"}
	return o
}

type infoArgs struct {
	Network       string `json:"network"`
	IncludeTokens bool   `json:"includeTokens"`
}

func (t *infoTool) Execute(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	report = tool.EnsureProgress(report)
	start := time.Now()
	payload, err := t.run(ctx, raw, report)
	t.stats.RecordInvocation(t.Name(), time.Since(start), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		t.log.Warn("wallet info failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *infoTool) run(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args infoArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}
	network := core.NetworkID(strings.ToLower(strings.TrimSpace(args.Network)))
	if err := t.base.ValidateNetwork(network); err != nil {
		return "", err
	}

	addr, err := t.wallet.Address(network)
	if err != nil {
		return "", err
	}
	t.stats.RecordWallet(addr)

	native, err := core.NativeToken(network)
	if err != nil {
		return "", err
	}

	report(30, "reading balances")
	type holding struct {
		Symbol  string `json:"symbol"`
		Token   string `json:"token"`
		Balance string `json:"balance"`
	}
	nativeBal, err := t.base.Balances().Balance(ctx, network, native.Address, addr, false)
	if err != nil {
		return "", err
	}
	holdings := []holding{{Symbol: native.Symbol, Token: native.Address, Balance: nativeBal.Formatted}}

	if args.IncludeTokens {
		for _, tok := range core.KnownTokens(network) {
			if core.IsNativeAddress(network, tok.Address) {
				continue
			}
			bal, err := t.base.Balances().Balance(ctx, network, tok.Address, addr, false)
			if err != nil {
				// One unreadable token should not hide the rest of the wallet.
				t.log.Warn("token balance read failed",
					slog.String("token", tok.Symbol),
					slog.String("error", err.Error()))
				continue
			}
			holdings = append(holdings, holding{Symbol: tok.Symbol, Token: tok.Address, Balance: bal.Formatted})
		}
	}
	report(100, "wallet read")

	return tool.Success(map[string]any{
		"type":     "wallet_info",
		"network":  string(network),
		"address":  addr,
		"balances": holdings,
	}), nil
}
