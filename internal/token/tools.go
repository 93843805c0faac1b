package token

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
	"github.com/tonyfindev/BinkOS-sub002/internal/wallet"
)

// resolveAddress accepts an address or a bootstrap-registry symbol, so the
// model can ask about "USDT" without knowing the deployment address.
func resolveAddress(network core.NetworkID, v string) (string, error) {
	v = strings.TrimSpace(v)
	if err := core.ValidateAddress(network, v); err == nil {
		return core.NormalizeAddress(network, v), nil
	}
	if t, ok := core.KnownToken(network, v); ok {
		return t.Address, nil
	}
	return "", binkerr.Newf(binkerr.CodeValidation,
		"token %q is neither a valid %s address nor a known symbol", v, network)
}

type infoTool struct {
	base  *provider.Base
	stats *stats.Collector
	log   *slog.Logger
}

func newInfoTool(cfg PluginConfig) *infoTool {
	return &infoTool{base: cfg.Base, stats: cfg.Stats, log: logging.Named("token.info")}
}

func (t *infoTool) Name() string { return "get_token_info" }

func (t *infoTool) Description() string {
	return "Look up symbol and decimals for a token on a network, by address or well-known symbol."
}

func (t *infoTool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["network"] = schema.Property{
		Type:        "string",
		Description: "Network the token lives on",
		Enum:        tool.NetworkEnum(t.base.Networks()),
	}
	o.Properties["token"] = schema.Property{
		Type:        "string",
		Description: "Token address, or a symbol like USDT",
	}
	o.Required = []string{"network", "token"}
	return o
}

type infoArgs struct {
	Network string `json:"network"`
	Token   string `json:"token"`
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
		t.log.Warn("token info failed", slog.String("error", err.Error()))
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
	addr, err := resolveAddress(network, args.Token)
	if err != nil {
		return "", err
	}

	report(30, "resolving token metadata")
	tok, err := t.base.Tokens().Token(ctx, network, addr)
	if err != nil {
		return "", err
	}
	report(100, "token resolved")

	return tool.Success(map[string]any{
		"type":     "token_info",
		"network":  string(network),
		"address":  tok.Address,
		"symbol":   tok.Symbol,
		"decimals": tok.Decimals,
		"native":   core.IsNativeAddress(network, tok.Address),
	}), nil
}

type balanceTool struct {
	base   *provider.Base
	wallet wallet.Wallet
	stats  *stats.Collector
	log    *slog.Logger
}

func newBalanceTool(cfg PluginConfig) *balanceTool {
	return &balanceTool{
		base:   cfg.Base,
		wallet: cfg.Wallet,
		stats:  cfg.Stats,
		log:    logging.Named("token.balance"),
	}
}

func (t *balanceTool) Name() string { return "get_token_balance" }

func (t *balanceTool) Description() string {
	return "Read a wallet's balance of one token, defaulting to the agent wallet."
}

func (t *balanceTool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["network"] = schema.Property{
		Type:        "string",
		Description: "Network to read from",
		Enum:        tool.NetworkEnum(t.base.Networks()),
	}
	o.Properties["token"] = schema.Property{
		Type:        "string",
		Description: "Token address, or a symbol like USDT; the native sentinel reads the gas currency",
	}
	o.Properties["wallet"] = schema.Property{
		Type:        "string",
		Description: "Wallet to inspect; omitted means the agent wallet",
	}
	o.Properties["refresh"] = schema.Property{
		Type:        "boolean",
		Description: "Bypass the balance cache and read the chain",
	}
	o.Required = []string{"network", "token"}
	return o
}

type balanceArgs struct {
	Network string `json:"network"`
	Token   string `json:"token"`
	Wallet  string `json:"wallet"`
	Refresh bool   `json:"refresh"`
}

func (t *balanceTool) Execute(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	report = tool.EnsureProgress(report)
	start := time.Now()
	payload, err := t.run(ctx, raw, report)
	t.stats.RecordInvocation(t.Name(), time.Since(start), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		t.log.Warn("balance lookup failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *balanceTool) run(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args balanceArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}
	network := core.NetworkID(strings.ToLower(strings.TrimSpace(args.Network)))
	if err := t.base.ValidateNetwork(network); err != nil {
		return "", err
	}
	addr, err := resolveAddress(network, args.Token)
	if err != nil {
		return "", err
	}

	owner := strings.TrimSpace(args.Wallet)
	if owner == "" {
		var err error
		owner, err = t.wallet.Address(network)
		if err != nil {
			return "", err
		}
	} else if err := core.ValidateAddress(network, owner); err != nil {
		return "", err
	}
	owner = core.NormalizeAddress(network, owner)
	t.stats.RecordWallet(owner)

	report(30, "reading balance")
	tok, err := t.base.Tokens().Token(ctx, network, addr)
	if err != nil {
		return "", err
	}
	bal, err := t.base.Balances().Balance(ctx, network, addr, owner, args.Refresh)
	if err != nil {
		return "", err
	}
	report(100, "balance read")

	return tool.Success(map[string]any{
		"type":      "token_balance",
		"network":   string(network),
		"token":     tok.Address,
		"symbol":    tok.Symbol,
		"wallet":    owner,
		"balance":   bal.Formatted,
		"baseUnits": bal.Amount.String(),
	}), nil
}
