package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
	"github.com/tonyfindev/BinkOS-sub002/internal/provider"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/registry"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
	"github.com/tonyfindev/BinkOS-sub002/internal/stats"
	"github.com/tonyfindev/BinkOS-sub002/internal/tool"
	"github.com/tonyfindev/BinkOS-sub002/internal/wallet"
)

// ToolConfig wires the bridge tool's collaborators.
type ToolConfig struct {
	Base     *provider.Base
	Registry *registry.Registry[Provider]
	Store    quotes.Store[*Quote]
	Wallet   wallet.Wallet
	Stats    *stats.Collector
}

// Tool moves an asset between networks through the bridge delivering the
// most on the destination side.
type Tool struct {
	base   *provider.Base
	reg    *registry.Registry[Provider]
	store  quotes.Store[*Quote]
	wallet wallet.Wallet
	stats  *stats.Collector
	log    *slog.Logger
}

func NewTool(cfg ToolConfig) *Tool {
	return &Tool{
		base:   cfg.Base,
		reg:    cfg.Registry,
		store:  cfg.Store,
		wallet: cfg.Wallet,
		stats:  cfg.Stats,
		log:    logging.Named("bridge.tool"),
	}
}

func (t *Tool) Name() string { return "bridge" }

func (t *Tool) Description() string {
	return "Bridge a token from one network to another, routed through the provider delivering the most on the destination side."
}

func (t *Tool) Schema() schema.Object {
	networks := tool.NetworkEnum(t.base.Networks())
	o := schema.NewObject()
	o.Properties["fromNetwork"] = schema.Property{
		Type:        "string",
		Description: "Network the funds leave from",
		Enum:        networks,
	}
	o.Properties["toNetwork"] = schema.Property{
		Type:        "string",
		Description: "Network the funds arrive on",
		Enum:        networks,
	}
	o.Properties["fromToken"] = schema.Property{
		Type:        "string",
		Description: "Address of the token to send (native sentinel for the gas currency)",
	}
	o.Properties["toToken"] = schema.Property{
		Type:        "string",
		Description: "Address of the token to receive on the destination network",
	}
	o.Properties["amount"] = schema.Property{
		Type:        "string",
		Description: "Decimal amount of the source token",
	}
	o.Properties["recipient"] = schema.Property{
		Type:        "string",
		Description: "Destination address; defaults to the wallet's own address on the destination network",
	}
	o.Properties["provider"] = schema.Property{
		Type:        "string",
		Description: "Pin the route to one bridge; omitted means best quote across all",
	}
	o.Required = []string{"fromNetwork", "toNetwork", "fromToken", "toToken", "amount"}
	return o
}

type bridgeArgs struct {
	FromNetwork string `json:"fromNetwork"`
	ToNetwork   string `json:"toNetwork"`
	FromToken   string `json:"fromToken"`
	ToToken     string `json:"toToken"`
	Amount      string `json:"amount"`
	Recipient   string `json:"recipient"`
	Provider    string `json:"provider"`
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	report = tool.EnsureProgress(report)
	start := time.Now()
	payload, err := t.run(ctx, raw, report)
	t.stats.RecordInvocation(t.Name(), time.Since(start), err != nil)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		t.log.Warn("bridge failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *Tool) run(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args bridgeArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}
	report(5, "validating bridge request")

	params, err := t.buildParams(ctx, args)
	if err != nil {
		return "", err
	}

	candidates := t.reg.ByNetwork(params.FromNetwork)
	if len(candidates) == 0 {
		return "", binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"no bridge providers available on %s (networks with providers: %s)",
			params.FromNetwork, core.JoinNetworks(t.reg.Networks()))
	}

	report(20, fmt.Sprintf("requesting routes from %d providers", len(candidates)))
	selected, err := t.selectQuote(ctx, params, candidates)
	if err != nil {
		return "", err
	}
	report(40, fmt.Sprintf("best route from %s", selected.Provider))
	t.stats.RecordSelection(selected.Provider)

	report(55, "checking balances")
	check, err := t.base.CheckBalance(ctx, params.FromNetwork, params.Wallet, selected.TokenIn.Address, selected.AmountIn)
	if err != nil {
		return "", err
	}
	if !check.Valid {
		return "", binkerr.New(binkerr.CodeInsufficientBalance, check.Message)
	}

	rec, err := provider.Consume(ctx, t.base, t.store, selected.Key(), params.Wallet)
	if err != nil {
		return "", err
	}

	if err := t.ensureAllowance(ctx, rec, params.Wallet, report); err != nil {
		return "", err
	}

	report(85, "submitting bridge transaction")
	receipt, err := t.wallet.SignAndSend(ctx, rec.Transaction())
	if err != nil {
		return "", err
	}
	conf, err := receipt.Wait(ctx)
	if err != nil {
		return "", err
	}
	t.base.InvalidateBalances(rec.Network, rec.Wallet, rec.Tokens()...)
	report(100, "bridge transaction confirmed")

	t.log.Info("bridge executed",
		slog.String("provider", rec.Provider),
		slog.String("from", string(rec.Network)),
		slog.String("to", string(rec.ToNetwork)),
		slog.String("hash", conf.Hash))

	return tool.Success(map[string]any{
		"type":            "bridge",
		"provider":        rec.Provider,
		"network":         string(rec.Network),
		"fromNetwork":     string(rec.Network),
		"toNetwork":       string(rec.ToNetwork),
		"tokenA":          rec.TokenIn,
		"tokenB":          rec.TokenOut,
		"amountA":         core.FormatUnits(rec.AmountIn, rec.TokenIn.Decimals),
		"amountB":         core.FormatUnits(rec.AmountOut, rec.TokenOut.Decimals),
		"recipient":       rec.Recipient,
		"transactionHash": conf.Hash,
	}), nil
}

func (t *Tool) buildParams(ctx context.Context, args bridgeArgs) (Params, error) {
	from := core.NetworkID(strings.ToLower(strings.TrimSpace(args.FromNetwork)))
	to := core.NetworkID(strings.ToLower(strings.TrimSpace(args.ToNetwork)))
	if err := t.base.ValidateNetwork(from); err != nil {
		return Params{}, err
	}
	if err := t.base.ValidateNetwork(to); err != nil {
		return Params{}, err
	}
	if from == to {
		return Params{}, binkerr.New(binkerr.CodeValidation, "fromNetwork and toNetwork must differ; use swap for same-network trades")
	}
	if err := core.ValidateAddress(from, args.FromToken); err != nil {
		return Params{}, err
	}
	if err := core.ValidateAddress(to, args.ToToken); err != nil {
		return Params{}, err
	}
	tokenIn := core.NormalizeAddress(from, args.FromToken)
	tokenOut := core.NormalizeAddress(to, args.ToToken)

	walletAddr, err := t.wallet.Address(from)
	if err != nil {
		return Params{}, err
	}
	t.stats.RecordWallet(walletAddr)

	recipient := strings.TrimSpace(args.Recipient)
	if recipient == "" {
		recipient, err = t.wallet.Address(to)
		if err != nil {
			return Params{}, binkerr.Wrap(binkerr.CodeValidation,
				fmt.Sprintf("recipient is required when the wallet has no %s address", to), err)
		}
	}
	if err := core.ValidateAddress(to, recipient); err != nil {
		return Params{}, err
	}
	recipient = core.NormalizeAddress(to, recipient)

	token, err := t.base.Tokens().Token(ctx, from, tokenIn)
	if err != nil {
		return Params{}, err
	}
	amount, err := core.ToBaseUnits(strings.TrimSpace(args.Amount), token.Decimals)
	if err != nil {
		return Params{}, err
	}
	if amount.Sign() <= 0 {
		return Params{}, binkerr.New(binkerr.CodeValidation, "amount must be positive")
	}

	// Sending native: clamp so the source network's gas buffer survives.
	if core.IsNativeAddress(from, tokenIn) {
		amount, err = t.base.AdjustNativeAmount(ctx, from, walletAddr, amount)
		if err != nil {
			return Params{}, err
		}
	}

	return Params{
		FromNetwork: from,
		ToNetwork:   to,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      amount,
		Wallet:      walletAddr,
		Recipient:   recipient,
		Provider:    strings.TrimSpace(args.Provider),
	}, nil
}

// selectQuote resolves the pinned provider if one was named, falling back to
// the full fan-out when its quote fails.
func (t *Tool) selectQuote(ctx context.Context, params Params, candidates []Provider) (*Quote, error) {
	if params.Provider != "" {
		p, err := t.reg.Get(params.Provider)
		if err != nil {
			return nil, err
		}
		if !supportsNetwork(p, params.FromNetwork) {
			return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
				"provider %s does not serve %s (available: %s)",
				p.Name(), params.FromNetwork, providerNames(candidates))
		}
		start := time.Now()
		q, err := p.Quote(ctx, params)
		t.stats.RecordQuote(p.Name(), time.Since(start), err != nil)
		if err == nil {
			if err := provider.StoreQuote(ctx, t.store, q); err != nil {
				return nil, err
			}
			return q, nil
		}
		t.log.Warn("pinned provider failed, falling back to best quote",
			slog.String("provider", p.Name()),
			slog.String("error", err.Error()))
	}

	outcomes := provider.Collect(ctx, candidates, func(ctx context.Context, p Provider) (*Quote, error) {
		return p.Quote(ctx, params)
	})
	var valid []*Quote
	for _, o := range outcomes {
		t.stats.RecordQuote(o.Provider, o.Latency, o.Err != nil)
		if o.Err != nil || o.Quote == nil {
			continue
		}
		if err := provider.StoreQuote(ctx, t.store, o.Quote); err != nil {
			return nil, err
		}
		valid = append(valid, o.Quote)
	}
	best := Best(valid)
	if best == nil {
		return nil, binkerr.New(binkerr.CodeNoValidQuotes, "No valid quotes found")
	}
	return best, nil
}

// ensureAllowance approves the quote's spender when the allowance cannot
// cover the sent token; confirmed before the bridge transaction goes out.
func (t *Tool) ensureAllowance(ctx context.Context, rec *Quote, walletAddr string, report tool.ProgressFunc) error {
	if rec.Spender == "" || core.IsNativeAddress(rec.Network, rec.TokenIn.Address) {
		return nil
	}
	allowance, err := t.base.Allowance(ctx, rec.Network, rec.TokenIn.Address, walletAddr, rec.Spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(rec.AmountIn) >= 0 {
		return nil
	}

	report(65, fmt.Sprintf("approving %s spend", rec.TokenIn.Symbol))
	approveTx, err := t.base.BuildApproveTransaction(rec.Network, rec.TokenIn.Address, rec.Spender, rec.AmountIn)
	if err != nil {
		return err
	}
	receipt, err := t.wallet.SignAndSend(ctx, approveTx)
	if err != nil {
		return err
	}
	report(75, "waiting for approval confirmation")
	if _, err := receipt.Wait(ctx); err != nil {
		return err
	}
	t.base.InvalidateBalances(rec.Network, walletAddr, rec.TokenIn.Address)
	t.log.Info("approval confirmed",
		slog.String("token", rec.TokenIn.Symbol),
		slog.String("spender", rec.Spender),
		slog.String("hash", receipt.Hash()))
	return nil
}

func supportsNetwork(p Provider, network core.NetworkID) bool {
	for _, n := range p.Networks() {
		if n == network || n == core.NetworkAll {
			return true
		}
	}
	return false
}

func providerNames(providers []Provider) string {
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	return strings.Join(names, ", ")
}
