package swap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
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

const defaultSlippagePercent = 0.5

// ToolConfig wires the swap tool's collaborators. Base carries the networks
// this agent is configured for; the registry carries what providers can serve.
type ToolConfig struct {
	Base     *provider.Base
	Registry *registry.Registry[Provider]
	Store    quotes.Store[*Quote]
	Wallet   wallet.Wallet
	Stats    *stats.Collector
}

// Tool runs a swap end to end: validate, fan out for quotes, pick the best,
// verify solvency, approve when the allowance is short, submit, confirm.
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
		log:    logging.Named("swap.tool"),
	}
}

func (t *Tool) Name() string { return "swap" }

func (t *Tool) Description() string {
	return "Swap one token for another on a supported network, routing through the provider with the best quote."
}

func (t *Tool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["network"] = schema.Property{
		Type:        "string",
		Description: "Network to swap on",
		Enum:        tool.NetworkEnum(t.base.Networks()),
	}
	o.Properties["fromToken"] = schema.Property{
		Type:        "string",
		Description: "Address of the token to sell (native sentinel for the gas currency)",
	}
	o.Properties["toToken"] = schema.Property{
		Type:        "string",
		Description: "Address of the token to buy",
	}
	o.Properties["amount"] = schema.Property{
		Type:        "string",
		Description: "Decimal amount, denominated in fromToken for input swaps and toToken for output swaps",
	}
	o.Properties["amountType"] = schema.Property{
		Type:        "string",
		Description: "Which side the amount fixes; defaults to input",
		Enum:        []string{string(ModeInput), string(ModeOutput)},
	}
	o.Properties["slippage"] = schema.Property{
		Type:        "number",
		Description: "Maximum slippage in percent; defaults to 0.5",
	}
	o.Properties["provider"] = schema.Property{
		Type:        "string",
		Description: "Pin the swap to one provider; omitted means best quote across all",
	}
	o.Required = []string{"network", "fromToken", "toToken", "amount"}
	return o
}

type swapArgs struct {
	Network    string  `json:"network"`
	FromToken  string  `json:"fromToken"`
	ToToken    string  `json:"toToken"`
	Amount     string  `json:"amount"`
	AmountType string  `json:"amountType"`
	Slippage   float64 `json:"slippage"`
	Provider   string  `json:"provider"`
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
		t.log.Warn("swap failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *Tool) run(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args swapArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}
	report(5, "validating swap request")

	params, err := t.buildParams(ctx, args)
	if err != nil {
		return "", err
	}

	candidates := t.reg.ByNetwork(params.Network)
	if len(candidates) == 0 {
		return "", binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"no swap providers available on %s (networks with providers: %s)",
			params.Network, core.JoinNetworks(t.reg.Networks()))
	}

	report(20, fmt.Sprintf("requesting quotes from %d providers", len(candidates)))
	selected, err := t.selectQuote(ctx, params, candidates)
	if err != nil {
		return "", err
	}
	report(40, fmt.Sprintf("best quote from %s", selected.Provider))
	t.stats.RecordSelection(selected.Provider)

	report(55, "checking balances")
	check, err := t.base.CheckBalance(ctx, params.Network, params.Wallet, selected.TokenIn.Address, selected.AmountIn)
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

	report(85, "submitting swap transaction")
	receipt, err := t.wallet.SignAndSend(ctx, rec.Transaction())
	if err != nil {
		return "", err
	}
	conf, err := receipt.Wait(ctx)
	if err != nil {
		return "", err
	}
	t.base.InvalidateBalances(rec.Network, rec.Wallet, rec.Tokens()...)
	report(100, "swap confirmed")

	t.log.Info("swap executed",
		slog.String("provider", rec.Provider),
		slog.String("network", string(rec.Network)),
		slog.String("hash", conf.Hash))

	return tool.Success(map[string]any{
		"type":            "swap",
		"provider":        rec.Provider,
		"network":         string(rec.Network),
		"tokenA":          rec.TokenIn,
		"tokenB":          rec.TokenOut,
		"amountA":         core.FormatUnits(rec.AmountIn, rec.TokenIn.Decimals),
		"amountB":         core.FormatUnits(rec.AmountOut, rec.TokenOut.Decimals),
		"transactionHash": conf.Hash,
	}), nil
}

func (t *Tool) buildParams(ctx context.Context, args swapArgs) (Params, error) {
	network := core.NetworkID(strings.ToLower(strings.TrimSpace(args.Network)))
	if err := t.base.ValidateNetwork(network); err != nil {
		return Params{}, err
	}
	if err := core.ValidateAddress(network, args.FromToken); err != nil {
		return Params{}, err
	}
	if err := core.ValidateAddress(network, args.ToToken); err != nil {
		return Params{}, err
	}
	tokenIn := core.NormalizeAddress(network, args.FromToken)
	tokenOut := core.NormalizeAddress(network, args.ToToken)
	if core.AddressesEqual(network, tokenIn, tokenOut) {
		return Params{}, binkerr.New(binkerr.CodeValidation, "fromToken and toToken must differ")
	}

	mode := ModeInput
	switch strings.ToLower(strings.TrimSpace(args.AmountType)) {
	case "", string(ModeInput):
	case string(ModeOutput):
		mode = ModeOutput
	default:
		return Params{}, binkerr.Newf(binkerr.CodeValidation, "amountType must be input or output, not %q", args.AmountType)
	}

	slippage := args.Slippage
	if slippage == 0 {
		slippage = defaultSlippagePercent
	}
	if slippage < 0 || slippage > 50 {
		return Params{}, binkerr.New(binkerr.CodeValidation, "slippage must be between 0 and 50 percent")
	}

	walletAddr, err := t.wallet.Address(network)
	if err != nil {
		return Params{}, err
	}
	t.stats.RecordWallet(walletAddr)

	// The amount is denominated in whichever token the mode fixes.
	ref := tokenIn
	if mode == ModeOutput {
		ref = tokenOut
	}
	refToken, err := t.base.Tokens().Token(ctx, network, ref)
	if err != nil {
		return Params{}, err
	}
	amount, err := core.ToBaseUnits(strings.TrimSpace(args.Amount), refToken.Decimals)
	if err != nil {
		return Params{}, err
	}
	if amount.Sign() <= 0 {
		return Params{}, binkerr.New(binkerr.CodeValidation, "amount must be positive")
	}

	// Selling native: clamp so the gas buffer survives the spend.
	if mode == ModeInput && core.IsNativeAddress(network, tokenIn) {
		amount, err = t.base.AdjustNativeAmount(ctx, network, walletAddr, amount)
		if err != nil {
			return Params{}, err
		}
	}

	return Params{
		Network:     network,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		Amount:      amount,
		Mode:        mode,
		SlippageBps: int64(math.Round(slippage * 100)),
		Wallet:      walletAddr,
		Provider:    strings.TrimSpace(args.Provider),
	}, nil
}

// selectQuote resolves the pinned provider if one was named, falling back to
// the full fan-out when its quote fails. Every issued quote is stored before
// selection so any of them could be consumed later.
func (t *Tool) selectQuote(ctx context.Context, params Params, candidates []Provider) (*Quote, error) {
	if params.Provider != "" {
		p, err := t.reg.Get(params.Provider)
		if err != nil {
			return nil, err
		}
		if !supportsNetwork(p, params.Network) {
			return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
				"provider %s does not serve %s (available: %s)",
				p.Name(), params.Network, providerNames(candidates))
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
	best := Best(params.Mode, valid)
	if best == nil {
		return nil, binkerr.New(binkerr.CodeNoValidQuotes, "No valid quotes found")
	}
	return best, nil
}

// ensureAllowance approves the quote's spender when the current allowance
// cannot cover the input amount. The approval is confirmed before the caller
// may submit the swap itself.
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
