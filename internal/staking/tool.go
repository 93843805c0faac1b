package staking

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

// ToolConfig wires the staking tool's collaborators.
type ToolConfig struct {
	Base     *provider.Base
	Registry *registry.Registry[Provider]
	Store    quotes.Store[*Quote]
	Wallet   wallet.Wallet
	Stats    *stats.Collector
}

// Tool runs stake, unstake, supply and withdraw requests end to end through
// the cheapest quoting protocol.
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
		log:    logging.Named("staking.tool"),
	}
}

func (t *Tool) Name() string { return "staking" }

func (t *Tool) Description() string {
	return "Stake, unstake, supply or withdraw an asset through the protocol asking the least for the requested outcome."
}

func (t *Tool) Schema() schema.Object {
	o := schema.NewObject()
	o.Properties["network"] = schema.Property{
		Type:        "string",
		Description: "Network to operate on",
		Enum:        tool.NetworkEnum(t.base.Networks()),
	}
	o.Properties["token"] = schema.Property{
		Type:        "string",
		Description: "Address of the asset (native sentinel for the gas currency)",
	}
	o.Properties["amount"] = schema.Property{
		Type:        "string",
		Description: "Decimal amount of the asset",
	}
	o.Properties["action"] = schema.Property{
		Type:        "string",
		Description: "What to do with the asset",
		Enum: []string{
			string(ActionStake), string(ActionUnstake),
			string(ActionSupply), string(ActionWithdraw),
		},
	}
	o.Properties["provider"] = schema.Property{
		Type:        "string",
		Description: "Pin the request to one protocol; omitted means best quote across all",
	}
	o.Required = []string{"network", "token", "amount", "action"}
	return o
}

type stakingArgs struct {
	Network  string `json:"network"`
	Token    string `json:"token"`
	Amount   string `json:"amount"`
	Action   string `json:"action"`
	Provider string `json:"provider"`
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
		t.log.Warn("staking operation failed", slog.String("error", err.Error()))
		return tool.ErrorFrom(err), nil
	}
	return payload, nil
}

func (t *Tool) run(ctx context.Context, raw json.RawMessage, report tool.ProgressFunc) (string, error) {
	var args stakingArgs
	if err := tool.Decode(t.Schema(), raw, &args); err != nil {
		return "", err
	}
	report(5, "validating staking request")

	params, err := t.buildParams(ctx, args)
	if err != nil {
		return "", err
	}

	candidates := t.reg.ByNetwork(params.Network)
	if len(candidates) == 0 {
		return "", binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"no staking providers available on %s (networks with providers: %s)",
			params.Network, core.JoinNetworks(t.reg.Networks()))
	}

	report(20, fmt.Sprintf("requesting %s quotes from %d providers", params.Action, len(candidates)))
	selected, err := t.selectQuote(ctx, params, candidates)
	if err != nil {
		return "", err
	}
	report(40, fmt.Sprintf("best quote from %s", selected.Provider))
	t.stats.RecordSelection(selected.Provider)

	// Deposits spend the wallet now, so prove solvency first. Exits draw on
	// the protocol's liability; the chain enforces position sufficiency.
	if params.Action.Deposits() {
		report(55, "checking balances")
		check, err := t.base.CheckBalance(ctx, params.Network, params.Wallet, selected.Token.Address, selected.AmountIn)
		if err != nil {
			return "", err
		}
		if !check.Valid {
			return "", binkerr.New(binkerr.CodeInsufficientBalance, check.Message)
		}
	}

	rec, err := provider.Consume(ctx, t.base, t.store, selected.Key(), params.Wallet)
	if err != nil {
		return "", err
	}

	if err := t.ensureAllowance(ctx, rec, params.Wallet, report); err != nil {
		return "", err
	}

	report(85, fmt.Sprintf("submitting %s transaction", rec.Action))
	receipt, err := t.wallet.SignAndSend(ctx, rec.Transaction())
	if err != nil {
		return "", err
	}
	conf, err := receipt.Wait(ctx)
	if err != nil {
		return "", err
	}
	t.base.InvalidateBalances(rec.Network, rec.Wallet, rec.Tokens()...)
	report(100, fmt.Sprintf("%s confirmed", rec.Action))

	t.log.Info("staking operation executed",
		slog.String("action", string(rec.Action)),
		slog.String("provider", rec.Provider),
		slog.String("network", string(rec.Network)),
		slog.String("hash", conf.Hash))

	result := map[string]any{
		"type":            string(rec.Action),
		"provider":        rec.Provider,
		"network":         string(rec.Network),
		"tokenA":          rec.Token,
		"tokenB":          rec.OutputToken,
		"amountA":         core.FormatUnits(rec.AmountIn, rec.Token.Decimals),
		"amountB":         core.FormatUnits(rec.AmountOut, rec.OutputToken.Decimals),
		"transactionHash": conf.Hash,
	}
	if rec.APRBps > 0 {
		result["apr"] = float64(rec.APRBps) / 100
	}
	return tool.Success(result), nil
}

func (t *Tool) buildParams(ctx context.Context, args stakingArgs) (Params, error) {
	network := core.NetworkID(strings.ToLower(strings.TrimSpace(args.Network)))
	if err := t.base.ValidateNetwork(network); err != nil {
		return Params{}, err
	}
	if err := core.ValidateAddress(network, args.Token); err != nil {
		return Params{}, err
	}
	tokenAddr := core.NormalizeAddress(network, args.Token)

	action, err := ParseAction(args.Action)
	if err != nil {
		return Params{}, err
	}

	walletAddr, err := t.wallet.Address(network)
	if err != nil {
		return Params{}, err
	}
	t.stats.RecordWallet(walletAddr)

	token, err := t.base.Tokens().Token(ctx, network, tokenAddr)
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

	// Deposits spend the wallet's own balance now, so clamp against it. Exit
	// amounts are owed by the protocol and pass through untouched.
	if action.Deposits() {
		amount, err = t.base.AdjustAmount(ctx, network, tokenAddr, walletAddr, amount)
		if err != nil {
			return Params{}, err
		}
	}

	return Params{
		Network:  network,
		Token:    tokenAddr,
		Amount:   amount,
		Action:   action,
		Wallet:   walletAddr,
		Provider: strings.TrimSpace(args.Provider),
	}, nil
}

// selectQuote resolves the pinned provider if one was named, falling back to
// the full fan-out when its quote fails. Every issued quote is stored before
// selection.
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
	best := Best(valid)
	if best == nil {
		return nil, binkerr.New(binkerr.CodeNoValidQuotes, "No valid quotes found")
	}
	return best, nil
}

// ensureAllowance approves the quote's spender when the current allowance
// cannot cover the spent token. The approval is confirmed before the caller
// submits the operation itself.
func (t *Tool) ensureAllowance(ctx context.Context, rec *Quote, walletAddr string, report tool.ProgressFunc) error {
	if rec.Spender == "" || core.IsNativeAddress(rec.Network, rec.Token.Address) {
		return nil
	}
	allowance, err := t.base.Allowance(ctx, rec.Network, rec.Token.Address, walletAddr, rec.Spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(rec.AmountIn) >= 0 {
		return nil
	}

	report(65, fmt.Sprintf("approving %s spend", rec.Token.Symbol))
	approveTx, err := t.base.BuildApproveTransaction(rec.Network, rec.Token.Address, rec.Spender, rec.AmountIn)
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
	t.base.InvalidateBalances(rec.Network, walletAddr, rec.Token.Address)
	t.log.Info("approval confirmed",
		slog.String("token", rec.Token.Symbol),
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
