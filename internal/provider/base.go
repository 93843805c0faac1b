package provider

import (
	"context"
	"math/big"
	"strings"
	"time"

	ethmath "github.com/ethereum/go-ethereum/common/math"

	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// DefaultToleranceBps is the rounding slack between a requested amount and
// the wallet's usable balance: 50 bps = 0.5%.
const DefaultToleranceBps = 50

const bpsDenominator = 10_000

type Config struct {
	Name         string
	Networks     []core.NetworkID
	Reader       chain.Reader
	Tokens       *cache.TokenCache
	Balances     *cache.BalanceCache
	ToleranceBps int64
	Now          func() time.Time
}

// Base carries the behavior every quote provider shares: network gating, gas
// buffers, tolerance arithmetic, balance verification and approval encoding.
// Concrete providers embed *Base.
type Base struct {
	name         string
	networks     []core.NetworkID
	reader       chain.Reader
	tokens       *cache.TokenCache
	balances     *cache.BalanceCache
	toleranceBps int64
	now          func() time.Time
}

func NewBase(cfg Config) *Base {
	if cfg.ToleranceBps <= 0 {
		cfg.ToleranceBps = DefaultToleranceBps
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Base{
		name:         cfg.Name,
		networks:     cfg.Networks,
		reader:       cfg.Reader,
		tokens:       cfg.Tokens,
		balances:     cfg.Balances,
		toleranceBps: cfg.ToleranceBps,
		now:          cfg.Now,
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Networks() []core.NetworkID {
	out := make([]core.NetworkID, len(b.networks))
	copy(out, b.networks)
	return out
}

func (b *Base) Now() time.Time { return b.now() }

// Supports reports whether the provider serves the network.
func (b *Base) Supports(network core.NetworkID) bool {
	for _, n := range b.networks {
		if n == network {
			return true
		}
	}
	return false
}

func (b *Base) ValidateNetwork(network core.NetworkID) error {
	if b.Supports(network) {
		return nil
	}
	names := make([]string, len(b.networks))
	for i, n := range b.networks {
		names[i] = string(n)
	}
	return binkerr.Newf(binkerr.CodeNetworkUnsupported,
		"network %s not supported by %s (supported: %s)", network, b.name, strings.Join(names, ", "))
}

// GasBuffer is the native reserve that must stay unspent on the network.
func (b *Base) GasBuffer(network core.NetworkID) *big.Int {
	return core.GasBuffer(network)
}

// WithinTolerance reports whether available covers required after the
// tolerance: available >= required * (10000 - bps) / 10000. The boundary
// itself passes.
func (b *Base) WithinTolerance(required, available *big.Int) bool {
	if required == nil || available == nil {
		return false
	}
	threshold := new(big.Int).Mul(required, big.NewInt(bpsDenominator-b.toleranceBps))
	threshold.Quo(threshold, big.NewInt(bpsDenominator))
	return available.Cmp(threshold) >= 0
}

// AdjustNativeAmount caps a native spend so the gas buffer survives it.
// Within tolerance the amount is clamped to balance - buffer; beyond it the
// wallet genuinely cannot cover the request.
func (b *Base) AdjustNativeAmount(ctx context.Context, network core.NetworkID, walletAddr string, amount *big.Int) (*big.Int, error) {
	native, err := core.NativeToken(network)
	if err != nil {
		return nil, err
	}
	buffer := b.GasBuffer(network)
	if amount == nil || amount.Cmp(buffer) <= 0 {
		return nil, binkerr.Newf(binkerr.CodeInsufficientBalance,
			"amount must exceed the %s gas buffer of %s %s",
			native.Symbol, core.FormatUnits(buffer, native.Decimals), native.Symbol)
	}

	entry, err := b.balances.Balance(ctx, network, native.Address, walletAddr, false)
	if err != nil {
		return nil, err
	}
	if entry.Amount.Cmp(buffer) <= 0 {
		return nil, binkerr.Newf(binkerr.CodeInsufficientBalance,
			"Insufficient %s balance. Required: %s %s (including gas buffer), Available: %s %s",
			native.Symbol,
			core.FormatUnits(new(big.Int).Add(amount, buffer), native.Decimals), native.Symbol,
			entry.Formatted, native.Symbol)
	}

	maxSpendable := new(big.Int).Sub(entry.Amount, buffer)
	if amount.Cmp(maxSpendable) <= 0 {
		return new(big.Int).Set(amount), nil
	}
	if b.WithinTolerance(amount, maxSpendable) {
		return maxSpendable, nil
	}
	return nil, binkerr.Newf(binkerr.CodeInsufficientBalance,
		"Insufficient %s balance. Required: %s %s (including gas buffer), Available: %s %s",
		native.Symbol,
		core.FormatUnits(new(big.Int).Add(amount, buffer), native.Decimals), native.Symbol,
		entry.Formatted, native.Symbol)
}

// AdjustAmount is AdjustNativeAmount for the native token and a plain
// balance clamp for everything else.
func (b *Base) AdjustAmount(ctx context.Context, network core.NetworkID, tokenAddr, walletAddr string, amount *big.Int) (*big.Int, error) {
	if core.IsNativeAddress(network, tokenAddr) {
		return b.AdjustNativeAmount(ctx, network, walletAddr, amount)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, binkerr.New(binkerr.CodeValidation, "amount must be positive")
	}

	entry, err := b.balances.Balance(ctx, network, tokenAddr, walletAddr, false)
	if err != nil {
		return nil, err
	}
	if amount.Cmp(entry.Amount) <= 0 {
		return new(big.Int).Set(amount), nil
	}
	if b.WithinTolerance(amount, entry.Amount) {
		return new(big.Int).Set(entry.Amount), nil
	}

	token, err := b.tokens.Token(ctx, network, tokenAddr)
	if err != nil {
		return nil, err
	}
	return nil, binkerr.Newf(binkerr.CodeInsufficientBalance,
		"Insufficient %s balance. Required: %s %s, Available: %s %s",
		token.Symbol,
		core.FormatUnits(amount, token.Decimals), token.Symbol,
		entry.Formatted, token.Symbol)
}

// CheckResult is the outcome of a solvency check. An invalid result is a
// domain answer, not an error; errors are reserved for failed reads.
type CheckResult struct {
	Valid   bool
	Message string
}

// CheckBalance verifies the wallet can fund the operation. Native spends must
// leave the gas buffer intact; token spends additionally require the native
// balance to still cover gas.
func (b *Base) CheckBalance(ctx context.Context, network core.NetworkID, walletAddr, tokenAddr string, amount *big.Int) (CheckResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return CheckResult{Valid: true}, nil
	}
	native, err := core.NativeToken(network)
	if err != nil {
		return CheckResult{}, err
	}
	buffer := b.GasBuffer(network)

	if core.IsNativeAddress(network, tokenAddr) {
		entry, err := b.balances.Balance(ctx, network, native.Address, walletAddr, false)
		if err != nil {
			return CheckResult{}, err
		}
		required := new(big.Int).Add(amount, buffer)
		if b.WithinTolerance(required, entry.Amount) {
			return CheckResult{Valid: true}, nil
		}
		return CheckResult{
			Valid: false,
			Message: "Insufficient " + native.Symbol + " balance. Required: " +
				core.FormatUnits(required, native.Decimals) + " " + native.Symbol +
				" (including gas buffer), Available: " + entry.Formatted + " " + native.Symbol,
		}, nil
	}

	entry, err := b.balances.Balance(ctx, network, tokenAddr, walletAddr, false)
	if err != nil {
		return CheckResult{}, err
	}
	if !b.WithinTolerance(amount, entry.Amount) {
		token, err := b.tokens.Token(ctx, network, tokenAddr)
		if err != nil {
			return CheckResult{}, err
		}
		return CheckResult{
			Valid: false,
			Message: "Insufficient " + token.Symbol + " balance. Required: " +
				core.FormatUnits(amount, token.Decimals) + " " + token.Symbol +
				", Available: " + entry.Formatted + " " + token.Symbol,
		}, nil
	}

	nativeEntry, err := b.balances.Balance(ctx, network, native.Address, walletAddr, false)
	if err != nil {
		return CheckResult{}, err
	}
	if nativeEntry.Amount.Cmp(buffer) < 0 {
		return CheckResult{
			Valid: false,
			Message: "Insufficient " + native.Symbol + " for gas. Required: " +
				core.FormatUnits(buffer, native.Decimals) + " " + native.Symbol +
				", Available: " + nativeEntry.Formatted + " " + native.Symbol,
		}, nil
	}
	return CheckResult{Valid: true}, nil
}

// Allowance reads the current spender allowance. The native token never
// needs approval and reports the unlimited sentinel.
func (b *Base) Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error) {
	if core.IsNativeAddress(network, tokenAddr) {
		return new(big.Int).Set(ethmath.MaxBig256), nil
	}
	return b.reader.Allowance(ctx, network, tokenAddr, owner, spender)
}

// BuildApproveTransaction encodes an ERC-20 approve for the spender.
func (b *Base) BuildApproveTransaction(network core.NetworkID, tokenAddr, spender string, amount *big.Int) (core.Transaction, error) {
	if core.IsNativeAddress(network, tokenAddr) {
		return core.Transaction{}, binkerr.New(binkerr.CodeValidation, "native token does not require approval")
	}
	n, err := core.NetworkByID(network)
	if err != nil {
		return core.Transaction{}, err
	}
	if !n.IsEVM() {
		return core.Transaction{}, binkerr.Newf(binkerr.CodeNetworkUnsupported, "approvals only exist on EVM networks, not %s", network)
	}
	data, err := chain.PackApprove(spender, amount)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		Network: network,
		To:      tokenAddr,
		Data:    data,
		Value:   new(big.Int),
	}, nil
}

// InvalidateBalances drops cached balances for the listed tokens plus the
// native token; every confirmed transaction spends gas.
func (b *Base) InvalidateBalances(network core.NetworkID, walletAddr string, tokenAddrs ...string) {
	for _, addr := range tokenAddrs {
		b.balances.Invalidate(network, addr, walletAddr)
	}
	if native, err := core.NativeToken(network); err == nil {
		b.balances.Invalidate(network, native.Address, walletAddr)
	}
}

// Tokens exposes the metadata cache to embedding providers.
func (b *Base) Tokens() *cache.TokenCache { return b.tokens }

// Balances exposes the balance cache to embedding providers.
func (b *Base) Balances() *cache.BalanceCache { return b.balances }

// Reader exposes chain reads to embedding providers.
func (b *Base) Reader() chain.Reader { return b.reader }
