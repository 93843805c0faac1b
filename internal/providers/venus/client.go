// Package venus builds supply and withdraw transactions for the Venus
// lending markets on BNB Chain. There is no quote API to call: the vToken
// calls are encoded locally from the market table.
package venus

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/tonyfindev/BinkOS-sub002/internal/cache"
	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/staking"
)

var (
	vTokenABI = chain.MustABI(chain.VTokenABI)
	vbnbABI   = chain.MustABI(chain.VBNBABI)
)

// market pairs a vToken with its underlying; empty underlying marks the
// native market, whose mint is payable.
type market struct {
	vToken     string
	underlying string
	symbol     string
}

var markets = []market{
	{vToken: "0xa07c5b74c9b40447a954e1466938b865b6bbea36", underlying: "", symbol: "vBNB"},
	{vToken: "0xfd5840cd36d94d7229439859c0112a4185bc0255", underlying: "0x55d398326f99059ff775485246999027b3197955", symbol: "vUSDT"},
	{vToken: "0xeca88125a5adbe82614ffc12d0db554e2e2867c8", underlying: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", symbol: "vUSDC"},
	{vToken: "0x95c78222b3d6e262426483d42cfa53685a67ab9d", underlying: "0xe9e7cea3dedca5984780bafc599bd69add087d56", symbol: "vBUSD"},
}

// Client serves the supply/withdraw half of the staking action set. Positions
// are reported in underlying terms; the vToken only appears as the
// transaction target.
type Client struct {
	tokens   *cache.TokenCache
	quoteTTL time.Duration
	now      func() time.Time
}

func New(tokens *cache.TokenCache) *Client {
	return &Client{tokens: tokens, quoteTTL: staking.DefaultQuoteTTL, now: time.Now}
}

// SetQuoteTTL overrides how long issued quotes stay consumable.
func (c *Client) SetQuoteTTL(d time.Duration) {
	if d > 0 {
		c.quoteTTL = d
	}
}

func (c *Client) Name() string { return "venus" }

func (c *Client) Networks() []core.NetworkID {
	return []core.NetworkID{core.NetworkBNB}
}

func (c *Client) Quote(ctx context.Context, p staking.Params) (*staking.Quote, error) {
	if p.Network != core.NetworkBNB {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"venus only serves bnb, not %s", p.Network)
	}
	if p.Action != staking.ActionSupply && p.Action != staking.ActionWithdraw {
		return nil, binkerr.New(binkerr.CodeValidation, "venus supports supply and withdraw")
	}

	m, err := marketFor(p.Network, p.Token)
	if err != nil {
		return nil, err
	}
	underlying, err := c.tokens.Token(ctx, p.Network, p.Token)
	if err != nil {
		return nil, err
	}

	tx := core.Transaction{Network: p.Network, To: m.vToken, Value: new(big.Int)}
	spender := ""
	switch {
	case p.Action == staking.ActionSupply && m.underlying == "":
		tx.Data, err = pack(vbnbABI, "mint")
		tx.Value = new(big.Int).Set(p.Amount)
	case p.Action == staking.ActionSupply:
		tx.Data, err = pack(vTokenABI, "mint", p.Amount)
		spender = m.vToken
	default:
		// redeemUnderlying burns the market's own receipt token, so the exit
		// needs no approval.
		tx.Data, err = pack(vTokenABI, "redeemUnderlying", p.Amount)
	}
	if err != nil {
		return nil, err
	}

	meta := quotes.NewMeta(c.Name(), p.Network, p.Wallet, c.now(), c.quoteTTL)
	meta.Tx = tx

	return &staking.Quote{
		Meta:        meta,
		Action:      p.Action,
		Token:       underlying,
		OutputToken: underlying,
		AmountIn:    new(big.Int).Set(p.Amount),
		AmountOut:   new(big.Int).Set(p.Amount),
		Spender:     spender,
	}, nil
}

func marketFor(network core.NetworkID, token string) (market, error) {
	native := core.IsNativeAddress(network, token)
	for _, m := range markets {
		if native && m.underlying == "" {
			return m, nil
		}
		if !native && m.underlying != "" && core.AddressesEqual(network, m.underlying, token) {
			return m, nil
		}
	}
	return market{}, binkerr.Newf(binkerr.CodeValidation,
		"venus has no market for token %s (markets: %s)", token, marketSymbols())
}

func marketSymbols() string {
	out := ""
	for i, m := range markets {
		if i > 0 {
			out += ", "
		}
		out += m.symbol
	}
	return out
}

func pack(a abi.ABI, name string, args ...any) ([]byte, error) {
	data, err := a.Pack(name, args...)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode "+name+" call", err)
	}
	return data, nil
}
