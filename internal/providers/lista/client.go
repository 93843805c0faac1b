// Package lista builds stake and unstake transactions for Lista liquid
// staking on BNB Chain. Deposits are payable calls on the stake manager;
// withdrawals burn slisBNB through the same contract.
package lista

import (
	"context"
	"math/big"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
	"github.com/tonyfindev/BinkOS-sub002/internal/staking"
)

const (
	stakeManager = "0x1adb950d8bb3da4be104211d5ab038628e477fe6"
	slisBNBAddr  = "0xb0b84d294e0c75a6abe60171b70edeb2efd14a1b"
)

var managerABI = chain.MustABI(chain.ListaStakeManagerABI)

func receiptToken() core.Token {
	return core.Token{Address: slisBNBAddr, Symbol: "slisBNB", Decimals: 18}
}

// Client serves the stake/unstake half of the staking action set. Amounts
// are quoted 1:1 between BNB and slisBNB; the realized rate settles on
// chain.
type Client struct {
	quoteTTL time.Duration
	now      func() time.Time
}

func New() *Client {
	return &Client{quoteTTL: staking.DefaultQuoteTTL, now: time.Now}
}

// SetQuoteTTL overrides how long issued quotes stay consumable.
func (c *Client) SetQuoteTTL(d time.Duration) {
	if d > 0 {
		c.quoteTTL = d
	}
}

func (c *Client) Name() string { return "lista" }

func (c *Client) Networks() []core.NetworkID {
	return []core.NetworkID{core.NetworkBNB}
}

func (c *Client) Quote(ctx context.Context, p staking.Params) (*staking.Quote, error) {
	if p.Network != core.NetworkBNB {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported,
			"lista only serves bnb, not %s", p.Network)
	}
	if p.Action != staking.ActionStake && p.Action != staking.ActionUnstake {
		return nil, binkerr.New(binkerr.CodeValidation, "lista supports stake and unstake")
	}

	native, err := core.NativeToken(p.Network)
	if err != nil {
		return nil, err
	}
	isNative := core.IsNativeAddress(p.Network, p.Token)
	isReceipt := core.AddressesEqual(p.Network, p.Token, slisBNBAddr)
	if !isNative && !isReceipt {
		return nil, binkerr.New(binkerr.CodeValidation, "lista only accepts native BNB")
	}

	meta := quotes.NewMeta(c.Name(), p.Network, p.Wallet, c.now(), c.quoteTTL)
	q := &staking.Quote{
		Meta:      meta,
		Action:    p.Action,
		AmountIn:  new(big.Int).Set(p.Amount),
		AmountOut: new(big.Int).Set(p.Amount),
	}

	if p.Action == staking.ActionStake {
		if !isNative {
			return nil, binkerr.New(binkerr.CodeValidation, "lista only accepts native BNB")
		}
		data, err := pack("deposit")
		if err != nil {
			return nil, err
		}
		q.Token, q.OutputToken = native, receiptToken()
		q.Tx = core.Transaction{
			Network: p.Network,
			To:      stakeManager,
			Data:    data,
			Value:   new(big.Int).Set(p.Amount),
		}
		return q, nil
	}

	// Unstake burns slisBNB through the manager, which must be approved to
	// pull it. The amount is taken as slisBNB whichever alias was passed.
	data, err := pack("requestWithdraw", p.Amount)
	if err != nil {
		return nil, err
	}
	q.Token, q.OutputToken = receiptToken(), native
	q.Tx = core.Transaction{
		Network: p.Network,
		To:      stakeManager,
		Data:    data,
		Value:   new(big.Int),
	}
	q.Spender = stakeManager
	return q, nil
}

func pack(name string, args ...any) ([]byte, error) {
	data, err := managerABI.Pack(name, args...)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode "+name+" call", err)
	}
	return data, nil
}
