package bridge

import (
	"math/big"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
)

// Quote is one bridge's priced route. Meta.Network is the source network
// (where the transaction executes and balances change); ToNetwork is where
// the funds arrive.
type Quote struct {
	quotes.Meta

	ToNetwork    core.NetworkID `json:"toNetwork"`
	TokenIn      core.Token     `json:"tokenIn"`
	TokenOut     core.Token     `json:"tokenOut"`
	AmountIn     *big.Int       `json:"amountIn"`
	AmountOut    *big.Int       `json:"amountOut"`
	Recipient    string         `json:"recipient"`
	Fee          *big.Int       `json:"fee,omitempty"`
	EstimatedGas uint64         `json:"estimatedGas,omitempty"`
	// Spender is the contract that must be approved for TokenIn before the
	// transaction can settle; empty when no approval applies.
	Spender string `json:"spender,omitempty"`
}

// Tokens lists the source-network balances the bridge can change. The
// destination balance lives on another network and is not cached under the
// source network's keys.
func (q *Quote) Tokens() []string {
	return []string{q.TokenIn.Address}
}

// Best picks the route delivering the most on the destination network.
// Ties keep the earliest candidate.
func Best(candidates []*Quote) *Quote {
	var best *Quote
	for _, q := range candidates {
		if q == nil || q.AmountOut == nil {
			continue
		}
		if best == nil || q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}
	return best
}
