package staking

import (
	"math/big"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
)

// Quote is one protocol's priced offer. Token is the asset the wallet spends
// (the deposit asset, or the receipt token burned on exit); OutputToken is
// what the wallet receives back.
type Quote struct {
	quotes.Meta

	Action       Action     `json:"action"`
	Token        core.Token `json:"token"`
	OutputToken  core.Token `json:"outputToken"`
	AmountIn     *big.Int   `json:"amountIn"`
	AmountOut    *big.Int   `json:"amountOut"`
	APRBps       int64      `json:"aprBps,omitempty"`
	EstimatedGas uint64     `json:"estimatedGas,omitempty"`
	// Spender is the contract that must be approved for Token before the
	// transaction can settle; empty when no approval applies, e.g. when a
	// market contract burns its own receipt token.
	Spender string `json:"spender,omitempty"`
}

// Tokens lists the balances the operation can change.
func (q *Quote) Tokens() []string {
	return []string{q.Token.Address, q.OutputToken.Address}
}

// Best picks the offer demanding the least input for the requested outcome.
// Ties keep the earliest candidate.
func Best(candidates []*Quote) *Quote {
	var best *Quote
	for _, q := range candidates {
		if q == nil || q.AmountIn == nil {
			continue
		}
		if best == nil || q.AmountIn.Cmp(best.AmountIn) < 0 {
			best = q
		}
	}
	return best
}
