package swap

import (
	"math/big"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	"github.com/tonyfindev/BinkOS-sub002/internal/quotes"
)

// Quote is one provider's priced offer for a swap. Amounts are base units;
// pricing is frozen at issuance, allowance state is not.
type Quote struct {
	quotes.Meta

	TokenIn        core.Token `json:"tokenIn"`
	TokenOut       core.Token `json:"tokenOut"`
	AmountIn       *big.Int   `json:"amountIn"`
	AmountOut      *big.Int   `json:"amountOut"`
	Mode           Mode       `json:"mode"`
	SlippageBps    int64      `json:"slippageBps"`
	PriceImpactBps int64      `json:"priceImpactBps,omitempty"`
	Route          []string   `json:"route,omitempty"`
	EstimatedGas   uint64     `json:"estimatedGas,omitempty"`
	// Spender is the contract that must be approved for TokenIn before the
	// transaction can settle; empty when no approval applies.
	Spender string `json:"spender,omitempty"`
}

// Tokens lists the balances the swap can change.
func (q *Quote) Tokens() []string {
	return []string{q.TokenIn.Address, q.TokenOut.Address}
}

// Best picks the winning quote: highest output for ModeInput, lowest input
// for ModeOutput. Ties keep the earliest candidate, so the caller's ordering
// decides. Returns nil when no candidate is usable.
func Best(mode Mode, candidates []*Quote) *Quote {
	var best *Quote
	for _, q := range candidates {
		if q == nil || q.AmountIn == nil || q.AmountOut == nil {
			continue
		}
		if best == nil {
			best = q
			continue
		}
		if mode == ModeOutput {
			if q.AmountIn.Cmp(best.AmountIn) < 0 {
				best = q
			}
		} else if q.AmountOut.Cmp(best.AmountOut) > 0 {
			best = q
		}
	}
	return best
}
