// Package swap is the token-swap operation family: quote providers, the
// best-quote tool and its plugin wiring.
package swap

import (
	"context"
	"math/big"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

// DefaultQuoteTTL bounds how long an issued swap quote stays consumable.
const DefaultQuoteTTL = 5 * time.Minute

// Mode states which side of the swap the amount fixes.
type Mode string

const (
	// ModeInput fixes the amount sold; providers maximize the amount bought.
	ModeInput Mode = "input"
	// ModeOutput fixes the amount bought; providers minimize the amount sold.
	ModeOutput Mode = "output"
)

// Params is a fully validated swap request. Amount is in base units of
// TokenIn for ModeInput and of TokenOut for ModeOutput; addresses are
// normalized for the network.
type Params struct {
	Network     core.NetworkID
	TokenIn     string
	TokenOut    string
	Amount      *big.Int
	Mode        Mode
	SlippageBps int64
	Wallet      string
	// Provider pins the quote to one provider; empty means fan out.
	Provider string
}

// Provider is one swap venue. Quote must validate network support, price the
// request and return a record carrying a prebuilt transaction; it never
// submits anything.
type Provider interface {
	Name() string
	Networks() []core.NetworkID
	Quote(ctx context.Context, p Params) (*Quote, error)
}
