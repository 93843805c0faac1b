// Package bridge is the cross-network transfer family: route quotes between
// networks and execute the source-side transaction.
package bridge

import (
	"context"
	"math/big"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

// DefaultQuoteTTL bounds how long an issued bridge quote stays consumable.
// Bridge routes reprice slower than swaps, so the window is wider.
const DefaultQuoteTTL = 10 * time.Minute

// Params is a fully validated bridge request. Amount is in base units of
// TokenIn on the source network; Recipient is the destination-network
// address receiving the funds.
type Params struct {
	FromNetwork core.NetworkID
	ToNetwork   core.NetworkID
	TokenIn     string
	TokenOut    string
	Amount      *big.Int
	Wallet      string
	Recipient   string
	// Provider pins the route to one bridge; empty means fan out.
	Provider string
}

// Provider is one bridge protocol. Networks reports the source networks it
// can depart from; destination support surfaces as a quote-time error.
type Provider interface {
	Name() string
	Networks() []core.NetworkID
	Quote(ctx context.Context, p Params) (*Quote, error)
}
