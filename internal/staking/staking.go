// Package staking is the earn operation family: stake/unstake for liquid
// staking protocols and supply/withdraw for lending markets, behind one tool.
package staking

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// DefaultQuoteTTL bounds how long an issued staking quote stays consumable.
const DefaultQuoteTTL = 5 * time.Minute

// Action is what the user wants done with the asset. Protocols serve a
// subset and reject the rest with a structural error at quote time.
type Action string

const (
	ActionStake    Action = "stake"
	ActionUnstake  Action = "unstake"
	ActionSupply   Action = "supply"
	ActionWithdraw Action = "withdraw"
)

// ParseAction normalizes and validates the action argument.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionStake, ActionUnstake, ActionSupply, ActionWithdraw:
		return a, nil
	default:
		return "", binkerr.Newf(binkerr.CodeValidation,
			"action must be one of stake, unstake, supply, withdraw, not %q", s)
	}
}

// Deposits reports whether the action moves assets from the wallet into the
// protocol.
func (a Action) Deposits() bool {
	return a == ActionStake || a == ActionSupply
}

// Params is a fully validated staking request. Amount is in base units of
// Token: for deposits the asset leaving the wallet, for exits the asset the
// wallet wants back.
type Params struct {
	Network core.NetworkID
	Token   string
	Amount  *big.Int
	Action  Action
	Wallet  string
	// Provider pins the request to one protocol; empty means fan out.
	Provider string
}

// Provider is one staking or lending protocol. Quote validates support,
// prices the request and returns a record carrying a prebuilt transaction.
type Provider interface {
	Name() string
	Networks() []core.NetworkID
	Quote(ctx context.Context, p Params) (*Quote, error)
}
