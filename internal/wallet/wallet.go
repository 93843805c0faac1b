package wallet

import (
	"context"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
)

// Wallet signs and submits the transaction descriptors providers build. The
// agent owns exactly one; tools receive it as a collaborator.
type Wallet interface {
	// Address returns the wallet address for the network, so one Wallet can
	// front different key types per chain family.
	Address(network core.NetworkID) (string, error)
	SignAndSend(ctx context.Context, tx core.Transaction) (Receipt, error)
}

// Receipt tracks one submitted transaction.
type Receipt interface {
	Hash() string
	// Wait blocks until the transaction is confirmed or ctx/timeout ends.
	Wait(ctx context.Context) (*Confirmation, error)
}

type Confirmation struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"blockNumber"`
	GasUsed     uint64 `json:"gasUsed"`
	Status      string `json:"status"`
}
