package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// Reader is the read-only chain access every cache and provider goes through.
// Implementations must be safe for concurrent use.
type Reader interface {
	TokenMetadata(ctx context.Context, network core.NetworkID, address string) (core.Token, error)
	TokenBalance(ctx context.Context, network core.NetworkID, tokenAddr, owner string) (*big.Int, error)
	NativeBalance(ctx context.Context, network core.NetworkID, owner string) (*big.Int, error)
	Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error)
}

// MustABI parses an embedded ABI fragment, panicking on malformed input.
// Only call it with the compile-time constants from abis.go.
func MustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse embedded ABI: %v", err))
	}
	return parsed
}

// Router dispatches reads to the per-family reader for the network.
type Router struct {
	evm    Reader
	solana Reader
}

func NewRouter(evm, solana Reader) *Router {
	return &Router{evm: evm, solana: solana}
}

func (r *Router) pick(network core.NetworkID) (Reader, error) {
	n, err := core.NetworkByID(network)
	if err != nil {
		return nil, err
	}
	if n.IsEVM() {
		if r.evm == nil {
			return nil, binkerr.Newf(binkerr.CodeUnavailable, "no evm reader configured for network %s", network)
		}
		return r.evm, nil
	}
	if r.solana == nil {
		return nil, binkerr.Newf(binkerr.CodeUnavailable, "no solana reader configured")
	}
	return r.solana, nil
}

func (r *Router) TokenMetadata(ctx context.Context, network core.NetworkID, address string) (core.Token, error) {
	reader, err := r.pick(network)
	if err != nil {
		return core.Token{}, err
	}
	return reader.TokenMetadata(ctx, network, address)
}

func (r *Router) TokenBalance(ctx context.Context, network core.NetworkID, tokenAddr, owner string) (*big.Int, error) {
	reader, err := r.pick(network)
	if err != nil {
		return nil, err
	}
	return reader.TokenBalance(ctx, network, tokenAddr, owner)
}

func (r *Router) NativeBalance(ctx context.Context, network core.NetworkID, owner string) (*big.Int, error) {
	reader, err := r.pick(network)
	if err != nil {
		return nil, err
	}
	return reader.NativeBalance(ctx, network, owner)
}

func (r *Router) Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error) {
	reader, err := r.pick(network)
	if err != nil {
		return nil, err
	}
	return reader.Allowance(ctx, network, tokenAddr, owner, spender)
}
