package chain

import (
	"context"
	"math/big"
	"sync"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

var erc20ABI = MustABI(ERC20ABI)

// PackApprove encodes ERC-20 approve(spender, amount) calldata.
func PackApprove(spender string, amount *big.Int) ([]byte, error) {
	if !common.IsHexAddress(spender) {
		return nil, binkerr.Newf(binkerr.CodeValidation, "invalid spender address: %s", spender)
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, binkerr.New(binkerr.CodeValidation, "approve amount must be non-negative")
	}
	data, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode approve call", err)
	}
	return data, nil
}

// EVMReader serves metadata/balance/allowance reads over JSON-RPC. Clients are
// dialed lazily per network and reused.
type EVMReader struct {
	mu        sync.Mutex
	clients   map[core.NetworkID]*ethclient.Client
	overrides map[core.NetworkID]string
}

func NewEVMReader(rpcOverrides map[core.NetworkID]string) *EVMReader {
	return &EVMReader{
		clients:   make(map[core.NetworkID]*ethclient.Client),
		overrides: rpcOverrides,
	}
}

func (r *EVMReader) client(ctx context.Context, network core.NetworkID) (*ethclient.Client, error) {
	n, err := core.NetworkByID(network)
	if err != nil {
		return nil, err
	}
	if !n.IsEVM() {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported, "%s is not an EVM network", network)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if client, ok := r.clients[n.ID]; ok {
		return client, nil
	}
	url, err := ResolveRPCURL(r.overrides[n.ID], n.ID)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "dial rpc endpoint", err)
	}
	r.clients[n.ID] = client
	return client, nil
}

// Close releases every dialed client.
func (r *EVMReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, client := range r.clients {
		client.Close()
		delete(r.clients, id)
	}
}

func (r *EVMReader) call(ctx context.Context, network core.NetworkID, contract common.Address, method string, args ...any) ([]any, error) {
	client, err := r.client(ctx, network)
	if err != nil {
		return nil, err
	}
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeInternal, "encode "+method+" call", err)
	}
	msg := ethereum.CallMsg{To: &contract, Data: data}
	raw, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, method+" call failed", err)
	}
	if len(raw) == 0 {
		return nil, binkerr.Newf(binkerr.CodeValidation, "%s returned no data; %s is likely not a token contract", method, contract.Hex())
	}
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "decode "+method+" result", err)
	}
	return out, nil
}

func (r *EVMReader) TokenMetadata(ctx context.Context, network core.NetworkID, address string) (core.Token, error) {
	if core.IsNativeAddress(network, address) {
		return core.NativeToken(network)
	}
	if !common.IsHexAddress(address) {
		return core.Token{}, binkerr.Newf(binkerr.CodeValidation, "invalid token address: %s", address)
	}
	contract := common.HexToAddress(address)

	decOut, err := r.call(ctx, network, contract, "decimals")
	if err != nil {
		return core.Token{}, err
	}
	decimals, ok := decOut[0].(uint8)
	if !ok {
		return core.Token{}, binkerr.New(binkerr.CodeUnavailable, "unexpected decimals result type")
	}
	if decimals > 36 {
		return core.Token{}, binkerr.Newf(binkerr.CodeValidation, "implausible token decimals %d for %s", decimals, address)
	}

	symOut, err := r.call(ctx, network, contract, "symbol")
	if err != nil {
		return core.Token{}, err
	}
	symbol, _ := symOut[0].(string)

	return core.Token{
		Address:  core.NormalizeAddress(network, address),
		Symbol:   symbol,
		Decimals: decimals,
	}, nil
}

func (r *EVMReader) TokenBalance(ctx context.Context, network core.NetworkID, tokenAddr, owner string) (*big.Int, error) {
	if core.IsNativeAddress(network, tokenAddr) {
		return r.NativeBalance(ctx, network, owner)
	}
	out, err := r.call(ctx, network, common.HexToAddress(tokenAddr), "balanceOf", common.HexToAddress(owner))
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, binkerr.New(binkerr.CodeUnavailable, "unexpected balanceOf result type")
	}
	return balance, nil
}

func (r *EVMReader) NativeBalance(ctx context.Context, network core.NetworkID, owner string) (*big.Int, error) {
	client, err := r.client(ctx, network)
	if err != nil {
		return nil, err
	}
	balance, err := client.BalanceAt(ctx, common.HexToAddress(owner), nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "read native balance", err)
	}
	return balance, nil
}

func (r *EVMReader) Allowance(ctx context.Context, network core.NetworkID, tokenAddr, owner, spender string) (*big.Int, error) {
	out, err := r.call(ctx, network, common.HexToAddress(tokenAddr), "allowance",
		common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, binkerr.New(binkerr.CodeUnavailable, "unexpected allowance result type")
	}
	return allowance, nil
}
