package wallet

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/tonyfindev/BinkOS-sub002/internal/chain"
	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/logging"
)

type Options struct {
	PollInterval   time.Duration
	ReceiptTimeout time.Duration
	GasMultiplier  float64
}

func DefaultOptions() Options {
	return Options{
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
		GasMultiplier:  1.2,
	}
}

// EVMWallet signs and submits EIP-1559 transactions on the EVM networks.
// Solana submission is a host concern; asking this wallet for it errors.
type EVMWallet struct {
	signer    Signer
	opts      Options
	log       *slog.Logger
	mu        sync.Mutex
	clients   map[core.NetworkID]*ethclient.Client
	overrides map[core.NetworkID]string
}

func NewEVMWallet(signer Signer, rpcOverrides map[core.NetworkID]string, opts Options) *EVMWallet {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = 2 * time.Minute
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	return &EVMWallet{
		signer:    signer,
		opts:      opts,
		log:       logging.Named("wallet.evm"),
		clients:   make(map[core.NetworkID]*ethclient.Client),
		overrides: rpcOverrides,
	}
}

func (w *EVMWallet) Address(network core.NetworkID) (string, error) {
	n, err := core.NetworkByID(network)
	if err != nil {
		return "", err
	}
	if !n.IsEVM() {
		return "", binkerr.Newf(binkerr.CodeWalletUnavailable, "no %s signer configured", network)
	}
	if w.signer == nil {
		return "", binkerr.New(binkerr.CodeWalletUnavailable, "wallet has no signer")
	}
	return w.signer.Address().Hex(), nil
}

func (w *EVMWallet) client(ctx context.Context, network core.NetworkID) (*ethclient.Client, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if client, ok := w.clients[network]; ok {
		return client, nil
	}
	url, err := chain.ResolveRPCURL(w.overrides[network], network)
	if err != nil {
		return nil, err
	}
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "connect rpc", err)
	}
	w.clients[network] = client
	return client, nil
}

// Close releases every dialed client.
func (w *EVMWallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for id, client := range w.clients {
		client.Close()
		delete(w.clients, id)
	}
}

func (w *EVMWallet) SignAndSend(ctx context.Context, tx core.Transaction) (Receipt, error) {
	chainID, err := core.EVMChainID(tx.Network)
	if err != nil {
		return nil, err
	}
	if w.signer == nil {
		return nil, binkerr.New(binkerr.CodeWalletUnavailable, "wallet has no signer")
	}
	if !common.IsHexAddress(tx.To) {
		return nil, binkerr.Newf(binkerr.CodeValidation, "invalid transaction target %q", tx.To)
	}
	client, err := w.client(ctx, tx.Network)
	if err != nil {
		return nil, err
	}

	target := common.HexToAddress(tx.To)
	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}
	from := w.signer.Address()
	msg := ethereum.CallMsg{From: from, To: &target, Value: value, Data: tx.Data}

	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		estimated, err := client.EstimateGas(ctx, msg)
		if err != nil {
			return nil, binkerr.Wrap(binkerr.CodeTxFailed, "estimate gas", err)
		}
		gasLimit = uint64(float64(estimated) * w.opts.GasMultiplier)
	}

	tipCap, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000) // 2 gwei fallback
	}
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeUnavailable, "fetch nonce", err)
	}

	unsigned := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      tx.Data,
	})
	signed, err := w.signer.SignTx(chainID, unsigned)
	if err != nil {
		return nil, err
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return nil, binkerr.Wrap(binkerr.CodeTxFailed, "broadcast transaction", err)
	}

	w.log.Info("transaction submitted",
		slog.String("network", tx.Network.String()),
		slog.String("hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce))

	return &evmReceipt{
		hash:         signed.Hash(),
		client:       client,
		log:          w.log,
		pollInterval: w.opts.PollInterval,
		timeout:      w.opts.ReceiptTimeout,
	}, nil
}

type evmReceipt struct {
	hash         common.Hash
	client       *ethclient.Client
	log          *slog.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

func (r *evmReceipt) Hash() string { return r.hash.Hex() }

func (r *evmReceipt) Wait(ctx context.Context) (*Confirmation, error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := r.client.TransactionReceipt(waitCtx, r.hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return nil, binkerr.Newf(binkerr.CodeTxFailed, "transaction %s reverted on-chain", r.hash.Hex())
			}
			conf := &Confirmation{
				Hash:        r.hash.Hex(),
				BlockNumber: receipt.BlockNumber.Uint64(),
				GasUsed:     receipt.GasUsed,
				Status:      "success",
			}
			r.log.Info("transaction confirmed",
				slog.String("hash", conf.Hash),
				slog.Uint64("block", conf.BlockNumber),
				slog.Uint64("gasUsed", conf.GasUsed))
			return conf, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			// Transient polling failures are retried until the timeout.
			r.log.Debug("receipt poll failed", slog.String("error", err.Error()))
		}
		select {
		case <-waitCtx.Done():
			return nil, binkerr.Wrap(binkerr.CodeTxFailed, "timed out waiting for receipt", waitCtx.Err())
		case <-ticker.C:
		}
	}
}
