package wallet

import (
	"crypto/ecdsa"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

const (
	EnvPrivateKey       = "BINK_WALLET_PRIVATE_KEY"
	EnvPrivateKeyFile   = "BINK_WALLET_PRIVATE_KEY_FILE"
	EnvKeystorePath     = "BINK_WALLET_KEYSTORE_PATH"
	EnvKeystorePassword = "BINK_WALLET_KEYSTORE_PASSWORD"
)

// Signer signs EVM transactions for one key.
type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

type LocalSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

func (s *LocalSigner) Address() common.Address { return s.address }

func (s *LocalSigner) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if s == nil || s.privateKey == nil {
		return nil, binkerr.New(binkerr.CodeWalletUnavailable, "signer is not initialized")
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeWalletUnavailable, "sign transaction", err)
	}
	return signed, nil
}

// NewSignerFromEnv loads the key from BINK_WALLET_PRIVATE_KEY, then the key
// file, then the keystore, in that order.
func NewSignerFromEnv() (*LocalSigner, error) {
	if raw := strings.TrimSpace(os.Getenv(EnvPrivateKey)); raw != "" {
		return NewSignerFromHex(raw)
	}
	if path := strings.TrimSpace(os.Getenv(EnvPrivateKeyFile)); path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, binkerr.Wrap(binkerr.CodeWalletUnavailable, "read private key file", err)
		}
		return NewSignerFromHex(string(buf))
	}
	if path := strings.TrimSpace(os.Getenv(EnvKeystorePath)); path != "" {
		password := strings.TrimSpace(os.Getenv(EnvKeystorePassword))
		if password == "" {
			return nil, binkerr.Newf(binkerr.CodeWalletUnavailable, "%s is required with %s", EnvKeystorePassword, EnvKeystorePath)
		}
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, binkerr.Wrap(binkerr.CodeWalletUnavailable, "read keystore file", err)
		}
		key, err := keystore.DecryptKey(buf, password)
		if err != nil {
			return nil, binkerr.Wrap(binkerr.CodeWalletUnavailable, "decrypt keystore", err)
		}
		return newLocalSigner(key.PrivateKey)
	}
	return nil, binkerr.Newf(binkerr.CodeWalletUnavailable,
		"missing signing key: set %s, %s or %s", EnvPrivateKey, EnvPrivateKeyFile, EnvKeystorePath)
}

func NewSignerFromHex(raw string) (*LocalSigner, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if clean == "" {
		return nil, binkerr.New(binkerr.CodeWalletUnavailable, "empty private key")
	}
	pk, err := crypto.HexToECDSA(clean)
	if err != nil {
		return nil, binkerr.Wrap(binkerr.CodeWalletUnavailable, "parse private key", err)
	}
	return newLocalSigner(pk)
}

func newLocalSigner(pk *ecdsa.PrivateKey) (*LocalSigner, error) {
	pub, ok := pk.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, binkerr.New(binkerr.CodeWalletUnavailable, "invalid ECDSA public key")
	}
	return &LocalSigner{privateKey: pk, address: crypto.PubkeyToAddress(*pub)}, nil
}
