package core

import (
	"math/big"
	"regexp"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// NetworkID identifies one supported chain.
type NetworkID string

const (
	NetworkBNB      NetworkID = "bnb"
	NetworkEthereum NetworkID = "ethereum"
	NetworkSolana   NetworkID = "solana"

	// NetworkAll is the registry wildcard.
	NetworkAll NetworkID = "*"
)

const (
	// EVMNativeSentinel marks the chain's gas currency in provider APIs.
	EVMNativeSentinel = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	// EVMZeroAddress is accepted as a native alias on EVM networks.
	EVMZeroAddress = "0x0000000000000000000000000000000000000000"
	// SolanaNativeMint is the wrapped-SOL mint used as the native marker.
	SolanaNativeMint = "So11111111111111111111111111111111111111112"
)

var solanaAddressPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)

// Network describes one supported chain, including the gas reserve that must
// stay unspent so the wallet can still pay fees after an operation.
type Network struct {
	ID             NetworkID
	Name           string
	CAIP2          string
	ChainID        int64
	NativeSymbol   string
	NativeDecimals uint8
	NativeSentinel string
	gasBuffer      *big.Int
}

func (n Network) IsEVM() bool { return n.ChainID != 0 }

func (n Network) IsSolana() bool { return n.ID == NetworkSolana }

// GasBuffer returns a copy of the per-network native reserve.
func (n Network) GasBuffer() *big.Int { return new(big.Int).Set(n.gasBuffer) }

var networkByID = map[NetworkID]Network{
	NetworkBNB: {
		ID:             NetworkBNB,
		Name:           "BNB Chain",
		CAIP2:          "eip155:56",
		ChainID:        56,
		NativeSymbol:   "BNB",
		NativeDecimals: 18,
		NativeSentinel: EVMNativeSentinel,
		gasBuffer:      big.NewInt(100_000_000_000_000), // 0.0001 BNB
	},
	NetworkEthereum: {
		ID:             NetworkEthereum,
		Name:           "Ethereum",
		CAIP2:          "eip155:1",
		ChainID:        1,
		NativeSymbol:   "ETH",
		NativeDecimals: 18,
		NativeSentinel: EVMNativeSentinel,
		gasBuffer:      big.NewInt(1_000_000_000_000_000), // 0.001 ETH
	},
	NetworkSolana: {
		ID:             NetworkSolana,
		Name:           "Solana",
		CAIP2:          "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		NativeSymbol:   "SOL",
		NativeDecimals: 9,
		NativeSentinel: SolanaNativeMint,
		gasBuffer:      big.NewInt(10_000_000), // lamports
	},
}

// Networks lists every supported network id in stable order.
func Networks() []NetworkID {
	ids := make([]NetworkID, 0, len(networkByID))
	for id := range networkByID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func NetworkByID(id NetworkID) (Network, error) {
	norm := NetworkID(strings.ToLower(strings.TrimSpace(string(id))))
	if n, ok := networkByID[norm]; ok {
		return n, nil
	}
	return Network{}, binkerr.Newf(binkerr.CodeNetworkUnsupported,
		"unsupported network %q (supported: %s)", id, JoinNetworks(Networks()))
}

// JoinNetworks renders ids for error messages and CLI help.
func JoinNetworks(ids []NetworkID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ", ")
}

// GasBuffer returns the native reserve for the network, zero if unknown.
func GasBuffer(id NetworkID) *big.Int {
	if n, ok := networkByID[id]; ok {
		return n.GasBuffer()
	}
	return new(big.Int)
}

// IsNativeAddress reports whether addr is the network's gas-currency marker.
// Sentinels are a per-network property, never a per-provider one.
func IsNativeAddress(id NetworkID, addr string) bool {
	addr = strings.TrimSpace(addr)
	n, ok := networkByID[NetworkID(strings.ToLower(string(id)))]
	if !ok {
		return false
	}
	if n.IsEVM() {
		return strings.EqualFold(addr, EVMNativeSentinel) || strings.EqualFold(addr, EVMZeroAddress)
	}
	return addr == SolanaNativeMint
}

// NativeToken synthesizes the network's gas-currency pseudo-token.
func NativeToken(id NetworkID) (Token, error) {
	n, err := NetworkByID(id)
	if err != nil {
		return Token{}, err
	}
	return Token{Address: n.NativeSentinel, Symbol: n.NativeSymbol, Decimals: n.NativeDecimals}, nil
}

// ValidateAddress checks the token/wallet address shape for the network.
func ValidateAddress(id NetworkID, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return binkerr.New(binkerr.CodeValidation, "address is required")
	}
	n, err := NetworkByID(id)
	if err != nil {
		return err
	}
	if n.IsEVM() {
		if !common.IsHexAddress(addr) {
			return binkerr.Newf(binkerr.CodeValidation, "invalid %s address: %s", n.ID, addr)
		}
		return nil
	}
	if !solanaAddressPattern.MatchString(addr) {
		return binkerr.Newf(binkerr.CodeValidation, "invalid solana address: %s", addr)
	}
	return nil
}

// NormalizeAddress lowercases EVM addresses; Solana addresses are case-sensitive.
func NormalizeAddress(id NetworkID, addr string) string {
	addr = strings.TrimSpace(addr)
	if n, ok := networkByID[NetworkID(strings.ToLower(string(id)))]; ok && n.IsEVM() {
		return strings.ToLower(addr)
	}
	return addr
}

// AddressesEqual compares token addresses with per-network case rules.
func AddressesEqual(id NetworkID, a, b string) bool {
	return NormalizeAddress(id, a) == NormalizeAddress(id, b)
}

func (id NetworkID) String() string { return string(id) }

// CAIP2 returns the network's CAIP-2 identifier, empty if unknown.
func (id NetworkID) CAIP2() string {
	if n, ok := networkByID[id]; ok {
		return n.CAIP2
	}
	return ""
}

// EVMChainID formats the eip155 chain id, e.g. for signer checks.
func EVMChainID(id NetworkID) (*big.Int, error) {
	n, err := NetworkByID(id)
	if err != nil {
		return nil, err
	}
	if !n.IsEVM() {
		return nil, binkerr.Newf(binkerr.CodeNetworkUnsupported, "%s is not an EVM network", id)
	}
	return big.NewInt(n.ChainID), nil
}
