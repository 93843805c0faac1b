package chain

import (
	"strings"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

// Default public endpoints, used whenever the config does not override them.
var defaultRPCByNetwork = map[core.NetworkID]string{
	core.NetworkBNB:      "https://bsc-dataseed.binance.org",
	core.NetworkEthereum: "https://eth.llamarpc.com",
	core.NetworkSolana:   "https://api.mainnet-beta.solana.com",
}

func DefaultRPCURL(id core.NetworkID) (string, bool) {
	value, ok := defaultRPCByNetwork[id]
	return value, ok
}

func ResolveRPCURL(override string, id core.NetworkID) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := DefaultRPCURL(id); ok {
		return value, nil
	}
	return "", binkerr.Newf(binkerr.CodeNetworkUnsupported, "no rpc endpoint configured for network %s", id)
}
