package core

import (
	"strings"
)

// Token identifies a fungible asset on one network. Immutable once fetched.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// Small bootstrap registry so the CLI and tests can resolve common symbols
// without a chain read. Providers always work from addresses.
var tokenRegistry = map[NetworkID][]Token{
	NetworkBNB: {
		{Symbol: "USDT", Address: "0x55d398326f99059fF775485246999027B3197955", Decimals: 18},
		{Symbol: "USDC", Address: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d", Decimals: 18},
		{Symbol: "BUSD", Address: "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56", Decimals: 18},
		{Symbol: "WBNB", Address: "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", Decimals: 18},
		{Symbol: "CAKE", Address: "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82", Decimals: 18},
	},
	NetworkEthereum: {
		{Symbol: "USDT", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7", Decimals: 6},
		{Symbol: "USDC", Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
		{Symbol: "DAI", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18},
		{Symbol: "WETH", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", Decimals: 18},
	},
	NetworkSolana: {
		{Symbol: "USDC", Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
		{Symbol: "USDT", Address: "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB", Decimals: 6},
		{Symbol: "SOL", Address: SolanaNativeMint, Decimals: 9},
		{Symbol: "JUP", Address: "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN", Decimals: 6},
	},
}

// KnownToken resolves a symbol against the bootstrap registry. The native
// symbol resolves to the network's pseudo-token.
func KnownToken(id NetworkID, symbol string) (Token, bool) {
	symbol = strings.TrimSpace(symbol)
	if n, err := NetworkByID(id); err == nil && strings.EqualFold(symbol, n.NativeSymbol) {
		t, _ := NativeToken(id)
		return t, true
	}
	for _, t := range tokenRegistry[id] {
		if strings.EqualFold(t.Symbol, symbol) {
			return Token{
				Symbol:   strings.ToUpper(t.Symbol),
				Address:  NormalizeAddress(id, t.Address),
				Decimals: t.Decimals,
			}, true
		}
	}
	return Token{}, false
}

// KnownTokens lists the bootstrap registry for a network, normalized.
func KnownTokens(id NetworkID) []Token {
	entries := tokenRegistry[id]
	out := make([]Token, 0, len(entries))
	for _, t := range entries {
		out = append(out, Token{
			Symbol:   strings.ToUpper(t.Symbol),
			Address:  NormalizeAddress(id, t.Address),
			Decimals: t.Decimals,
		})
	}
	return out
}

// LookupByAddress resolves registry metadata for an address, if present.
func LookupByAddress(id NetworkID, address string) (Token, bool) {
	for _, t := range tokenRegistry[id] {
		if AddressesEqual(id, t.Address, address) {
			return Token{
				Symbol:   strings.ToUpper(t.Symbol),
				Address:  NormalizeAddress(id, t.Address),
				Decimals: t.Decimals,
			}, true
		}
	}
	return Token{}, false
}
