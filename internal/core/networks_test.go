package core

import (
	"strings"
	"testing"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

func TestNetworkByID(t *testing.T) {
	n, err := NetworkByID("bnb")
	if err != nil {
		t.Fatalf("NetworkByID failed: %v", err)
	}
	if n.ChainID != 56 || n.NativeSymbol != "BNB" {
		t.Fatalf("unexpected network: %+v", n)
	}

	if _, err := NetworkByID("  Ethereum "); err != nil {
		t.Fatalf("expected case/space-insensitive lookup, got %v", err)
	}

	_, err = NetworkByID("dogecoin")
	if err == nil {
		t.Fatal("expected error for unknown network")
	}
	typed, ok := binkerr.As(err)
	if !ok || typed.Code != binkerr.CodeNetworkUnsupported {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(typed.Message, "bnb") || !strings.Contains(typed.Message, "solana") {
		t.Fatalf("error should list supported networks: %s", typed.Message)
	}
}

func TestIsNativeAddress(t *testing.T) {
	if !IsNativeAddress(NetworkBNB, EVMNativeSentinel) {
		t.Fatal("sentinel should be native on bnb")
	}
	if !IsNativeAddress(NetworkEthereum, EVMZeroAddress) {
		t.Fatal("zero address should be a native alias on evm")
	}
	if !IsNativeAddress(NetworkBNB, strings.ToLower(EVMNativeSentinel)) {
		t.Fatal("native detection should be case-insensitive on evm")
	}
	if IsNativeAddress(NetworkBNB, "0x55d398326f99059fF775485246999027B3197955") {
		t.Fatal("usdt is not native")
	}
	if !IsNativeAddress(NetworkSolana, SolanaNativeMint) {
		t.Fatal("wrapped mint should be native on solana")
	}
	if IsNativeAddress(NetworkSolana, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v") {
		t.Fatal("usdc mint is not native")
	}
}

func TestValidateAddress(t *testing.T) {
	if err := ValidateAddress(NetworkBNB, "0x55d398326f99059fF775485246999027B3197955"); err != nil {
		t.Fatalf("valid evm address rejected: %v", err)
	}
	if err := ValidateAddress(NetworkBNB, "0x55d3"); err == nil {
		t.Fatal("short evm address accepted")
	}
	if err := ValidateAddress(NetworkSolana, SolanaNativeMint); err != nil {
		t.Fatalf("valid solana address rejected: %v", err)
	}
	if err := ValidateAddress(NetworkSolana, "0OIl"); err == nil {
		t.Fatal("non-base58 solana address accepted")
	}
}

func TestNativeToken(t *testing.T) {
	tok, err := NativeToken(NetworkSolana)
	if err != nil {
		t.Fatalf("NativeToken failed: %v", err)
	}
	if tok.Symbol != "SOL" || tok.Decimals != 9 || tok.Address != SolanaNativeMint {
		t.Fatalf("unexpected native token: %+v", tok)
	}
}

func TestGasBufferIsCopied(t *testing.T) {
	b := GasBuffer(NetworkBNB)
	b.SetInt64(0)
	if GasBuffer(NetworkBNB).Sign() == 0 {
		t.Fatal("mutating the returned buffer leaked into the table")
	}
}

func TestKnownToken(t *testing.T) {
	tok, ok := KnownToken(NetworkBNB, "usdt")
	if !ok || tok.Decimals != 18 {
		t.Fatalf("usdt lookup failed: %+v %v", tok, ok)
	}
	tok, ok = KnownToken(NetworkBNB, "BNB")
	if !ok || tok.Address != EVMNativeSentinel {
		t.Fatalf("native symbol should resolve to the sentinel: %+v", tok)
	}
	if _, ok := KnownToken(NetworkEthereum, "NOPE"); ok {
		t.Fatal("unknown symbol resolved")
	}
}
