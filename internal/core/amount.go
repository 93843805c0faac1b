package core

import (
	"math/big"
	"regexp"
	"strings"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ParseBaseUnits parses a non-negative integer base-unit string.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, binkerr.Newf(binkerr.CodeValidation, "amount must be a non-negative integer string, got %q", s)
	}
	return n, nil
}

// ToBaseUnits converts a decimal amount string into base units exactly.
// Precision beyond the token's decimals is an error, not a rounding.
func ToBaseUnits(decimal string, decimals uint8) (*big.Int, error) {
	decimal = strings.TrimSpace(decimal)
	if decimal == "" {
		return nil, binkerr.New(binkerr.CodeValidation, "amount is required")
	}
	if !decimalPattern.MatchString(decimal) {
		return nil, binkerr.Newf(binkerr.CodeValidation, "amount must be in decimal form like 1.23, got %q", decimal)
	}

	parts := strings.SplitN(decimal, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if len(fracPart) > int(decimals) {
		return nil, binkerr.Newf(binkerr.CodeValidation, "decimal precision exceeds token decimals (%d)", decimals)
	}

	fracPart += strings.Repeat("0", int(decimals)-len(fracPart))
	combined := strings.TrimLeft(intPart+fracPart, "0")
	if combined == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, binkerr.Newf(binkerr.CodeValidation, "invalid decimal amount %q", decimal)
	}
	return n, nil
}

// FormatUnits renders base units as a trimmed decimal string.
func FormatUnits(n *big.Int, decimals uint8) string {
	if n == nil {
		return "0"
	}
	s := new(big.Int).Abs(n).String()
	neg := n.Sign() < 0

	if decimals == 0 {
		if neg {
			return "-" + s
		}
		return s
	}
	if len(s) <= int(decimals) {
		s = strings.Repeat("0", int(decimals)-len(s)+1) + s
	}
	intPart := s[:len(s)-int(decimals)]
	fracPart := strings.TrimRight(s[len(s)-int(decimals):], "0")
	out := intPart
	if fracPart != "" {
		out += "." + fracPart
	}
	if neg && out != "0" {
		return "-" + out
	}
	return out
}
