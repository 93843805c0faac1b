package core

import (
	"math/big"
	"testing"
)

func TestToBaseUnits(t *testing.T) {
	n, err := ToBaseUnits("1.23", 6)
	if err != nil {
		t.Fatalf("ToBaseUnits failed: %v", err)
	}
	if n.String() != "1230000" {
		t.Fatalf("unexpected base units: %s", n.String())
	}

	n, err = ToBaseUnits("0.000001", 6)
	if err != nil {
		t.Fatalf("ToBaseUnits failed: %v", err)
	}
	if n.String() != "1" {
		t.Fatalf("unexpected base units: %s", n.String())
	}

	if _, err := ToBaseUnits("0.0000001", 6); err == nil {
		t.Fatal("expected precision error")
	}
	if _, err := ToBaseUnits("1,5", 6); err == nil {
		t.Fatal("expected format error")
	}
	if _, err := ToBaseUnits("-1", 6); err == nil {
		t.Fatal("expected format error for negative input")
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals uint8
		want     string
	}{
		{"1230000", 6, "1.23"},
		{"1", 6, "0.000001"},
		{"0", 6, "0"},
		{"1000000", 6, "1"},
		{"100000000000000", 18, "0.0001"},
	}
	for _, tc := range cases {
		n, _ := new(big.Int).SetString(tc.in, 10)
		if got := FormatUnits(n, tc.decimals); got != tc.want {
			t.Fatalf("FormatUnits(%s, %d) = %s, want %s", tc.in, tc.decimals, got, tc.want)
		}
	}
}

func TestParseBaseUnits(t *testing.T) {
	n, err := ParseBaseUnits("42")
	if err != nil || n.Int64() != 42 {
		t.Fatalf("ParseBaseUnits failed: %v %v", n, err)
	}
	if _, err := ParseBaseUnits("-42"); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := ParseBaseUnits("1.5"); err == nil {
		t.Fatal("expected error for decimal input")
	}
}
