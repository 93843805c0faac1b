package core

import "math/big"

// Transaction is an unsigned transaction descriptor handed from a provider's
// quote to the wallet. On EVM networks To/Data/Value describe a contract call;
// on Solana, Data carries the provider-serialized transaction and To is empty.
// Descriptors live only for the duration of one operation.
type Transaction struct {
	Network  NetworkID `json:"network"`
	To       string    `json:"to,omitempty"`
	Data     []byte    `json:"data,omitempty"`
	Value    *big.Int  `json:"value,omitempty"`
	GasLimit uint64    `json:"gasLimit,omitempty"`
}
