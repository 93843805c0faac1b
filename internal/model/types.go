package model

import (
	"time"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

const EnvelopeVersion = "v1"

// Envelope is the uniform response shape shared by the CLI and the HTTP API.
// Data carries the tool's decoded payload on success; Error is set otherwise.
type Envelope struct {
	Version string       `json:"version"`
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorBody   `json:"error"`
	Meta    EnvelopeMeta `json:"meta"`
}

type ErrorBody struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

type EnvelopeMeta struct {
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
	Tool       string    `json:"tool"`
	DurationMS int64     `json:"duration_ms"`
}

// ErrorTypeForCode maps stable error codes to the envelope's type slug.
func ErrorTypeForCode(code binkerr.Code) string {
	switch code {
	case binkerr.CodeUsage:
		return "usage_error"
	case binkerr.CodeAuth:
		return "auth_error"
	case binkerr.CodeRateLimited:
		return "rate_limited"
	case binkerr.CodeUnavailable:
		return "provider_unavailable"
	case binkerr.CodeNetworkUnsupported:
		return "network_unsupported"
	case binkerr.CodeProviderUnsupported:
		return "provider_unsupported"
	case binkerr.CodeValidation:
		return "validation_error"
	case binkerr.CodeBlocked:
		return "tool_blocked"
	case binkerr.CodeInsufficientBalance:
		return "insufficient_balance"
	case binkerr.CodeApprovalRequired:
		return "approval_required"
	case binkerr.CodeQuoteExpired:
		return "quote_expired"
	case binkerr.CodeNoValidQuotes:
		return "no_valid_quotes"
	case binkerr.CodeTxFailed:
		return "tx_failed"
	case binkerr.CodeWalletUnavailable:
		return "wallet_unavailable"
	case binkerr.CodeStorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal_error"
	}
}
