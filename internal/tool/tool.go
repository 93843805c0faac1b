package tool

import (
	"context"
	"encoding/json"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
)

// ProgressFunc receives phase updates while a tool runs. percent is 0-100 and
// non-decreasing within one execution.
type ProgressFunc func(percent int, message string)

// NopProgress discards updates.
func NopProgress(int, string) {}

// EnsureProgress lets tools call report unconditionally.
func EnsureProgress(report ProgressFunc) ProgressFunc {
	if report == nil {
		return NopProgress
	}
	return report
}

// Tool is one operation the language model can invoke. Execute returns a JSON
// string; domain failures are encoded in-band as {"status":"error"} payloads
// so the model always gets something it can read. The error return is for
// context cancellation and other conditions the caller must handle itself.
type Tool interface {
	Name() string
	Description() string
	Schema() schema.Object
	Execute(ctx context.Context, args json.RawMessage, report ProgressFunc) (string, error)
}

// Error renders the standard in-band failure payload.
func Error(message string) string {
	data, _ := json.Marshal(map[string]string{"status": "error", "message": message})
	return string(data)
}

// ErrorFrom renders err as a failure payload. Typed errors keep their stable
// code in-band so callers can map payloads back to exit codes.
func ErrorFrom(err error) string {
	if err == nil {
		return Error("unknown error")
	}
	if typed, ok := binkerr.As(err); ok {
		data, _ := json.Marshal(map[string]any{
			"status":  "error",
			"code":    int(typed.Code),
			"message": typed.Error(),
		})
		return string(data)
	}
	return Error(err.Error())
}

// Success renders a success payload from the given fields; the status field
// is always forced to "success".
func Success(fields map[string]any) string {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["status"] = "success"
	data, err := json.Marshal(fields)
	if err != nil {
		return Error("encode result: " + err.Error())
	}
	return string(data)
}
