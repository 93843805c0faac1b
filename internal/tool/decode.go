package tool

import (
	"encoding/json"

	"github.com/tonyfindev/BinkOS-sub002/internal/core"
	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
	"github.com/tonyfindev/BinkOS-sub002/internal/schema"
)

// Decode validates raw against the schema and unmarshals it into dst. Tools
// call this before touching any collaborator.
func Decode(o schema.Object, raw json.RawMessage, dst any) error {
	if err := schema.Validate(o, raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return binkerr.Wrap(binkerr.CodeValidation, "decode arguments", err)
	}
	return nil
}

// NetworkEnum renders network ids for schema enums.
func NetworkEnum(ids []core.NetworkID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
