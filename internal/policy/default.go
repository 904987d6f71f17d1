package policy

import (
	"bytes"
	_ "embed"
	"fmt"
)

//go:embed default.yaml
var defaultPolicy []byte

// Default returns the built-in rights-requirement table covering the
// standard file-like operations. It goes through the same loader as
// external documents, so the embedded file is schema-checked too.
func Default() *Table {
	table, err := Load(bytes.NewReader(defaultPolicy))
	if err != nil {
		panic(fmt.Sprintf("policy: embedded default table is invalid: %v", err))
	}
	return table
}
