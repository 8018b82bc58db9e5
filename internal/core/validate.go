package core

import (
	"fmt"
	"strings"
)

// ValidatePayload checks that every prop is present in p and reports the
// missing ones as a SignalingError carrying code.
func ValidatePayload(p Payload, code ErrorCode, props ...string) error {
	var invalid []string
	for _, prop := range props {
		if !p.Present(prop) {
			invalid = append(invalid, fmt.Sprintf("%s: %v", prop, p.Value(prop)))
		}
	}
	if len(invalid) == 0 {
		return nil
	}
	return NewSignalingError(code, "Invalid payload. %s", strings.Join(invalid, ", "))
}
