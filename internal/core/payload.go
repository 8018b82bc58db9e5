package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Payload is the decoded body of one inbound message. Values keep their
// JSON shapes so opaque fields (sdp, iceCandidate) relay unchanged.
type Payload map[string]any

// DecodePayload parses raw JSON; empty or null input yields an empty payload.
func DecodePayload(raw []byte) (Payload, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return Payload{}, nil
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

func (p Payload) Value(key string) any {
	if p == nil {
		return nil
	}
	return p[key]
}

// String returns the value of key when it is a string, or a number formatted
// without exponent; anything else yields "".
func (p Payload) String(key string) string {
	switch v := p.Value(key).(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return fmt.Sprintf("%.0f", v)
		}
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func (p Payload) Bool(key string) bool {
	b, _ := p.Value(key).(bool)
	return b
}

// Present reports whether key holds a non-empty value. Missing keys, null,
// "", false, 0 and NaN are all empty.
func (p Payload) Present(key string) bool {
	v, ok := p[key]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case int:
		return t != 0
	default:
		return true
	}
}
