package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// On/off string encoding used on state topics and in command payloads.
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindString is the zero kind; it also carries non-scalar JSON as raw text.
	KindString Kind = iota
	KindBool
	KindNumber
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	default:
		return "string"
	}
}

// Value is a data-point value: exactly one of bool, number or string.
//
// Registry payloads sometimes carry objects or arrays; those decode to a
// string Value holding the compact JSON text, so every value still has a
// canonical string form and a native representation for persistence.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// ParseOnOff maps "ON"/"OFF" (any case) to a boolean Value.
// Any other text is returned unchanged as a string Value.
func ParseOnOff(s string) Value {
	switch {
	case strings.EqualFold(s, StateOn):
		return Bool(true)
	case strings.EqualFold(s, StateOff):
		return Bool(false)
	default:
		return String(s)
	}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the boolean and true if v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsNumber returns the number and true if v is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsString returns the string and true if v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// Format renders v for a state topic: booleans as ON/OFF, numbers in their
// shortest decimal form, strings verbatim.
func (v Value) Format() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return StateOn
		}
		return StateOff
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return v.s
	}
}

// String implements fmt.Stringer.
func (v Value) String() string { return v.Format() }

// Native returns v as a bool, float64 or string.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	default:
		return v.s
	}
}

// Equal reports whether v and o hold the same variant and value.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	default:
		return v.s == o.s
	}
}

// MarshalJSON encodes v as a JSON bool, number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// UnmarshalJSON decodes a JSON scalar into v. Objects and arrays are kept as
// their compact JSON text; null becomes the empty string.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("decoding value: empty input")
	}

	switch data[0] {
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("decoding bool value: %w", err)
		}
		*v = Bool(b)
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding string value: %w", err)
		}
		*v = String(s)
	case 'n':
		*v = String("")
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return fmt.Errorf("decoding raw value: %w", err)
		}
		*v = String(buf.String())
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("decoding number value: %w", err)
		}
		*v = Number(n)
	}
	return nil
}

// DataPoint is one code/value pair as exchanged with the registry.
type DataPoint struct {
	Code  string `json:"code"`
	Value Value  `json:"value"`
}
