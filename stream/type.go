package stream

import (
	"fmt"
	"strings"
)

// Type is the logical kind of a stream. Values are distinct bits so that a
// TypeMask can describe the set of types a graph accepts.
type Type uint8

const (
	Serial  Type = 1
	Struct  Type = 2
	Numeric Type = 4
	String  Type = 8
)

// Types lists every stream type in bit order.
var Types = [...]Type{Serial, Struct, Numeric, String}

func (t Type) String() string {
	switch t {
	case Serial:
		return "serial"
	case Struct:
		return "struct"
	case Numeric:
		return "numeric"
	case String:
		return "string"
	case 0:
		return "any"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Valid reports whether t is exactly one of the four stream types.
func (t Type) Valid() bool {
	return t == Serial || t == Struct || t == Numeric || t == String
}

// ParseType parses a type name as printed by Type.String.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "serial":
		return Serial, nil
	case "struct":
		return Struct, nil
	case "numeric":
		return Numeric, nil
	case "string":
		return String, nil
	default:
		return 0, fmt.Errorf("stream: unknown type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("stream: cannot marshal %s", t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	v, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// TypeMask is a set of accepted stream types.
type TypeMask uint8

const (
	MaskNone TypeMask = 0
	MaskAny  TypeMask = TypeMask(Serial | Struct | Numeric | String)
)

// MaskOf builds a mask accepting the given types.
func MaskOf(types ...Type) TypeMask {
	var m TypeMask
	for _, t := range types {
		m |= TypeMask(t)
	}
	return m
}

// Accepts reports whether t is in the mask.
func (m TypeMask) Accepts(t Type) bool {
	return uint8(m)&uint8(t) != 0
}

// Widen returns the mask extended with the types that a serial input
// converts into without loss: a serial-accepting graph also accepts struct
// and numeric streams.
func (m TypeMask) Widen() TypeMask {
	if m.Accepts(Serial) {
		return m | TypeMask(Struct|Numeric)
	}
	return m
}

func (m TypeMask) String() string {
	if m == MaskNone {
		return "none"
	}
	var parts []string
	for _, t := range Types {
		if m.Accepts(t) {
			parts = append(parts, t.String())
		}
	}
	return strings.Join(parts, "|")
}
