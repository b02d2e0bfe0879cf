package param

import (
	"fmt"
	"strconv"
	"strings"
)

// Numeric kind of a parameter
type Kind uint8

const (
	INTEGER8 Kind = iota
	UNSIGNED8
	INTEGER16
	UNSIGNED16
	INTEGER32
	UNSIGNED32
	REAL32
)

var kindNames = map[Kind]string{
	INTEGER8:   "int8",
	UNSIGNED8:  "uint8",
	INTEGER16:  "int16",
	UNSIGNED16: "uint16",
	INTEGER32:  "int32",
	UNSIGNED32: "uint32",
	REAL32:     "float",
}

// CANopen data type codes, as found in EDS files
var kindCodes = map[uint64]Kind{
	0x02: INTEGER8,
	0x03: INTEGER16,
	0x04: INTEGER32,
	0x05: UNSIGNED8,
	0x06: UNSIGNED16,
	0x07: UNSIGNED32,
	0x08: REAL32,
}

func (k Kind) String() string {
	name, ok := kindNames[k]
	if !ok {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return name
}

// Size in bytes of the raw value
func (k Kind) Size() int {
	switch k {
	case INTEGER8, UNSIGNED8:
		return 1
	case INTEGER16, UNSIGNED16:
		return 2
	default:
		return 4
	}
}

func (k Kind) Signed() bool {
	return k == INTEGER8 || k == INTEGER16 || k == INTEGER32 || k == REAL32
}

// ParseKind accepts either a kind name ("int16", "float", ...)
// or a CANopen data type code ("0x0003").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for kind, name := range kindNames {
		if name == s {
			return kind, nil
		}
	}
	if s == "real32" || s == "float32" {
		return REAL32, nil
	}
	code, err := strconv.ParseUint(s, 0, 16)
	if err == nil {
		if kind, ok := kindCodes[code]; ok {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("%w : %q", ErrUnknownKind, s)
}
