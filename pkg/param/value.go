package param

import (
	"math"
	"strconv"
)

// Value is a parameter value tagged with its kind.
// The set of implementations is closed, one per [Kind].
type Value interface {
	Kind() Kind
	// Integer view, floats are truncated toward zero
	Int() int64
	Float() float64
	// 32 bit little endian payload as carried by SDO
	Raw() uint32
	String() string
	sealed()
}

type Int8 int8
type Uint8 uint8
type Int16 int16
type Uint16 uint16
type Int32 int32
type Uint32 uint32
type Float32 float32

func (Int8) Kind() Kind    { return INTEGER8 }
func (Uint8) Kind() Kind   { return UNSIGNED8 }
func (Int16) Kind() Kind   { return INTEGER16 }
func (Uint16) Kind() Kind  { return UNSIGNED16 }
func (Int32) Kind() Kind   { return INTEGER32 }
func (Uint32) Kind() Kind  { return UNSIGNED32 }
func (Float32) Kind() Kind { return REAL32 }

func (v Int8) Int() int64    { return int64(v) }
func (v Uint8) Int() int64   { return int64(v) }
func (v Int16) Int() int64   { return int64(v) }
func (v Uint16) Int() int64  { return int64(v) }
func (v Int32) Int() int64   { return int64(v) }
func (v Uint32) Int() int64  { return int64(v) }
func (v Float32) Int() int64 { return int64(v) }

func (v Int8) Float() float64    { return float64(v) }
func (v Uint8) Float() float64   { return float64(v) }
func (v Int16) Float() float64   { return float64(v) }
func (v Uint16) Float() float64  { return float64(v) }
func (v Int32) Float() float64   { return float64(v) }
func (v Uint32) Float() float64  { return float64(v) }
func (v Float32) Float() float64 { return float64(v) }

func (v Int8) Raw() uint32    { return uint32(int32(v)) }
func (v Uint8) Raw() uint32   { return uint32(v) }
func (v Int16) Raw() uint32   { return uint32(int32(v)) }
func (v Uint16) Raw() uint32  { return uint32(v) }
func (v Int32) Raw() uint32   { return uint32(v) }
func (v Uint32) Raw() uint32  { return uint32(v) }
func (v Float32) Raw() uint32 { return math.Float32bits(float32(v)) }

func (v Int8) String() string    { return strconv.FormatInt(int64(v), 10) }
func (v Uint8) String() string   { return strconv.FormatUint(uint64(v), 10) }
func (v Int16) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Uint16) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Int32) String() string   { return strconv.FormatInt(int64(v), 10) }
func (v Uint32) String() string  { return strconv.FormatUint(uint64(v), 10) }
func (v Float32) String() string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }

func (Int8) sealed()    {}
func (Uint8) sealed()   {}
func (Int16) sealed()   {}
func (Uint16) sealed()  {}
func (Int32) sealed()   {}
func (Uint32) sealed()  {}
func (Float32) sealed() {}

// FromInt converts an integer to a value of the given kind.
// Integer kinds keep the low bits, as a C cast would.
func FromInt(kind Kind, v int64) Value {
	switch kind {
	case INTEGER8:
		return Int8(v)
	case UNSIGNED8:
		return Uint8(v)
	case INTEGER16:
		return Int16(v)
	case UNSIGNED16:
		return Uint16(v)
	case INTEGER32:
		return Int32(v)
	case UNSIGNED32:
		return Uint32(v)
	default:
		return Float32(v)
	}
}

// FromFloat converts a float to a value of the given kind,
// truncating toward zero for integer kinds.
func FromFloat(kind Kind, f float64) Value {
	if kind == REAL32 {
		return Float32(f)
	}
	return FromInt(kind, int64(f))
}

// Convert a value to another kind
func Convert(kind Kind, v Value) Value {
	if v.Kind() == kind {
		return v
	}
	if kind == REAL32 {
		return Float32(v.Float())
	}
	return FromInt(kind, v.Int())
}

// ParseValue parses a user supplied string for the given kind
func ParseValue(kind Kind, s string) (Value, error) {
	if kind == REAL32 {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		return Float32(f), nil
	}
	if kind.Signed() {
		i, err := strconv.ParseInt(s, 0, kind.Size()*8)
		if err != nil {
			return nil, err
		}
		return FromInt(kind, i), nil
	}
	u, err := strconv.ParseUint(s, 0, kind.Size()*8)
	if err != nil {
		return nil, err
	}
	return FromInt(kind, int64(u)), nil
}
