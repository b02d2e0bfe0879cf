package param

import (
	"fmt"
	"strconv"
	"time"
)

// Definition describes a parameter, as supplied by a definition file
type Definition struct {
	ID       uint16  `json:"id"`
	Name     string  `json:"name"`
	Kind     Kind    `json:"-"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Unit     string  `json:"unit"`
	Decimals uint8   `json:"decimals"`
	Editable bool    `json:"editable"`
}

// Parameter is a declared definition with its last known value.
// Dirty is set until a first value has been received.
type Parameter struct {
	Definition
	Value      Value
	Dirty      bool
	LastUpdate time.Time
}

func newParameter(def Definition) *Parameter {
	return &Parameter{
		Definition: def,
		Value:      FromInt(def.Kind, 0),
		Dirty:      true,
	}
}

// InRange checks v against the declared bounds
func (p *Parameter) InRange(v float64) bool {
	return v >= p.Min && v <= p.Max
}

// Age of the value, zero if never updated
func (p *Parameter) Age(now time.Time) time.Duration {
	if p.LastUpdate.IsZero() {
		return 0
	}
	return now.Sub(p.LastUpdate)
}

// Format value with its unit, floats use the declared decimals
func (p *Parameter) Format() string {
	var s string
	if p.Kind == REAL32 {
		s = strconv.FormatFloat(p.Value.Float(), 'f', int(p.Decimals), 32)
	} else {
		s = p.Value.String()
	}
	if p.Unit == "" {
		return s
	}
	return fmt.Sprintf("%s %s", s, p.Unit)
}

func (p *Parameter) String() string {
	return fmt.Sprintf("%d|%s = %s", p.ID, p.Name, p.Format())
}
