package gateway

import (
	"time"

	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/param"
	"github.com/samsamfire/candash/pkg/router"
	"github.com/samsamfire/candash/pkg/sdo"
)

type ParameterView struct {
	ID        uint16  `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"type"`
	Value     float64 `json:"value"`
	Formatted string  `json:"formatted"`
	Unit      string  `json:"unit"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Decimals  uint8   `json:"decimals"`
	Editable  bool    `json:"editable"`
	Dirty     bool    `json:"dirty"`
	// Milliseconds since last update, -1 when never updated
	AgeMs int64 `json:"age_ms"`
}

// Snapshot of the gateway state as presented to clients
type Snapshot struct {
	Timestamp    time.Time           `json:"timestamp"`
	Connected    bool                `json:"connected"`
	LastReceived time.Time           `json:"last_received"`
	Parameters   []ParameterView     `json:"parameters"`
	Immobilizer  *immobilizer.Status `json:"immobilizer,omitempty"`
	Router       router.Stats        `json:"router"`
	SDO          sdo.Stats           `json:"sdo"`
	RxDropped    uint32              `json:"rx_dropped"`
}

func NewParameterView(p *param.Parameter, now time.Time) ParameterView {
	age := int64(-1)
	if !p.LastUpdate.IsZero() {
		age = p.Age(now).Milliseconds()
	}
	return ParameterView{
		ID:        p.ID,
		Name:      p.Name,
		Kind:      p.Kind.String(),
		Value:     p.Value.Float(),
		Formatted: p.Format(),
		Unit:      p.Unit,
		Min:       p.Min,
		Max:       p.Max,
		Decimals:  p.Decimals,
		Editable:  p.Editable,
		Dirty:     p.Dirty,
		AgeMs:     age,
	}
}

func (gw *Gateway) Snapshot(now time.Time) Snapshot {
	params := gw.store.All()
	views := make([]ParameterView, len(params))
	for i := range params {
		views[i] = NewParameterView(&params[i], now)
	}
	snapshot := Snapshot{
		Timestamp:    now,
		Connected:    gw.router.Connected(),
		LastReceived: gw.router.LastReceived(),
		Parameters:   views,
		Router:       gw.router.Stats(),
		SDO:          gw.client.Stats(),
		RxDropped:    gw.bm.RxDropped(),
	}
	if gw.imm != nil {
		status := gw.imm.Status(now)
		snapshot.Immobilizer = &status
	}
	return snapshot
}
