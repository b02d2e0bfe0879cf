package router

import (
	"sync"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/param"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultConnectionTimeout = 5 * time.Second
	DefaultCellCapacity      = 128
	DefaultSdoIndex   uint16 = 0x2100
	// Sensor channel without a target parameter, only logged
	NoTarget uint16 = 0xFFFF
)

// Half open identifier range [Start, End)
type Range struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
}

func (r Range) Contains(id uint32) bool {
	return id >= r.Start && id < r.End
}

// 24 bit fixed point sensor channel
type Sensor struct {
	Name    string
	Divisor int32
	Target  uint16
}

// Direct control frame, value is a little endian integer of Size bytes at offset 0
type Control struct {
	ID    uint32
	Param uint16
	Size  int
}

type Config struct {
	NodeID            uint8
	SdoTxBase         uint32
	SdoRxBase         uint32
	SdoIndex          uint16
	BMSRanges         []Range
	PDOs              map[uint32][]uint16
	Sensors           map[uint32]Sensor
	Controls          []Control
	ConnectionTimeout time.Duration
	CellCapacity      int
}

func DefaultConfig(nodeId uint8) Config {
	node := uint32(nodeId)
	return Config{
		NodeID:    nodeId,
		SdoTxBase: 0x600,
		SdoRxBase: 0x580,
		SdoIndex:  DefaultSdoIndex,
		BMSRanges: []Range{{Start: 0x400, End: 0x500}, {Start: 0x600, End: 0x700}},
		PDOs: map[uint32][]uint16{
			0x180 + node: {1, 3, 4, 2},
			0x280 + node: {5, 6, 7, 8},
			0x380 + node: {},
			0x480 + node: {},
		},
		Sensors: map[uint32]Sensor{
			0x521: {Name: "U1", Divisor: 1000, Target: NoTarget},
			0x522: {Name: "U2", Divisor: 1000, Target: 3},
			0x523: {Name: "U3", Divisor: 1000, Target: NoTarget},
			0x411: {Name: "I", Divisor: 1000, Target: 4},
			0x526: {Name: "T", Divisor: 10, Target: 14},
			0x527: {Name: "P", Divisor: 1000, Target: 2},
			0x528: {Name: "As", Divisor: 3600, Target: 15},
		},
		Controls: []Control{
			{ID: 0x300, Param: 27, Size: 1},
			{ID: 0x301, Param: 129, Size: 1},
			{ID: 0x302, Param: 61, Size: 2},
		},
		ConnectionTimeout: DefaultConnectionTimeout,
		CellCapacity:      DefaultCellCapacity,
	}
}

type Stats struct {
	Decoded    uint32 `json:"decoded"`
	Forwarded  uint32 `json:"forwarded"`
	Diagnostic uint32 `json:"diagnostic"`
	Malformed  uint32 `json:"malformed"`
	Unknown    uint32 `json:"unknown"`
	Undeclared uint32 `json:"undeclared"`
}

// Router classifies received frames, decodes them into the parameter
// store, and encodes outbound control and request frames.
// It is meant to be the last consumer of the bus manager dispatcher.
type Router struct {
	bm         *candash.BusManager
	store      *param.Store
	config     Config
	cells      *CellTable
	sdoHandler func(frame candash.Frame)
	mu         sync.Mutex
	connected  bool
	lastRx     time.Time
	stats      Stats
	now        func() time.Time
}

func NewRouter(bm *candash.BusManager, store *param.Store, config Config) (*Router, error) {
	if bm == nil || store == nil {
		return nil, candash.ErrIllegalArgument
	}
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = DefaultConnectionTimeout
	}
	if config.CellCapacity <= 0 {
		config.CellCapacity = DefaultCellCapacity
	}
	return &Router{
		bm:     bm,
		store:  store,
		config: config,
		cells:  NewCellTable(config.CellCapacity),
		now:    time.Now,
	}, nil
}

func (r *Router) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	r.cells.now = now
}

// Set the handler for SDO responses that reach the router,
// i.e. that were not claimed by a pending SDO transaction
func (r *Router) SetSDOHandler(handler func(frame candash.Frame)) {
	r.sdoHandler = handler
}

func (r *Router) Config() Config {
	return r.config
}

func (r *Router) Cells() *CellTable {
	return r.cells
}

func (r *Router) Store() *param.Store {
	return r.store
}

// Consume implements [candash.FrameConsumer], every frame is accepted
func (r *Router) Consume(frame candash.Frame) bool {
	res := r.decode(frame)
	r.mu.Lock()
	defer r.mu.Unlock()
	switch res {
	case resultDecoded:
		r.stats.Decoded++
	case resultForwarded:
		r.stats.Forwarded++
	case resultDiagnostic:
		r.stats.Diagnostic++
	case resultMalformed:
		r.stats.Malformed++
		log.Debugf("[ROUTER][RX] malformed frame dropped : %v", frame)
		return true
	default:
		r.stats.Unknown++
		return true
	}
	r.lastRx = r.now()
	if !r.connected {
		log.Infof("[ROUTER] counterpart present")
	}
	r.connected = true
	return true
}

// Process updates liveness, the connected flag is cleared
// once no frame was decoded for the configured timeout
func (r *Router) Process(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connected && now.Sub(r.lastRx) > r.config.ConnectionTimeout {
		r.connected = false
		log.Warnf("[ROUTER] no traffic for %v, counterpart lost", r.config.ConnectionTimeout)
	}
}

func (r *Router) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *Router) LastReceived() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRx
}

func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Store a decoded value, undeclared ids are counted and discarded
func (r *Router) update(id uint16, value int64) {
	if r.store.UpdateInt(id, value) {
		return
	}
	r.mu.Lock()
	r.stats.Undeclared++
	r.mu.Unlock()
}
