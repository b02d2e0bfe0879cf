package immobilizer

import (
	"fmt"
	"sync"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/rfid"
	log "github.com/sirupsen/logrus"
)

const (
	PinLength               = 4
	DefaultEnforceParam     = 37
	// Index bytes (0x00, 0x21) of the current limit write
	DefaultIndex            = 0x2100
	DefaultLockedCurrent    = 0
	DefaultUnlockedCurrent  = 500
	DefaultInterval         = 100 * time.Millisecond
	DefaultHeartbeatId      = 0x500
	DefaultHeartbeatTimeout = 5 * time.Second
	DefaultTagDebounce      = 2 * time.Second
	DefaultStatusId         = 0x351
	// Status frame current limits in deci-amps
	DefaultStatusLocked   = 0
	DefaultStatusUnlocked = 2000
)

type LockState uint8

const (
	Locked LockState = iota
	Unlocked
)

func (s LockState) String() string {
	if s == Unlocked {
		return "unlocked"
	}
	return "locked"
}

// Writer performs a single parameter write attempt
type Writer interface {
	WriteOnceIndex(index uint16, paramId uint8, value int32) error
}

// Sender queues raw frames
type Sender interface {
	Enqueue(frame candash.Frame) error
}

type Config struct {
	Pin              [PinLength]uint8
	AuthorizedTags   []rfid.Tag
	EnforceParam     uint8
	Index            uint16
	LockedCurrent    int32
	UnlockedCurrent  int32
	Interval         time.Duration
	HeartbeatId      uint32
	HeartbeatTimeout time.Duration
	// Lock when the heartbeat is lost, disabled by default
	AutoLock       bool
	TagDebounce    time.Duration
	StatusFrame    bool
	StatusId       uint32
	StatusLocked   uint16
	StatusUnlocked uint16
}

func DefaultConfig() Config {
	return Config{
		Pin: [PinLength]uint8{1, 2, 3, 4},
		AuthorizedTags: []rfid.Tag{
			{0xDE, 0xAD, 0xBE, 0xEF},
			{0xCA, 0xFE, 0xBA, 0xBE},
		},
		EnforceParam:     DefaultEnforceParam,
		Index:            DefaultIndex,
		LockedCurrent:    DefaultLockedCurrent,
		UnlockedCurrent:  DefaultUnlockedCurrent,
		Interval:         DefaultInterval,
		HeartbeatId:      DefaultHeartbeatId,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		TagDebounce:      DefaultTagDebounce,
		StatusId:         DefaultStatusId,
		StatusLocked:     DefaultStatusLocked,
		StatusUnlocked:   DefaultStatusUnlocked,
	}
}

// Immobilizer gates the allowed current. Whatever the state, the
// corresponding current limit is re-written every interval since other
// devices on the bus write the same register.
type Immobilizer struct {
	config        Config
	writer        Writer
	sender        Sender
	mu            sync.Mutex
	state         LockState
	pin           [PinLength]uint8
	pinPosition   int
	digit         uint8
	lastHeartbeat time.Time
	lastEnforce   time.Time
	lastTag       time.Time
	enforcements  uint32
	failures      uint32
	now           func() time.Time
}

// Create an immobilizer, starting locked. sender may be nil when
// the status frame is not used.
func New(writer Writer, sender Sender, config Config) (*Immobilizer, error) {
	if writer == nil {
		return nil, candash.ErrIllegalArgument
	}
	for _, d := range config.Pin {
		if d > 9 {
			return nil, fmt.Errorf("%w : pin digit %d", candash.ErrIllegalArgument, d)
		}
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.StatusFrame && sender == nil {
		return nil, fmt.Errorf("%w : status frame needs a sender", candash.ErrIllegalArgument)
	}
	imm := &Immobilizer{
		config: config,
		writer: writer,
		sender: sender,
		state:  Locked,
		now:    time.Now,
	}
	imm.lastHeartbeat = imm.now()
	return imm, nil
}

func (imm *Immobilizer) SetClock(now func() time.Time) {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.now = now
	imm.lastHeartbeat = now()
}

func (imm *Immobilizer) State() LockState {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return imm.state
}

func (imm *Immobilizer) IsLocked() bool {
	return imm.State() == Locked
}

func (imm *Immobilizer) Lock() {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.setState(Locked)
}

func (imm *Immobilizer) Unlock() {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.setState(Unlocked)
}

func (imm *Immobilizer) Toggle() {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.toggle()
}

func (imm *Immobilizer) toggle() {
	if imm.state == Locked {
		imm.setState(Unlocked)
	} else {
		imm.setState(Locked)
	}
}

func (imm *Immobilizer) setState(state LockState) {
	if imm.state != state {
		log.Infof("[IMMOBILIZER] %v => %v", imm.state, state)
	}
	imm.state = state
	imm.clearPin()
}

func (imm *Immobilizer) clearPin() {
	imm.pin = [PinLength]uint8{}
	imm.pinPosition = 0
	imm.digit = 0
}
