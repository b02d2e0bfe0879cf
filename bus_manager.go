package candash

import (
	"fmt"
	"sync"
	"time"

	"github.com/samsamfire/candash/internal/ring"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultRxQueueSize = 32
	DefaultTxQueueSize = 16
)

// Bus manager is a wrapper around the CAN bus interface.
// It is the only reader of the bus : received frames are queued in an
// inbound ring and later handed out by [BusManager.Dispatch] to exactly
// one [FrameConsumer], in subscription order.
// Outbound frames can either be queued and flushed cyclically,
// or sent synchronously with [BusManager.Send].
type BusManager struct {
	mu         sync.Mutex
	bus        Bus
	rxMu       sync.Mutex
	rx         *ring.Ring[Frame]
	rxDropped  uint32
	txMu       sync.Mutex
	tx         *ring.Ring[Frame]
	dispatchMu sync.Mutex
	consumers  []FrameConsumer
	tapMu      sync.RWMutex
	taps       []FrameListener
	now        func() time.Time
}

func NewBusManager(bus Bus, rxSize int, txSize int) *BusManager {
	if rxSize <= 0 {
		rxSize = DefaultRxQueueSize
	}
	if txSize <= 0 {
		txSize = DefaultTxQueueSize
	}
	return &BusManager{
		bus: bus,
		rx:  ring.New[Frame](rxSize),
		tx:  ring.New[Frame](txSize),
		now: time.Now,
	}
}

// Implements the FrameListener interface
// This handles all received CAN frames from Bus, it is usually called
// from the bus driver goroutine so only queues the frame.
func (bm *BusManager) Handle(frame Frame) {
	frame.Direction = Inbound
	if frame.Timestamp.IsZero() {
		frame.Timestamp = bm.now()
	}
	bm.rxMu.Lock()
	ok := bm.rx.Push(frame)
	if !ok {
		bm.rxDropped++
	}
	bm.rxMu.Unlock()
	if !ok {
		log.Debugf("[CAN] %v : x%x", ErrRxOverflow, frame.ID)
	}
}

// Set bus
func (bm *BusManager) SetBus(bus Bus) {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.bus = bus
}

func (bm *BusManager) Bus() Bus {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.bus
}

// Set time source used for stamping frames
func (bm *BusManager) SetClock(now func() time.Time) {
	bm.now = now
}

// Subscribe a consumer to dispatched frames.
// Consumers are offered each frame in the order they subscribed,
// the first one accepting it consumes it exclusively.
func (bm *BusManager) Subscribe(consumer FrameConsumer) {
	bm.dispatchMu.Lock()
	defer bm.dispatchMu.Unlock()
	for _, c := range bm.consumers {
		if c == consumer {
			log.Warnf("[CAN] consumer %T already subscribed", consumer)
			return
		}
	}
	bm.consumers = append(bm.consumers, consumer)
}

// Add a listener that observes every dispatched and sent frame
// without consuming it, e.g. a traffic log.
func (bm *BusManager) AddTap(listener FrameListener) {
	bm.tapMu.Lock()
	defer bm.tapMu.Unlock()
	bm.taps = append(bm.taps, listener)
}

// Dispatch drains the inbound queue and routes each frame
// to the first consumer that accepts it.
// Returns the number of frames drained.
func (bm *BusManager) Dispatch() int {
	bm.dispatchMu.Lock()
	defer bm.dispatchMu.Unlock()
	count := 0
	for {
		bm.rxMu.Lock()
		frame, ok := bm.rx.Pop()
		bm.rxMu.Unlock()
		if !ok {
			return count
		}
		count++
		bm.tap(frame)
		for _, consumer := range bm.consumers {
			if consumer.Consume(frame) {
				break
			}
		}
	}
}

// Number of received frames dropped because the inbound queue was full
func (bm *BusManager) RxDropped() uint32 {
	bm.rxMu.Lock()
	defer bm.rxMu.Unlock()
	return bm.rxDropped
}

// Number of frames waiting in the inbound queue
func (bm *BusManager) RxPending() int {
	bm.rxMu.Lock()
	defer bm.rxMu.Unlock()
	return bm.rx.Len()
}

// Queue a frame for the next [BusManager.Flush]
func (bm *BusManager) Enqueue(frame Frame) error {
	frame.Direction = Outbound
	bm.txMu.Lock()
	defer bm.txMu.Unlock()
	if !bm.tx.Push(frame) {
		return ErrTxOverflow
	}
	return nil
}

// Number of frames waiting in the outbound queue
func (bm *BusManager) TxPending() int {
	bm.txMu.Lock()
	defer bm.txMu.Unlock()
	return bm.tx.Len()
}

// Flush sends queued frames in order.
// A frame that the driver refuses is dropped, not retried, and flushing
// stops there so that the remaining frames keep their order.
func (bm *BusManager) Flush() (int, error) {
	sent := 0
	for {
		bm.txMu.Lock()
		frame, ok := bm.tx.Pop()
		bm.txMu.Unlock()
		if !ok {
			return sent, nil
		}
		err := bm.Send(frame)
		if err != nil {
			return sent, err
		}
		sent++
	}
}

// Send a CAN message immediately
// Limited error handling, driver errors are reported as [ErrTxBusy]
func (bm *BusManager) Send(frame Frame) error {
	bus := bm.Bus()
	if bus == nil {
		return ErrNoBus
	}
	frame.Direction = Outbound
	frame.Timestamp = bm.now()
	err := bus.Send(frame)
	if err != nil {
		log.Warnf("[CAN] send x%x failed : %v", frame.ID, err)
		return fmt.Errorf("%w : %v", ErrTxBusy, err)
	}
	bm.tap(frame)
	return nil
}

func (bm *BusManager) tap(frame Frame) {
	bm.tapMu.RLock()
	defer bm.tapMu.RUnlock()
	for _, tap := range bm.taps {
		tap.Handle(frame)
	}
}
