package candash

import (
	"fmt"
	"time"
)

const CanRtrFlag uint32 = 0x40000000
const CanSffMask uint32 = 0x000007FF
const CanEffFlag uint32 = 0x80000000

// Maximum payload of a classic CAN frame
const MaxDLC = 8

type Direction uint8

const (
	Inbound  Direction = 0
	Outbound Direction = 1
)

func (d Direction) String() string {
	if d == Outbound {
		return "tx"
	}
	return "rx"
}

// A CAN frame
type Frame struct {
	ID        uint32
	Flags     uint8
	DLC       uint8
	Data      [8]byte
	Timestamp time.Time
	Direction Direction
}

func NewFrame(id uint32, flags uint8, dlc uint8) Frame {
	if dlc > MaxDLC {
		dlc = MaxDLC
	}
	return Frame{ID: id, Flags: flags, DLC: dlc}
}

// Payload returns the valid bytes of the frame
func (f Frame) Payload() []byte {
	dlc := f.DLC
	if dlc > MaxDLC {
		dlc = MaxDLC
	}
	return f.Data[:dlc]
}

func (f Frame) String() string {
	return fmt.Sprintf("%s x%03x [%d] % X", f.Direction, f.ID, f.DLC, f.Payload())
}

// Interface for handling a received CAN frame
type FrameListener interface {
	Handle(frame Frame)
}

// A FrameConsumer is offered frames by the [BusManager] dispatcher.
// It returns true when it takes ownership of the frame, in which case
// no other consumer sees it.
type FrameConsumer interface {
	Consume(frame Frame) bool
}

// A CAN Bus interface
// Send is expected to be non-blocking, returning an error if the
// frame could not be handed to the driver.
type Bus interface {
	Connect(...any) error                   // Connect to the CAN bus
	Disconnect() error                      // Disconnect from CAN bus
	Send(frame Frame) error                 // Send a frame on the bus
	Subscribe(callback FrameListener) error // Subscribe to all received CAN frames
}
