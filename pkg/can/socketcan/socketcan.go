package socketcan

import (
	"time"

	sockcan "github.com/brutella/can"
	candash "github.com/samsamfire/candash"
	can "github.com/samsamfire/candash/pkg/can"
	log "github.com/sirupsen/logrus"
)

// Basic wrapper for socketcan it uses the implementation
// that can be found here : https://github.com/brutella/can

func init() {
	can.RegisterInterface("socketcan", NewSocketCanBus)
}

type SocketcanBus struct {
	name       string
	bus        *sockcan.Bus
	rxCallback candash.FrameListener
}

// "Connect" implementation of Bus interface
func (socketcan *SocketcanBus) Connect(...any) error {
	go func() {
		err := socketcan.bus.ConnectAndPublish()
		if err != nil {
			log.Errorf("[CAN] %v reception stopped : %v", socketcan.name, err)
		}
	}()
	return nil
}

// "Disconnect" implementation of Bus interface
func (socketcan *SocketcanBus) Disconnect() error {
	return socketcan.bus.Disconnect()
}

// "Send" implementation of Bus interface
func (socketcan *SocketcanBus) Send(frame candash.Frame) error {
	return socketcan.bus.Publish(toSocketcan(frame))
}

// "Subscribe" implementation of Bus interface
func (socketcan *SocketcanBus) Subscribe(rxCallback candash.FrameListener) error {
	socketcan.rxCallback = rxCallback
	// brutella/can defines a "Handle" interface for handling received CAN frames
	socketcan.bus.Subscribe(socketcan)
	return nil
}

// brutella/can specific "Handle" implementation
func (socketcan *SocketcanBus) Handle(frame sockcan.Frame) {
	if socketcan.rxCallback == nil {
		return
	}
	socketcan.rxCallback.Handle(fromSocketcan(frame, time.Now()))
}

func toSocketcan(frame candash.Frame) sockcan.Frame {
	dlc := frame.DLC
	if dlc > candash.MaxDLC {
		dlc = candash.MaxDLC
	}
	return sockcan.Frame{
		ID:     frame.ID,
		Length: dlc,
		Flags:  frame.Flags,
		Data:   frame.Data,
	}
}

func fromSocketcan(frame sockcan.Frame, now time.Time) candash.Frame {
	return candash.Frame{
		ID:        frame.ID,
		DLC:       frame.Length,
		Flags:     frame.Flags,
		Data:      frame.Data,
		Timestamp: now,
		Direction: candash.Inbound,
	}
}

func NewSocketCanBus(name string) (candash.Bus, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(name)
	if err != nil {
		return nil, err
	}
	return &SocketcanBus{name: name, bus: bus}, nil
}
