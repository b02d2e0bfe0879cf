package virtual

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/stretchr/testify/assert"
)

// Minimal broker forwarding everything from the first client to the second
func startBroker(t *testing.T) string {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Nil(t, err)
	t.Cleanup(func() { listener.Close() })
	go func() {
		first, err := listener.Accept()
		if err != nil {
			return
		}
		second, err := listener.Accept()
		if err != nil {
			first.Close()
			return
		}
		_, _ = io.Copy(second, first)
		first.Close()
		second.Close()
	}()
	return listener.Addr().String()
}

func newVcan(t *testing.T, channel string) *Bus {
	canBus, err := NewVirtualCanBus(channel)
	assert.Nil(t, err)
	return canBus.(*Bus)
}

type FrameReceiver struct {
	mu     sync.Mutex
	frames []candash.Frame
}

func (frameReceiver *FrameReceiver) Handle(frame candash.Frame) {
	frameReceiver.mu.Lock()
	defer frameReceiver.mu.Unlock()
	frameReceiver.frames = append(frameReceiver.frames, frame)
}

func (frameReceiver *FrameReceiver) count() int {
	frameReceiver.mu.Lock()
	defer frameReceiver.mu.Unlock()
	return len(frameReceiver.frames)
}

func TestSerialize(t *testing.T) {
	frame := candash.Frame{ID: 0x583, DLC: 8, Data: [8]byte{0x4B, 0x01, 0x20, 0x05, 0x2A}}
	raw, err := serializeFrame(frame)
	assert.Nil(t, err)
	assert.Len(t, raw, 4+wireSize)
	assert.Equal(t, []byte{0, 0, 0, wireSize, 0, 0, 0x05, 0x83, 0, 8}, raw[:10])
	decoded, err := deserializeFrame(raw[4:])
	assert.Nil(t, err)
	assert.Equal(t, frame, decoded)
}

func TestSendAndSubscribe(t *testing.T) {
	channel := startBroker(t)
	vcan1 := newVcan(t, channel)
	vcan2 := newVcan(t, channel)
	defer vcan1.Disconnect()
	defer vcan2.Disconnect()
	assert.Nil(t, vcan1.Connect())
	// Make sure the broker accepts in order
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, vcan2.Connect())
	receiver := &FrameReceiver{}
	assert.Nil(t, vcan2.Subscribe(receiver))
	time.Sleep(20 * time.Millisecond)

	frame := candash.Frame{ID: 0x111, DLC: 8, Data: [8]byte{0, 1, 2, 3, 4, 5, 6, 7}}
	for i := 0; i < 10; i++ {
		frame.Data[0] = uint8(i)
		assert.Nil(t, vcan1.Send(frame))
	}
	assert.Eventually(t, func() bool { return receiver.count() == 10 }, 2*time.Second, 10*time.Millisecond)
	receiver.mu.Lock()
	defer receiver.mu.Unlock()
	for i, received := range receiver.frames {
		assert.EqualValues(t, 0x111, received.ID)
		assert.EqualValues(t, i, received.Data[0])
		assert.Equal(t, candash.Inbound, received.Direction)
		assert.False(t, received.Timestamp.IsZero())
	}
}

func TestReceiveOwn(t *testing.T) {
	vcan := newVcan(t, "127.0.0.1:1")
	defer vcan.Disconnect()
	receiver := &FrameReceiver{}
	assert.Nil(t, vcan.Subscribe(receiver))
	frame := candash.Frame{ID: 0x111, DLC: 8}
	assert.ErrorIs(t, vcan.Send(frame), ErrNotConnected)
	assert.Equal(t, 0, receiver.count())

	vcan.SetReceiveOwn(true)
	assert.Nil(t, vcan.Send(frame))
	assert.Equal(t, 1, receiver.count())
}
