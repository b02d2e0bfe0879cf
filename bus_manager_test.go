package candash

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type mockBus struct {
	mu      sync.Mutex
	sent    []Frame
	sendErr error
}

func (b *mockBus) Connect(...any) error              { return nil }
func (b *mockBus) Disconnect() error                 { return nil }
func (b *mockBus) Subscribe(callback FrameListener) error { return nil }
func (b *mockBus) Send(frame Frame) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, frame)
	return nil
}

type recorder struct {
	accept func(Frame) bool
	frames []Frame
}

func (r *recorder) Consume(frame Frame) bool {
	if r.accept != nil && !r.accept(frame) {
		return false
	}
	r.frames = append(r.frames, frame)
	return true
}

func (r *recorder) Handle(frame Frame) {
	r.frames = append(r.frames, frame)
}

func TestDispatchFirstConsumerWins(t *testing.T) {
	bm := NewBusManager(&mockBus{}, 8, 8)
	first := &recorder{accept: func(f Frame) bool { return f.ID == 0x583 }}
	second := &recorder{}
	bm.Subscribe(first)
	bm.Subscribe(second)
	bm.Handle(Frame{ID: 0x583, DLC: 8})
	bm.Handle(Frame{ID: 0x183, DLC: 8})
	bm.Handle(Frame{ID: 0x583, DLC: 8})
	assert.Equal(t, 3, bm.Dispatch())
	assert.Len(t, first.frames, 2)
	assert.Len(t, second.frames, 1)
	assert.EqualValues(t, 0x183, second.frames[0].ID)
	assert.Equal(t, Inbound, second.frames[0].Direction)
	assert.False(t, second.frames[0].Timestamp.IsZero())
	assert.Equal(t, 0, bm.Dispatch())
}

func TestDispatchDoubleSubscribe(t *testing.T) {
	bm := NewBusManager(&mockBus{}, 8, 8)
	r := &recorder{}
	bm.Subscribe(r)
	bm.Subscribe(r)
	bm.Handle(Frame{ID: 1})
	bm.Dispatch()
	assert.Len(t, r.frames, 1)
}

func TestRxOverflow(t *testing.T) {
	bm := NewBusManager(&mockBus{}, 4, 4)
	for i := 0; i < 5; i++ {
		bm.Handle(Frame{ID: uint32(i)})
	}
	assert.EqualValues(t, 2, bm.RxDropped())
	assert.Equal(t, 3, bm.RxPending())
	r := &recorder{}
	bm.Subscribe(r)
	bm.Dispatch()
	assert.Len(t, r.frames, 3)
	for i, frame := range r.frames {
		assert.EqualValues(t, i, frame.ID)
	}
}

func TestEnqueueFlush(t *testing.T) {
	bus := &mockBus{}
	bm := NewBusManager(bus, 4, 4)
	tap := &recorder{}
	bm.AddTap(tap)
	for i := 0; i < 3; i++ {
		assert.Nil(t, bm.Enqueue(NewFrame(uint32(0x300+i), 0, 8)))
	}
	assert.Equal(t, ErrTxOverflow, bm.Enqueue(NewFrame(0x303, 0, 8)))
	sent, err := bm.Flush()
	assert.Nil(t, err)
	assert.Equal(t, 3, sent)
	assert.Len(t, bus.sent, 3)
	assert.EqualValues(t, 0x300, bus.sent[0].ID)
	assert.EqualValues(t, 0x302, bus.sent[2].ID)
	assert.Len(t, tap.frames, 3)
	assert.Equal(t, Outbound, tap.frames[0].Direction)
	assert.Equal(t, 0, bm.TxPending())
}

func TestFlushDriverBusy(t *testing.T) {
	bus := &mockBus{sendErr: errors.New("no buffer space")}
	bm := NewBusManager(bus, 4, 4)
	_ = bm.Enqueue(NewFrame(0x300, 0, 8))
	_ = bm.Enqueue(NewFrame(0x301, 0, 8))
	sent, err := bm.Flush()
	assert.Equal(t, 0, sent)
	assert.ErrorIs(t, err, ErrTxBusy)
	// Refused frame is dropped, the next one stays queued
	assert.Equal(t, 1, bm.TxPending())
}

func TestSendNoBus(t *testing.T) {
	bm := NewBusManager(nil, 0, 0)
	assert.Equal(t, ErrNoBus, bm.Send(NewFrame(0x1, 0, 0)))
}

func TestFramePayload(t *testing.T) {
	frame := NewFrame(0x522, 0, 12)
	assert.EqualValues(t, 8, frame.DLC)
	frame.DLC = 6
	assert.Len(t, frame.Payload(), 6)
}
