package router

import (
	"testing"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/param"
	"github.com/stretchr/testify/assert"
)

type mockBus struct {
	sent []candash.Frame
}

func (b *mockBus) Connect(...any) error                          { return nil }
func (b *mockBus) Disconnect() error                             { return nil }
func (b *mockBus) Subscribe(callback candash.FrameListener) error { return nil }
func (b *mockBus) Send(frame candash.Frame) error {
	b.sent = append(b.sent, frame)
	return nil
}

func newFrame(id uint32, data ...byte) candash.Frame {
	frame := candash.NewFrame(id, 0, uint8(len(data)))
	copy(frame.Data[:], data)
	return frame
}

func newTestRouter(t *testing.T, ids ...uint16) (*Router, *param.Store, *candash.BusManager, *mockBus) {
	bus := &mockBus{}
	bm := candash.NewBusManager(bus, 32, 4)
	store := param.NewStore(32)
	for _, id := range ids {
		assert.Nil(t, store.Declare(param.Definition{ID: id, Kind: param.INTEGER32}))
	}
	r, err := NewRouter(bm, store, DefaultConfig(3))
	assert.Nil(t, err)
	bm.Subscribe(r)
	return r, store, bm, bus
}

func value(t *testing.T, store *param.Store, id uint16) int64 {
	p, ok := store.Get(id)
	assert.True(t, ok)
	return p.Value.Int()
}

func TestSignExtend24(t *testing.T) {
	assert.EqualValues(t, 8388607, SignExtend24(0x7FFFFF))
	assert.EqualValues(t, -8388608, SignExtend24(0x800000))
	assert.EqualValues(t, -1, SignExtend24(0xFFFFFF))
	assert.EqualValues(t, 0x123456&0x7FFFFF, SignExtend24(0x123456))
	for raw := uint32(0); raw < 0x800000; raw += 0x10001 {
		assert.EqualValues(t, raw, SignExtend24(raw))
	}
}

func TestUnknownIdDoesNotCreateEntry(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 1)
	// TPDO1 maps to 1, 3, 4, 2 ; only 1 declared
	assert.True(t, r.Consume(newFrame(0x183, 10, 0, 20, 0, 30, 0, 40, 0)))
	assert.Equal(t, 1, store.Len())
	assert.EqualValues(t, 10, value(t, store, 1))
	assert.False(t, store.Has(3))
	assert.EqualValues(t, 3, r.Stats().Undeclared)
}

func TestDecodePDO(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 1, 2, 3, 4, 5, 6, 7, 8)
	r.Consume(newFrame(0x183, 0xFF, 0xFF, 0x10, 0x00, 0x20, 0x00, 0x30, 0x00))
	assert.EqualValues(t, -1, value(t, store, 1))
	assert.EqualValues(t, 16, value(t, store, 3))
	assert.EqualValues(t, 32, value(t, store, 4))
	assert.EqualValues(t, 48, value(t, store, 2))
	// Short TPDO2, only the first two values
	r.Consume(newFrame(0x283, 1, 0, 2, 0))
	assert.EqualValues(t, 1, value(t, store, 5))
	assert.EqualValues(t, 2, value(t, store, 6))
	p, _ := store.Get(7)
	assert.True(t, p.Dirty)
	// TPDO3 recognised, nothing mapped
	r.Consume(newFrame(0x383, 1, 0, 2, 0, 3, 0, 4, 0))
	assert.EqualValues(t, 3, r.Stats().Decoded)
	assert.EqualValues(t, 0, r.Stats().Diagnostic)
}

func TestDecodeSensors(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 2, 3, 14, 15)
	// 311059 mV -> 311
	r.Consume(newFrame(0x522, 0x01, 0x00, 0x13, 0xBF, 0x04, 0x00))
	assert.EqualValues(t, 311, value(t, store, 3))
	// -1753 W -> -1 (truncation toward zero)
	power := int32(-1753)
	raw := uint32(power) & 0xFFFFFF
	r.Consume(newFrame(0x527, 0x07, 0x00, byte(raw), byte(raw>>8), byte(raw>>16), 0x00))
	assert.EqualValues(t, -1, value(t, store, 2))
	// 254 -> 25 °C
	r.Consume(newFrame(0x526, 0x06, 0x00, 0xFE, 0x00, 0x00, 0x00))
	assert.EqualValues(t, 25, value(t, store, 14))
	// 7200 As -> 2 Ah
	r.Consume(newFrame(0x528, 0x08, 0x00, 0x20, 0x1C, 0x00, 0x00))
	assert.EqualValues(t, 2, value(t, store, 15))
	// Unmapped channel still counts as decoded
	r.Consume(newFrame(0x521, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00))
	assert.EqualValues(t, 5, r.Stats().Decoded)
}

func TestSensorMalformed(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 3)
	_ = store.UpdateInt(3, 300)
	r.Consume(newFrame(0x522, 0x01, 0x00, 0x13, 0xBF, 0x04, 0x00, 0x00, 0x00))
	r.Consume(newFrame(0x522, 0x01, 0x00))
	assert.EqualValues(t, 300, value(t, store, 3))
	assert.EqualValues(t, 2, r.Stats().Malformed)
	assert.False(t, r.Connected())
}

func TestBMSRangeShadowsSensor(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 4)
	// 0x411 lies in the first BMS range : cells 68..70
	r.Consume(newFrame(0x411, 0x01, 0x00, 0x10, 0x27, 0x00, 0x00))
	p, _ := store.Get(4)
	assert.True(t, p.Dirty)
	assert.Equal(t, 71, r.Cells().Count())
	cell, ok := r.Cells().Get(69)
	assert.True(t, ok)
	assert.EqualValues(t, 0x2710, cell.Millivolts)

	// Without BMS ranges it is a current sensor
	config := DefaultConfig(3)
	config.BMSRanges = nil
	r.config = config
	r.Consume(newFrame(0x411, 0x01, 0x00, 0x10, 0x27, 0x00, 0x00))
	assert.EqualValues(t, 10, value(t, store, 4))
}

func TestDecodeCells(t *testing.T) {
	r, _, _, _ := newTestRouter(t)
	r.Consume(newFrame(0x601, 0xE8, 0x0C, 0xE9, 0x0C, 0xEA, 0x0C, 0xEB, 0x0C))
	assert.Equal(t, 8, r.Cells().Count())
	cells := r.Cells().All()
	assert.EqualValues(t, 3304, cells[4].Millivolts)
	assert.EqualValues(t, 3307, cells[7].Millivolts)
	assert.True(t, cells[0].LastUpdate.IsZero())
	min, max, ok := r.Cells().MinMax()
	assert.True(t, ok)
	assert.EqualValues(t, 3304, min)
	assert.EqualValues(t, 3307, max)
	// Beyond capacity, dropped
	r.Consume(newFrame(0x4FF, 1, 0, 1, 0, 1, 0, 1, 0))
	assert.Equal(t, 8, r.Cells().Count())
}

func TestSDOResponseForwarded(t *testing.T) {
	r, _, _, _ := newTestRouter(t, 5)
	forwarded := make([]candash.Frame, 0)
	r.SetSDOHandler(func(frame candash.Frame) { forwarded = append(forwarded, frame) })
	r.Consume(newFrame(0x583, 0x43, 0x00, 0x21, 5, 1, 0, 0, 0))
	assert.Len(t, forwarded, 1)
	assert.EqualValues(t, 1, r.Stats().Forwarded)
}

func TestDecodeControl(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 27, 61, 129)
	r.Consume(newFrame(0x300, 2))
	r.Consume(newFrame(0x301, 0xFF, 0, 0, 0, 0, 0, 0, 0))
	r.Consume(newFrame(0x302, 0x9C, 0xFF))
	assert.EqualValues(t, 2, value(t, store, 27))
	assert.EqualValues(t, 255, value(t, store, 129))
	assert.EqualValues(t, -100, value(t, store, 61))
	// Regen needs two bytes
	r.Consume(newFrame(0x302, 0x01))
	assert.EqualValues(t, -100, value(t, store, 61))
	assert.EqualValues(t, 1, r.Stats().Malformed)
}

func TestDecodeBroadcasts(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 1, 5, 6, 7, 8, 20, 21, 24)
	r.Consume(newFrame(0x356, 0, 0, 0, 0, 24, 0))
	assert.EqualValues(t, 24, value(t, store, 5))
	// Out of plausible range, ignored
	r.Consume(newFrame(0x356, 0, 0, 0, 0, 0xC8, 0))
	assert.EqualValues(t, 24, value(t, store, 5))
	r.Consume(newFrame(0x373, 0xE8, 0x0C, 0x34, 0x0D, 0xFA, 0x00))
	assert.EqualValues(t, 3304, value(t, store, 21))
	assert.EqualValues(t, 3380, value(t, store, 20))
	assert.EqualValues(t, 25, value(t, store, 24))
	r.Consume(newFrame(0x355, 80, 0))
	assert.EqualValues(t, 80, value(t, store, 7))
	r.Consume(newFrame(0x126, 0, 0, 0, 0, 45, 0))
	assert.EqualValues(t, 45, value(t, store, 6))
	r.Consume(newFrame(0x257, 0xE8, 0x03))
	assert.EqualValues(t, 90, value(t, store, 1))
	r.Consume(newFrame(0x210, 0, 0, 0, 0, 140, 0))
	assert.EqualValues(t, 126, value(t, store, 8))
}

func TestFallbackAndUnknown(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 1)
	r.Consume(newFrame(0x123, 1, 2, 3, 4, 5, 6, 7, 8))
	r.Consume(newFrame(0x124, 1, 2, 3))
	assert.EqualValues(t, 1, r.Stats().Diagnostic)
	assert.EqualValues(t, 1, r.Stats().Unknown)
	assert.Equal(t, 1, store.Len())
}

func TestLiveness(t *testing.T) {
	r, _, _, _ := newTestRouter(t)
	now := time.Unix(1000, 0)
	r.SetClock(func() time.Time { return now })
	assert.False(t, r.Connected())
	r.Consume(newFrame(0x183, 0, 0, 0, 0, 0, 0, 0, 0))
	assert.True(t, r.Connected())
	r.Process(now.Add(4 * time.Second))
	assert.True(t, r.Connected())
	r.Process(now.Add(5*time.Second + time.Millisecond))
	assert.False(t, r.Connected())
}

func TestSendControlOptimistic(t *testing.T) {
	r, store, bm, bus := newTestRouter(t, 27, 61)
	assert.Nil(t, r.SendControl(27, 3))
	// Visible before anything was sent
	assert.EqualValues(t, 3, value(t, store, 27))
	assert.Len(t, bus.sent, 0)
	assert.Nil(t, r.SendControl(61, -50))
	assert.EqualValues(t, -50, value(t, store, 61))
	_, err := bm.Flush()
	assert.Nil(t, err)
	assert.Len(t, bus.sent, 2)
	assert.EqualValues(t, 0x300, bus.sent[0].ID)
	assert.Equal(t, [8]byte{3}, bus.sent[0].Data)
	assert.EqualValues(t, 8, bus.sent[0].DLC)
	assert.Equal(t, [8]byte{0xCE, 0xFF}, bus.sent[1].Data)
	// A later broadcast wins
	r.Consume(newFrame(0x300, 1))
	assert.EqualValues(t, 1, value(t, store, 27))
}

func TestRequest(t *testing.T) {
	r, store, bm, bus := newTestRouter(t, 37)
	assert.Nil(t, r.Request(37))
	// Nothing changes before an answer arrives
	p, _ := store.Get(37)
	assert.True(t, p.Dirty)
	_, _ = bm.Flush()
	assert.EqualValues(t, 0x603, bus.sent[0].ID)
	assert.Equal(t, [8]byte{0x40, 0x00, 0x21, 37, 0, 0, 0, 0}, bus.sent[0].Data)
	assert.ErrorIs(t, r.Request(300), candash.ErrIllegalArgument)
	assert.ErrorIs(t, r.SendControl(37, 1), ErrNotControl)
}

func TestSendControlTxOverflow(t *testing.T) {
	r, store, _, _ := newTestRouter(t, 27)
	// tx ring of 4 holds 3 frames
	for i := 0; i < 3; i++ {
		assert.Nil(t, r.Request(1))
	}
	assert.ErrorIs(t, r.SendControl(27, 2), candash.ErrTxOverflow)
	p, _ := store.Get(27)
	assert.True(t, p.Dirty)
}

func TestTrafficLog(t *testing.T) {
	l := NewTrafficLog(3)
	for i := 0; i < 5; i++ {
		l.Handle(newFrame(uint32(i), byte(i)))
	}
	entries := l.Entries()
	assert.Len(t, entries, 3)
	assert.EqualValues(t, 2, entries[0].ID)
	assert.EqualValues(t, 4, entries[2].ID)
	assert.Equal(t, "04", entries[2].Data)
	assert.Equal(t, "rx", entries[2].Direction)
	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestTrafficLogAsTap(t *testing.T) {
	bus := &mockBus{}
	bm := candash.NewBusManager(bus, 8, 8)
	l := NewTrafficLog(10)
	bm.AddTap(l)
	bm.Handle(newFrame(0x183, 1))
	bm.Dispatch()
	_ = bm.Send(newFrame(0x300, 2))
	entries := l.Entries()
	assert.Len(t, entries, 2)
	assert.Equal(t, "rx", entries[0].Direction)
	assert.Equal(t, "tx", entries[1].Direction)
}
