package gateway

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/config"
	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/param"
	"github.com/samsamfire/candash/pkg/rfid"
	"github.com/stretchr/testify/assert"
)

// Bus with a fake motor controller answering SDO requests of node 3
type device struct {
	mu       sync.Mutex
	listener candash.FrameListener
	sent     []candash.Frame
	values   map[uint8]int32
	silent   bool
}

func newDevice() *device {
	return &device{values: map[uint8]int32{}}
}

func (d *device) Connect(...any) error { return nil }
func (d *device) Disconnect() error    { return nil }

func (d *device) Subscribe(listener candash.FrameListener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listener = listener
	return nil
}

func (d *device) Send(frame candash.Frame) error {
	d.mu.Lock()
	d.sent = append(d.sent, frame)
	listener := d.listener
	if frame.ID != 0x603 || d.silent || listener == nil {
		d.mu.Unlock()
		return nil
	}
	resp := candash.NewFrame(0x583, 0, 8)
	copy(resp.Data[1:4], frame.Data[1:4])
	paramId := frame.Data[3]
	switch frame.Data[0] {
	case 0x40:
		resp.Data[0] = 0x4B
		binary.LittleEndian.PutUint32(resp.Data[4:8], uint32(d.values[paramId]))
	case 0x23:
		resp.Data[0] = 0x60
		d.values[paramId] = int32(binary.LittleEndian.Uint32(frame.Data[4:8]))
	}
	d.mu.Unlock()
	listener.Handle(resp)
	return nil
}

func (d *device) frames(id uint32) []candash.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	var frames []candash.Frame
	for _, frame := range d.sent {
		if frame.ID == id {
			frames = append(frames, frame)
		}
	}
	return frames
}

func (d *device) value(paramId uint8) int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.values[paramId]
}

var testDefinitions = []param.Definition{
	{ID: 1, Name: "Speed", Kind: param.INTEGER16, Min: 0, Max: 300, Unit: "km/h"},
	{ID: 2, Name: "Power", Kind: param.INTEGER16, Min: -100, Max: 100, Unit: "kW"},
	{ID: 3, Name: "Voltage", Kind: param.INTEGER16, Min: 0, Max: 1000, Unit: "V"},
	{ID: 4, Name: "Current", Kind: param.INTEGER16, Min: -500, Max: 500, Unit: "A"},
	{ID: 27, Name: "Gear", Kind: param.UNSIGNED8, Min: 0, Max: 3, Editable: true},
	{ID: 40, Name: "Boost", Kind: param.INTEGER32, Min: 0, Max: 1000, Editable: true},
	{ID: 41, Name: "Ratio", Kind: param.REAL32, Min: 0, Max: 10, Decimals: 2, Editable: true},
}

func newTestGateway(t *testing.T, immobilizerEnabled bool) (*Gateway, *device) {
	cfg := config.Default()
	cfg.Immobilizer.Enabled = immobilizerEnabled
	dev := newDevice()
	gw, err := New(dev, cfg, testDefinitions)
	assert.Nil(t, err)
	assert.Nil(t, gw.Connect())
	return gw, dev
}

func TestNewInvalid(t *testing.T) {
	_, err := New(newDevice(), nil, nil)
	assert.ErrorIs(t, err, candash.ErrIllegalArgument)
	_, err = New(newDevice(), config.Default(), []param.Definition{{ID: 1}, {ID: 1}})
	assert.ErrorIs(t, err, param.ErrDuplicateID)
	gw, err := New(nil, config.Default(), nil)
	assert.Nil(t, err)
	assert.ErrorIs(t, gw.Connect(), candash.ErrNoBus)
}

func TestReadRefreshesStore(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	dev.values[40] = 420
	p, err := gw.Read(40)
	assert.Nil(t, err)
	assert.EqualValues(t, 420, p.Value.Int())
	assert.False(t, p.Dirty)
	_, err = gw.Read(300)
	assert.ErrorIs(t, err, candash.ErrIllegalArgument)
}

func TestReadFailureKeepsCache(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	gw.Store().UpdateInt(40, 7)
	dev.silent = true
	p, err := gw.Read(40)
	assert.NotNil(t, err)
	assert.EqualValues(t, 7, p.Value.Int())
	assert.EqualValues(t, 1, gw.SDO().Stats().Timeouts)
}

func TestWriteThroughSDO(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	assert.Nil(t, gw.Write(40, "250"))
	assert.EqualValues(t, 250, dev.value(40))
	p, _ := gw.Store().Get(40)
	assert.EqualValues(t, 250, p.Value.Int())

	// Out of declared range or not parsable
	assert.ErrorIs(t, gw.Write(40, "2000"), candash.ErrIllegalArgument)
	assert.ErrorIs(t, gw.Write(40, "abc"), candash.ErrIllegalArgument)

}

func TestWriteThenReadFloat(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	assert.Nil(t, gw.Write(41, "2.5"))
	assert.EqualValues(t, 2, dev.value(41))
	p, _ := gw.Store().Get(41)
	assert.Equal(t, param.Float32(2), p.Value)
	p, err := gw.Read(41)
	assert.Nil(t, err)
	assert.Equal(t, param.Float32(2), p.Value)
}

func TestWriteControlIsOptimistic(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	assert.Nil(t, gw.Write(27, "2"))
	p, _ := gw.Store().Get(27)
	assert.EqualValues(t, 2, p.Value.Int())
	// Nothing sent before the next tick
	assert.Len(t, dev.frames(0x300), 0)
	gw.Process(time.Now())
	frames := dev.frames(0x300)
	assert.Len(t, frames, 1)
	assert.EqualValues(t, 2, frames[0].Data[0])
	assert.Len(t, dev.frames(0x603), 0)
}

func TestRequestAnsweredLater(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	dev.values[40] = 99
	assert.Nil(t, gw.Request(40))
	// Flushes the request, the answer is queued
	gw.Process(time.Now())
	requests := dev.frames(0x603)
	assert.Len(t, requests, 1)
	assert.Equal(t, []byte{0x40, 0x00, 0x21, 40}, requests[0].Data[:4])
	// Dispatched as unsolicited response
	gw.Process(time.Now())
	p, _ := gw.Store().Get(40)
	assert.EqualValues(t, 99, p.Value.Int())
	assert.EqualValues(t, 1, gw.Router().Stats().Forwarded)
}

func TestProcessDecodes(t *testing.T) {
	gw, _ := newTestGateway(t, false)
	assert.False(t, gw.Router().Connected())
	frame := candash.NewFrame(0x183, 0, 8)
	binary.LittleEndian.PutUint16(frame.Data[0:2], 80)
	binary.LittleEndian.PutUint16(frame.Data[2:4], 400)
	binary.LittleEndian.PutUint16(frame.Data[4:6], uint16(0xFFF6))
	binary.LittleEndian.PutUint16(frame.Data[6:8], 25)
	gw.BusManager().Handle(frame)
	gw.Process(time.Now())
	assert.True(t, gw.Router().Connected())
	for id, expected := range map[uint16]int64{1: 80, 3: 400, 4: -10, 2: 25} {
		p, ok := gw.Store().Get(id)
		assert.True(t, ok)
		assert.Equal(t, expected, p.Value.Int(), id)
	}
	entries := gw.Traffic().Entries()
	assert.Len(t, entries, 1)
	assert.EqualValues(t, 0x183, entries[0].ID)
}

func TestSendRaw(t *testing.T) {
	gw, dev := newTestGateway(t, false)
	assert.Nil(t, gw.SendRaw(0x123, "01 02 03"))
	gw.Process(time.Now())
	frames := dev.frames(0x123)
	assert.Len(t, frames, 1)
	assert.EqualValues(t, 3, frames[0].DLC)
	assert.Equal(t, []byte{1, 2, 3}, frames[0].Payload())
	assert.ErrorIs(t, gw.SendRaw(0x800, "00"), candash.ErrIllegalArgument)
	assert.ErrorIs(t, gw.SendRaw(0x123, "000102030405060708"), candash.ErrIllegalArgument)
	assert.ErrorIs(t, gw.SendRaw(0x123, "zz"), candash.ErrIllegalArgument)
}

func TestImmobilizerEnforcedEveryInterval(t *testing.T) {
	gw, dev := newTestGateway(t, true)
	start := time.Unix(1000, 0)
	gw.Process(start)
	gw.Process(start.Add(50 * time.Millisecond))
	gw.Process(start.Add(100 * time.Millisecond))
	writes := dev.frames(0x603)
	assert.Len(t, writes, 2)
	for _, w := range writes {
		assert.Equal(t, []byte{0x23, 0x00, 0x21, 37}, w.Data[:4])
	}
	assert.EqualValues(t, 0, dev.value(37))
	gw.Immobilizer().Unlock()
	gw.Process(start.Add(200 * time.Millisecond))
	assert.EqualValues(t, 500, dev.value(37))
}

func TestSnapshot(t *testing.T) {
	gw, _ := newTestGateway(t, true)
	now := time.Now()
	gw.Store().UpdateInt(1, 42)
	snapshot := gw.Snapshot(now)
	assert.Len(t, snapshot.Parameters, len(testDefinitions))
	assert.Equal(t, "Speed", snapshot.Parameters[0].Name)
	assert.EqualValues(t, 42, snapshot.Parameters[0].Value)
	assert.Equal(t, "42 km/h", snapshot.Parameters[0].Formatted)
	assert.EqualValues(t, -1, snapshot.Parameters[1].AgeMs)
	assert.NotNil(t, snapshot.Immobilizer)
	assert.True(t, snapshot.Immobilizer.Locked)

	gw, _ = newTestGateway(t, false)
	assert.Nil(t, gw.Snapshot(now).Immobilizer)
	assert.Nil(t, gw.Immobilizer())
}

func TestPendingDigitOperations(t *testing.T) {
	gw, _ := newTestGateway(t, true)
	assert.Nil(t, gw.SelectDigit(1))
	assert.Nil(t, gw.ConfirmDigit())
	assert.Nil(t, gw.NextDigit())
	assert.Nil(t, gw.ConfirmDigit())
	assert.Nil(t, gw.SelectDigit(4))
	assert.Nil(t, gw.PrevDigit())
	assert.Nil(t, gw.ConfirmDigit())
	assert.Equal(t, 3, gw.Immobilizer().PinPosition())
	assert.Nil(t, gw.NextDigit())
	assert.Nil(t, gw.ConfirmDigit())
	assert.Equal(t, immobilizer.Unlocked, gw.Immobilizer().State())
	assert.ErrorIs(t, gw.SelectDigit(10), candash.ErrIllegalArgument)

	assert.Nil(t, gw.Toggle())
	assert.Equal(t, immobilizer.Locked, gw.Immobilizer().State())
	assert.Nil(t, gw.SetAutoLock(true))
	assert.True(t, gw.Snapshot(time.Now()).Immobilizer.AutoLock)

	gw, _ = newTestGateway(t, false)
	for _, op := range []func() error{gw.Toggle, gw.NextDigit, gw.PrevDigit, gw.ConfirmDigit} {
		assert.ErrorIs(t, op(), ErrImmobilizerDisabled)
	}
	assert.ErrorIs(t, gw.SelectDigit(1), ErrImmobilizerDisabled)
	assert.ErrorIs(t, gw.SetAutoLock(true), ErrImmobilizerDisabled)
}

type tagReader struct {
	mu   sync.Mutex
	tags []rfid.Tag
}

func (r *tagReader) Read() (rfid.Tag, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tags) == 0 {
		time.Sleep(time.Millisecond)
		return rfid.Tag{}, false, nil
	}
	tag := r.tags[0]
	r.tags = r.tags[1:]
	return tag, true, nil
}

func (r *tagReader) Close() error { return nil }

func TestRunPresentsTags(t *testing.T) {
	gw, _ := newTestGateway(t, true)
	gw.SetPeriod(time.Millisecond)
	gw.SetTagReader(&tagReader{tags: []rfid.Tag{rfid.GhostTag, {0xDE, 0xAD, 0xBE, 0xEF}}})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- gw.Run(ctx) }()
	assert.Eventually(t, func() bool {
		return gw.Immobilizer().State() == immobilizer.Unlocked
	}, time.Second, time.Millisecond)
	cancel()
	assert.Nil(t, <-done)
	gw.Disconnect()
}
