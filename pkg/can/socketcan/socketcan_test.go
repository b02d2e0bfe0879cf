package socketcan

import (
	"testing"
	"time"

	sockcan "github.com/brutella/can"
	candash "github.com/samsamfire/candash"
	"github.com/stretchr/testify/assert"
)

func TestFrameConversion(t *testing.T) {
	frame := candash.Frame{ID: 0x603, DLC: 12, Data: [8]byte{0x40, 0x01, 0x20, 0x05}}
	out := toSocketcan(frame)
	assert.EqualValues(t, 0x603, out.ID)
	assert.EqualValues(t, 8, out.Length)
	assert.Equal(t, frame.Data, out.Data)

	now := time.Unix(10, 0)
	in := fromSocketcan(sockcan.Frame{ID: 0x583, Length: 8, Data: [8]byte{0x4B}}, now)
	assert.EqualValues(t, 0x583, in.ID)
	assert.EqualValues(t, 8, in.DLC)
	assert.Equal(t, candash.Inbound, in.Direction)
	assert.Equal(t, now, in.Timestamp)
}
