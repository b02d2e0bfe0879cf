package can

import (
	"testing"

	candash "github.com/samsamfire/candash"
	"github.com/stretchr/testify/assert"
)

type nullBus struct{ channel string }

func (b *nullBus) Connect(...any) error                           { return nil }
func (b *nullBus) Disconnect() error                              { return nil }
func (b *nullBus) Send(frame candash.Frame) error                 { return nil }
func (b *nullBus) Subscribe(callback candash.FrameListener) error { return nil }

func TestRegistry(t *testing.T) {
	RegisterInterface("null", func(channel string) (candash.Bus, error) {
		return &nullBus{channel: channel}, nil
	})
	assert.Contains(t, Interfaces(), "null")
	bus, err := NewBus("null", "test0", 500000)
	assert.Nil(t, err)
	assert.Equal(t, "test0", bus.(*nullBus).channel)
	_, err = NewBus("unknown", "test0", 500000)
	assert.NotNil(t, err)
}
