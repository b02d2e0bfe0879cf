package router

import (
	"encoding/binary"
	"errors"
	"fmt"

	candash "github.com/samsamfire/candash"
	log "github.com/sirupsen/logrus"
)

var ErrNotControl = errors.New("parameter has no direct control frame")

const sdoRead uint8 = 0x40

func (r *Router) control(id uint16) (Control, bool) {
	for _, control := range r.config.Controls {
		if control.Param == id {
			return control, true
		}
	}
	return Control{}, false
}

// IsControl reports whether the parameter is set through a direct control frame
func (r *Router) IsControl(id uint16) bool {
	_, ok := r.control(id)
	return ok
}

func (r *Router) sdoFrame(command uint8, id uint16, value int32) (candash.Frame, error) {
	if id > 0xFF {
		return candash.Frame{}, fmt.Errorf("%w : parameter %d does not fit a sub-index", candash.ErrIllegalArgument, id)
	}
	frame := candash.NewFrame(r.config.SdoTxBase+uint32(r.config.NodeID), 0, 8)
	frame.Data[0] = command
	binary.LittleEndian.PutUint16(frame.Data[1:3], r.config.SdoIndex)
	frame.Data[3] = uint8(id)
	binary.LittleEndian.PutUint32(frame.Data[4:8], uint32(value))
	return frame, nil
}

// Request queues a fire-and-forget SDO read.
// The response, if any, is handled as an unsolicited SDO response.
func (r *Router) Request(id uint16) error {
	frame, err := r.sdoFrame(sdoRead, id, 0)
	if err != nil {
		return err
	}
	log.Debugf("[ROUTER][TX] request param %v", id)
	return r.bm.Enqueue(frame)
}

// SendControl queues the direct control frame of a parameter and
// optimistically updates the store once the frame is queued.
func (r *Router) SendControl(id uint16, value int32) error {
	control, ok := r.control(id)
	if !ok {
		return fmt.Errorf("%w : %d", ErrNotControl, id)
	}
	frame := candash.NewFrame(control.ID, 0, 8)
	switch control.Size {
	case 1:
		frame.Data[0] = uint8(value)
	default:
		binary.LittleEndian.PutUint16(frame.Data[0:2], uint16(value))
	}
	err := r.bm.Enqueue(frame)
	if err != nil {
		return err
	}
	log.Debugf("[ROUTER][TX] control x%x param %v = %v", control.ID, id, value)
	r.update(id, int64(value))
	return nil
}
