package router

import (
	"encoding/binary"

	candash "github.com/samsamfire/candash"
	log "github.com/sirupsen/logrus"
)

type result uint8

const (
	resultUnknown result = iota
	resultDecoded
	resultForwarded
	resultDiagnostic
	resultMalformed
)

// SignExtend24 extends a 24 bit two's complement value to 32 bits
func SignExtend24(raw uint32) int32 {
	raw &= 0xFFFFFF
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw)
}

func int16At(data []byte, offset int) int64 {
	return int64(int16(binary.LittleEndian.Uint16(data[offset:])))
}

func uint16At(data []byte, offset int) int64 {
	return int64(binary.LittleEndian.Uint16(data[offset:]))
}

// Broadcast frames with a fixed layout, decoded after direct control frames
type broadcast struct {
	minLength int
	decode    func(r *Router, data []byte)
}

var broadcasts = map[uint32]broadcast{
	// Motor temperature, shares its id with another device so implausible values are skipped
	0x356: {6, func(r *Router, data []byte) {
		temp := int16At(data, 4)
		if temp >= 0 && temp <= 150 {
			r.update(5, temp)
		}
	}},
	// Min/max cell voltage (mV) and max cell temperature (0.1 °C)
	0x373: {6, func(r *Router, data []byte) {
		r.update(21, uint16At(data, 0))
		r.update(20, uint16At(data, 2))
		r.update(24, uint16At(data, 4)/10)
	}},
	0x355: {2, func(r *Router, data []byte) {
		r.update(7, int16At(data, 0))
	}},
	0x126: {6, func(r *Router, data []byte) {
		r.update(6, int16At(data, 4))
	}},
	// Speed, gain 0.09
	0x257: {2, func(r *Router, data []byte) {
		r.update(1, int16At(data, 0)*9/100)
	}},
	// 12V supply in decivolts, gain 0.09 V
	0x210: {6, func(r *Router, data []byte) {
		r.update(8, int16At(data, 4)*9/10)
	}},
}

// decode applies the classification rules in order, first match wins
func (r *Router) decode(frame candash.Frame) result {
	id := frame.ID
	data := frame.Payload()

	for _, cellRange := range r.config.BMSRanges {
		if cellRange.Contains(id) {
			base := int(id-cellRange.Start) * 4
			count := len(data) / 2
			if count > 4 {
				count = 4
			}
			for i := 0; i < count; i++ {
				r.cells.Set(base+i, binary.LittleEndian.Uint16(data[i*2:]))
			}
			log.Tracef("[ROUTER][RX] cells %d..%d : % X", base, base+count-1, data)
			return resultDecoded
		}
	}

	if id == r.config.SdoRxBase+uint32(r.config.NodeID) {
		if r.sdoHandler != nil {
			r.sdoHandler(frame)
		}
		return resultForwarded
	}

	if mapping, ok := r.config.PDOs[id]; ok {
		count := len(data) / 2
		if count > 4 {
			count = 4
		}
		for i := 0; i < count && i < len(mapping); i++ {
			r.update(mapping[i], int16At(data, i*2))
		}
		return resultDecoded
	}

	if sensor, ok := r.config.Sensors[id]; ok {
		if len(data) != 6 {
			return resultMalformed
		}
		raw := uint32(data[2]) | uint32(data[3])<<8 | uint32(data[4])<<16
		value := SignExtend24(raw)
		scaled := value
		if sensor.Divisor != 0 {
			scaled = value / sensor.Divisor
		}
		log.Tracef("[ROUTER][RX] sensor %s raw %d scaled %d", sensor.Name, value, scaled)
		if sensor.Target != NoTarget {
			r.update(sensor.Target, int64(scaled))
		}
		return resultDecoded
	}

	for _, control := range r.config.Controls {
		if control.ID != id {
			continue
		}
		if len(data) < control.Size {
			return resultMalformed
		}
		switch control.Size {
		case 1:
			r.update(control.Param, int64(data[0]))
		default:
			r.update(control.Param, int16At(data, 0))
		}
		return resultDecoded
	}

	if b, ok := broadcasts[id]; ok {
		if len(data) < b.minLength {
			return resultMalformed
		}
		b.decode(r, data)
		return resultDecoded
	}

	if len(data) == 8 {
		log.Tracef("[ROUTER][RX] x%x : %d %d %d %d", id,
			int16At(data, 0), int16At(data, 2), int16At(data, 4), int16At(data, 6))
		return resultDiagnostic
	}
	return resultUnknown
}
