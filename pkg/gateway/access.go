package gateway

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/immobilizer"
	"github.com/samsamfire/candash/pkg/param"
	log "github.com/sirupsen/logrus"
)

// Highest parameter id reachable through the one byte SDO selector
const maxSdoParam = 0xFF

func checkSdoParam(id uint16) error {
	if id > maxSdoParam {
		return fmt.Errorf("%w : param %v not addressable", candash.ErrIllegalArgument, id)
	}
	return nil
}

// Read a parameter through SDO.
// The store is refreshed on success, on failure the cached value is returned
// along with the error.
func (gw *Gateway) Read(id uint16) (param.Parameter, error) {
	if err := checkSdoParam(id); err != nil {
		return param.Parameter{}, err
	}
	_, err := gw.client.Read(uint8(id))
	p, ok := gw.store.Get(id)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, fmt.Errorf("%w : param %v not declared", candash.ErrIllegalArgument, id)
	}
	return p, nil
}

// Encode a textual value for a parameter, per its declared kind.
// Undeclared parameters are treated as 32 bit signed integers.
func (gw *Gateway) encode(id uint16, value string) (param.Value, error) {
	p, declared := gw.store.Get(id)
	kind := param.INTEGER32
	if declared {
		kind = p.Kind
	}
	v, err := param.ParseValue(kind, value)
	if err != nil {
		return nil, fmt.Errorf("%w : %v", candash.ErrIllegalArgument, err)
	}
	if declared && !p.InRange(v.Float()) {
		return nil, fmt.Errorf("%w : %v outside [%v, %v]", candash.ErrIllegalArgument, v, p.Min, p.Max)
	}
	return v, nil
}

// Write a parameter.
// Parameters with a direct control frame are set through the router,
// others through a confirmed SDO write. The device only holds integers,
// floating values are truncated the same way reads are interpreted.
func (gw *Gateway) Write(id uint16, value string) error {
	v, err := gw.encode(id, value)
	if err != nil {
		return err
	}
	raw := int32(v.Int())
	if gw.router.IsControl(id) {
		return gw.router.SendControl(id, raw)
	}
	if err := checkSdoParam(id); err != nil {
		return err
	}
	if err := gw.client.Write(uint8(id), raw); err != nil {
		return err
	}
	gw.store.UpdateInt(id, int64(raw))
	return nil
}

// Save parameters to the device non volatile memory
func (gw *Gateway) Save() error {
	return gw.client.Save()
}

// Queue a fire-and-forget read, the answer lands in the store
// whenever it arrives
func (gw *Gateway) Request(id uint16) error {
	return gw.router.Request(id)
}

// Queue a raw frame, data is hex encoded with optional separators
func (gw *Gateway) SendRaw(id uint32, data string) error {
	if id > candash.CanSffMask {
		return fmt.Errorf("%w : id x%x", candash.ErrIllegalArgument, id)
	}
	cleaned := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(data)
	payload, err := hex.DecodeString(cleaned)
	if err != nil || len(payload) > candash.MaxDLC {
		return fmt.Errorf("%w : data %q", candash.ErrIllegalArgument, data)
	}
	frame := candash.NewFrame(id, 0, uint8(len(payload)))
	copy(frame.Data[:], payload)
	log.Debugf("[GATEWAY] raw frame %v", frame)
	return gw.bm.Enqueue(frame)
}

// Parse a parameter or frame identifier, decimal or 0x prefixed
func ParseID(s string, max uint64) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil || id > max {
		return 0, fmt.Errorf("%w : id %q", candash.ErrIllegalArgument, s)
	}
	return id, nil
}

func (gw *Gateway) activeImmobilizer() (*immobilizer.Immobilizer, error) {
	if gw.imm == nil {
		return nil, ErrImmobilizerDisabled
	}
	return gw.imm, nil
}

func (gw *Gateway) Lock() error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.Lock()
	return nil
}

func (gw *Gateway) Unlock() error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.Unlock()
	return nil
}

func (gw *Gateway) Toggle() error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.Toggle()
	return nil
}

// Enable or disable locking on heartbeat loss
func (gw *Gateway) SetAutoLock(enabled bool) error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.SetAutoLock(enabled)
	return nil
}

// Enter one PIN digit, the PIN is checked once complete
func (gw *Gateway) EnterDigit(d uint8) error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	return imm.EnterDigit(d)
}

// Pending digit operations, as driven by a rotary input :
// select or step the pending digit, then confirm it
func (gw *Gateway) SelectDigit(d uint8) error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	return imm.SetDigit(d)
}

func (gw *Gateway) NextDigit() error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.IncrementDigit()
	return nil
}

func (gw *Gateway) PrevDigit() error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.DecrementDigit()
	return nil
}

func (gw *Gateway) ConfirmDigit() error {
	imm, err := gw.activeImmobilizer()
	if err != nil {
		return err
	}
	imm.ConfirmDigit()
	return nil
}
