package immobilizer

import (
	"encoding/binary"
	"time"

	candash "github.com/samsamfire/candash"
	"github.com/samsamfire/candash/pkg/rfid"
	log "github.com/sirupsen/logrus"
)

// Process runs the cyclic part : auto lock policy, then enforcement and
// status frame once per interval. Enforcement errors are returned but the
// write is not retried before the next interval.
func (imm *Immobilizer) Process(now time.Time) error {
	imm.mu.Lock()
	if imm.config.AutoLock && imm.state == Unlocked && now.Sub(imm.lastHeartbeat) >= imm.config.HeartbeatTimeout {
		log.Warnf("[IMMOBILIZER] heartbeat lost for %v, locking", now.Sub(imm.lastHeartbeat))
		imm.setState(Locked)
	}
	due := imm.lastEnforce.IsZero() || now.Sub(imm.lastEnforce) >= imm.config.Interval
	if due {
		imm.lastEnforce = now
	}
	imm.mu.Unlock()
	if !due {
		return nil
	}
	if imm.config.StatusFrame {
		imm.sendStatus()
	}
	return imm.Enforce()
}

// Current limit for the present state
func (imm *Immobilizer) CurrentLimit() int32 {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return imm.currentLimit()
}

func (imm *Immobilizer) currentLimit() int32 {
	if imm.state == Unlocked {
		return imm.config.UnlockedCurrent
	}
	return imm.config.LockedCurrent
}

// Enforce writes the current limit once
func (imm *Immobilizer) Enforce() error {
	imm.mu.Lock()
	value := imm.currentLimit()
	imm.mu.Unlock()

	err := imm.writer.WriteOnceIndex(imm.config.Index, imm.config.EnforceParam, value)

	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.enforcements++
	if err != nil {
		imm.failures++
		log.Debugf("[IMMOBILIZER] enforcing %v = %v failed : %v", imm.config.EnforceParam, value, err)
		return err
	}
	log.Tracef("[IMMOBILIZER] enforced %v = %v", imm.config.EnforceParam, value)
	return nil
}

func (imm *Immobilizer) sendStatus() {
	imm.mu.Lock()
	limit := imm.config.StatusLocked
	if imm.state == Unlocked {
		limit = imm.config.StatusUnlocked
	}
	imm.mu.Unlock()
	frame := candash.NewFrame(imm.config.StatusId, 0, 8)
	binary.LittleEndian.PutUint16(frame.Data[4:6], limit)
	err := imm.sender.Enqueue(frame)
	if err != nil {
		log.Debugf("[IMMOBILIZER] status frame : %v", err)
	}
}

// Handle implements [candash.FrameListener], tracking the heartbeat.
// It is meant to be added as a bus manager tap.
func (imm *Immobilizer) Handle(frame candash.Frame) {
	if frame.Direction != candash.Inbound || frame.ID != imm.config.HeartbeatId {
		return
	}
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.lastHeartbeat = imm.now()
}

func (imm *Immobilizer) LastHeartbeat() time.Time {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return imm.lastHeartbeat
}

func (imm *Immobilizer) HeartbeatActive(now time.Time) bool {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return now.Sub(imm.lastHeartbeat) < imm.config.HeartbeatTimeout
}

// Enable or disable the auto lock policy
func (imm *Immobilizer) SetAutoLock(enabled bool) {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.config.AutoLock = enabled
}

func (imm *Immobilizer) Authorized(tag rfid.Tag) bool {
	for _, authorized := range imm.config.AuthorizedTags {
		if authorized == tag {
			return true
		}
	}
	return false
}

// PresentTag toggles the lock state for an authorized tag.
// Ghost reads and tags presented within the debounce window are ignored.
// Returns true if the state was toggled.
func (imm *Immobilizer) PresentTag(tag rfid.Tag) bool {
	if tag.IsGhost() {
		return false
	}
	if !imm.Authorized(tag) {
		log.Warnf("[IMMOBILIZER] unauthorized tag %v", tag)
		return false
	}
	imm.mu.Lock()
	defer imm.mu.Unlock()
	now := imm.now()
	if !imm.lastTag.IsZero() && now.Sub(imm.lastTag) < imm.config.TagDebounce {
		log.Debugf("[IMMOBILIZER] tag %v debounced", tag)
		return false
	}
	imm.lastTag = now
	imm.toggle()
	return true
}

type Status struct {
	State           string    `json:"state"`
	Locked          bool      `json:"locked"`
	PinPosition     int       `json:"pin_position"`
	Digit           uint8     `json:"digit"`
	CurrentLimit    int32     `json:"current_limit"`
	LastHeartbeat   time.Time `json:"last_heartbeat"`
	HeartbeatActive bool      `json:"heartbeat_active"`
	AutoLock        bool      `json:"auto_lock"`
	Enforcements    uint32    `json:"enforcements"`
	Failures        uint32    `json:"enforce_failures"`
}

func (imm *Immobilizer) Status(now time.Time) Status {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return Status{
		State:           imm.state.String(),
		Locked:          imm.state == Locked,
		PinPosition:     imm.pinPosition,
		Digit:           imm.digit,
		CurrentLimit:    imm.currentLimit(),
		LastHeartbeat:   imm.lastHeartbeat,
		HeartbeatActive: now.Sub(imm.lastHeartbeat) < imm.config.HeartbeatTimeout,
		AutoLock:        imm.config.AutoLock,
		Enforcements:    imm.enforcements,
		Failures:        imm.failures,
	}
}
