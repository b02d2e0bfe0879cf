package immobilizer

import (
	"fmt"

	candash "github.com/samsamfire/candash"
	log "github.com/sirupsen/logrus"
)

// EnterDigit appends a digit to the PIN buffer. Once the buffer is
// complete it is validated and cleared, unlocking on a match.
// Digits are ignored while unlocked.
// No lockout is applied after failed attempts.
func (imm *Immobilizer) EnterDigit(d uint8) error {
	if d > 9 {
		return fmt.Errorf("%w : digit %d", candash.ErrIllegalArgument, d)
	}
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.enterDigit(d)
	return nil
}

// ConfirmDigit enters the currently selected digit
func (imm *Immobilizer) ConfirmDigit() {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.enterDigit(imm.digit)
}

func (imm *Immobilizer) enterDigit(d uint8) {
	if imm.state != Locked || imm.pinPosition >= PinLength {
		return
	}
	imm.pin[imm.pinPosition] = d
	imm.pinPosition++
	if imm.pinPosition < PinLength {
		return
	}
	if imm.pin == imm.config.Pin {
		imm.setState(Unlocked)
		return
	}
	log.Warnf("[IMMOBILIZER] wrong PIN")
	imm.clearPin()
}

// Number of digits entered so far
func (imm *Immobilizer) PinPosition() int {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return imm.pinPosition
}

// Currently selected digit
func (imm *Immobilizer) Digit() uint8 {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	return imm.digit
}

func (imm *Immobilizer) SetDigit(d uint8) error {
	if d > 9 {
		return fmt.Errorf("%w : digit %d", candash.ErrIllegalArgument, d)
	}
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.digit = d
	return nil
}

func (imm *Immobilizer) IncrementDigit() {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	imm.digit = (imm.digit + 1) % 10
}

func (imm *Immobilizer) DecrementDigit() {
	imm.mu.Lock()
	defer imm.mu.Unlock()
	if imm.digit == 0 {
		imm.digit = 9
	} else {
		imm.digit--
	}
}
