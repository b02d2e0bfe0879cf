package sdo

import (
	"fmt"
	"time"

	candash "github.com/samsamfire/candash"
)

const (
	ClientBaseId = 0x600
	ServerBaseId = 0x580
	// Index bytes (0x01, 0x20) as used by the motor controller
	DefaultIndex          uint16 = 0x2001
	AlternateIndex        uint16 = 0x2100
	DefaultClientTimeout         = 100 * time.Millisecond
	DefaultRetries               = 3
	DefaultPollInterval          = time.Millisecond
	// Save to flash is a write of this value to parameter 0
	SaveParamId    uint8 = 0
	SaveMagicValue int32 = 6
)

// Command specifiers
const (
	CmdRead          uint8 = 0x40
	CmdWrite         uint8 = 0x23
	CmdReadResponse  uint8 = 0x43
	CmdReadResponse2 uint8 = 0x4B
	CmdWriteResponse uint8 = 0x60
	CmdAbort         uint8 = 0x80
)

var ErrTimeout = fmt.Errorf("sdo %w", candash.ErrTimeout)

type Abort uint32

const (
	AbortToggleBit    Abort = 0x05030000
	AbortTimeout      Abort = 0x05040000
	AbortCmd          Abort = 0x05040001
	AbortSubUnknown   Abort = 0x06090011
	AbortInvalidValue Abort = 0x06090030
	AbortGeneral      Abort = 0x08000000
)

var AbortCodeDescriptionMap = map[Abort]string{
	AbortToggleBit:    "Toggle bit not alternated",
	AbortTimeout:      "SDO protocol timed out",
	AbortCmd:          "Invalid or unknown command",
	AbortSubUnknown:   "Object does not exist",
	AbortInvalidValue: "Value out of range",
	AbortGeneral:      "General error",
}

func (abort Abort) Error() string {
	return fmt.Sprintf("x%x : %s", uint32(abort), abort.Description())
}

func (abort Abort) Description() string {
	description, ok := AbortCodeDescriptionMap[abort]
	if ok {
		return description
	}
	return "Unknown abort code"
}

// Transaction state
type State uint8

const (
	StateIdle State = iota
	StateSent
	StateSucceeded
	StateAborted
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSent:
		return "sent"
	case StateSucceeded:
		return "succeeded"
	case StateAborted:
		return "aborted"
	case StateTimedOut:
		return "timed out"
	}
	return "unknown"
}

// Running transaction counters
type Stats struct {
	Successes uint32 `json:"successes"`
	Failures  uint32 `json:"failures"`
	Timeouts  uint32 `json:"timeouts"`
	LastError string `json:"last_error,omitempty"`
}
