package config

import (
	"fmt"

	"github.com/samsamfire/candash/pkg/immobilizer"
	log "github.com/sirupsen/logrus"
)

// Validate checks the configuration for values the gateway cannot run with
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if c.CAN.NodeID < 1 || c.CAN.NodeID > 127 {
		return fmt.Errorf("can.node_id: %d outside 1..127", c.CAN.NodeID)
	}
	if c.CAN.Interface == "" {
		return fmt.Errorf("can.interface: must be set")
	}
	if c.SDO.TimeoutMs <= 0 {
		return fmt.Errorf("sdo.timeout_ms: must be positive")
	}
	if c.SDO.Retries <= 0 {
		return fmt.Errorf("sdo.retries: must be positive")
	}
	for i, r := range c.Router.BMSRanges {
		if r.End <= r.Start {
			return fmt.Errorf("router.bms_ranges[%d]: empty range x%x..x%x", i, r.Start, r.End)
		}
	}
	if c.Router.ConnectionTimeoutMs <= 0 {
		return fmt.Errorf("router.connection_timeout_ms: must be positive")
	}
	if c.Parameters.Capacity <= 0 {
		return fmt.Errorf("parameters.capacity: must be positive")
	}
	if c.Immobilizer.Enabled {
		if err := c.validateImmobilizer(); err != nil {
			return err
		}
	}
	if c.RFID.Enabled && c.RFID.Port == "" {
		return fmt.Errorf("rfid.port: must be set when rfid is enabled")
	}
	return nil
}

func (c *Config) validateImmobilizer() error {
	imm := c.Immobilizer
	if len(imm.Pin) != immobilizer.PinLength {
		return fmt.Errorf("immobilizer.pin: expected %d digits, got %d", immobilizer.PinLength, len(imm.Pin))
	}
	for _, d := range imm.Pin {
		if d > 9 {
			return fmt.Errorf("immobilizer.pin: digit %d outside 0..9", d)
		}
	}
	for _, tag := range imm.AuthorizedTags {
		if tag.IsGhost() {
			return fmt.Errorf("immobilizer.authorized_tags: %v is the ghost read value", tag)
		}
	}
	if imm.IntervalMs <= 0 {
		return fmt.Errorf("immobilizer.interval_ms: must be positive")
	}
	if imm.HeartbeatTimeoutMs <= 0 {
		return fmt.Errorf("immobilizer.heartbeat_timeout_ms: must be positive")
	}
	if imm.LockedCurrent > imm.UnlockedCurrent {
		return fmt.Errorf("immobilizer: locked_current %d above unlocked_current %d",
			imm.LockedCurrent, imm.UnlockedCurrent)
	}
	return nil
}
