package i2cmaster

import (
	"errors"

	"github.com/amken3d/i2cmaster/platform"
)

// PortID identifies one physical I2C peripheral on the chip (I2C1, I2C2,
// I2C3 per spec.md 6's "peripheral presence" flags).
type PortID uint8

// MaxPorts bounds the fixed bus registry (spec.md 9: "fixed-array bus
// registry"), sized for the largest peripheral count among the STM32
// parts this core targets.
const MaxPorts = 3

var (
	ErrNoPlatform = errors.New("i2cmaster: no platform registered for this port")
	ErrPortRange  = errors.New("i2cmaster: port out of range")
	ErrClosed     = errors.New("i2cmaster: instance already closed")
	ErrNoRecovery = errors.New("i2cmaster: no Recovery configured for this bus")
)

var platforms [MaxPorts]platform.Platform

// RegisterPlatform installs the board-specific collaborator for a physical
// port. Target init code calls this once at startup, following the
// SetDriver/MustDriver singleton-registration idiom common to small
// embedded HAL layers.
func RegisterPlatform(port PortID, p platform.Platform) {
	platforms[port] = p
}
