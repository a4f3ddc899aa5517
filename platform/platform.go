// Package platform defines the board-specific collaborators the driver core
// asks for rather than owns (spec.md 1's out-of-scope list): clock/pin/IRQ
// setup and bus-recovery bit-banging. This mirrors the common split between
// portable core logic and a target-specific HAL reached through a small
// interface plus a registration function, rather than a concrete struct.
package platform

import (
	"context"

	"github.com/amken3d/i2cmaster/regs"
)

// Platform is everything the Lifecycle needs from the board that isn't part
// of the I2C register file itself (spec.md 4.7's "up on first reference").
type Platform interface {
	// Registers returns the register accessor for this port. On a tinygo
	// build this is backed by real MMIO; on host builds, typically a
	// regs/simhw.Device or regs.Sim.
	Registers() regs.Regs

	// PeripheralClockHz reports the clock feeding the I2C peripheral, used
	// to program CR2's FREQ field and to clamp SetFrequency requests
	// (spec.md 6: "clamps to 100 kHz if peripheral clock < 4 MHz").
	PeripheralClockHz() uint32

	// EnableClock ungates and pulses reset on the peripheral's clock
	// domain.
	EnableClock()

	// DisableClock gates the peripheral's clock domain on last release.
	DisableClock()

	// ConfigurePins puts SCL/SDA into I2C alternate function, open-drain,
	// with pull-up (spec.md 6's hardware surface).
	ConfigurePins()

	// ReleasePins returns SCL/SDA to their power-on-reset function.
	ReleasePins()

	// AttachIRQ wires handler to the port's event and error IRQ vectors.
	// handler is Dispatcher.HandleInterrupt; it must be safe to call from
	// interrupt context. Only called when the bus is opened in interrupt
	// dispatch mode.
	AttachIRQ(handler func(now uint32))

	// DetachIRQ disables and detaches the IRQ lines AttachIRQ wired.
	DetachIRQ()
}

// Recovery performs the GPIO bit-banging bus-recovery procedure spec.md 4.7
// describes, with the I2C peripheral's alternate function released so the
// pins can be driven directly.
type Recovery interface {
	// Recover drives SDA high, clocks up to 10 SCL pulses watching for a
	// stretched slave, then emits a manual START/STOP to leave the bus
	// idle. ctx bounds the whole procedure; a recovery that can't make
	// progress (SDA stuck low past the pulse budget) returns ctx.Err() or
	// an implementation-specific error, never hangs.
	Recover(ctx context.Context) error
}

// FSMCController is the optional pre/post-transfer hook spec.md 6's FSMC
// workaround needs: some STM32 parts share pins between I2C1 and the FSMC
// external-memory controller, and I2C1 STOP will not complete while FSMC is
// enabled. SetEnabled(false) is called before a transfer and SetEnabled(true)
// after, only when WithFSMCWorkaround installs a controller.
type FSMCController interface {
	SetEnabled(enabled bool)
}
