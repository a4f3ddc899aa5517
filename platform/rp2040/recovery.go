//go:build rp2040

// Package rp2040 provides a platform.Recovery implementation for the RP2040
// target. The RP2040's I2C block is a Synopsys DesignWare core, not a
// register-compatible STM32 I2C peripheral, so this package does not
// implement platform.Platform itself, only the GPIO bus-recovery bit-bang
// spec.md 4.7 describes: one PIO state machine generating the pulse train,
// instead of a busy-wait loop competing with Go's scheduler for pulse
// width accuracy.
package rp2040

import (
	"context"
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// ErrSDAStuckLow is returned when SDA is still low after the pulse budget,
// meaning a slave is holding the bus and recovery could not clear it.
var ErrSDAStuckLow = errors.New("rp2040: SDA stuck low after recovery pulse budget")

// buildClockPulseProgram generates one SCL low/high pulse per FIFO word
// pulled: a single pulse per command rather than a counted burst, since
// the SDA check between pulses happens in Go, not in the state machine.
// SCL is not read back, so a slave stretching the clock is not detected.
func buildClockPulseProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		asm.Pull(false, true).Encode(),                   // 0: pull block
		asm.Set(rp2pio.SetDestPins, 0).Delay(7).Encode(),  // 1: set pins, 0 [7] (SCL low)
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(),  // 2: set pins, 1 [7] (SCL high)
	}
}

const clockPulseProgramOrigin = 0

// maxRecoveryPulses bounds the clock-out loop spec.md 4.7 describes
// ("issue up to 10 SCL pulses").
const maxRecoveryPulses = 10

// Recovery bit-bangs SCL with a PIO state machine and samples SDA directly
// from Go between pulses, stopping early the moment SDA reads high.
type Recovery struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	sclPin machine.Pin
	sdaPin machine.Pin

	offset uint8
	ready  bool
}

// New builds a Recovery bit-banging sclPin/sdaPin through the given PIO
// block and state machine index (0 for PIO0, 1 for PIO1; sm is 0-3).
func New(pioNum, sm uint8, sclPin, sdaPin machine.Pin) *Recovery {
	var pioHW *rp2pio.PIO
	if pioNum == 0 {
		pioHW = rp2pio.PIO0
	} else {
		pioHW = rp2pio.PIO1
	}
	return &Recovery{
		pio:    pioHW,
		sm:     pioHW.StateMachine(sm),
		sclPin: sclPin,
		sdaPin: sdaPin,
	}
}

func (r *Recovery) init() error {
	if r.ready {
		return nil
	}
	r.sm.TryClaim()

	program := buildClockPulseProgram()
	offset, err := r.pio.AddProgram(program, clockPulseProgramOrigin)
	if err != nil {
		return err
	}
	r.offset = offset

	r.sclPin.Configure(machine.PinConfig{Mode: r.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(r.sclPin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1000, 0) // slow enough for a standard-mode SCL period

	r.sm.Init(offset, cfg)
	r.sm.SetPindirsConsecutive(r.sclPin, 1, true)
	r.sm.SetPinsConsecutive(r.sclPin, 1, true) // idle high
	r.sm.SetEnabled(true)

	r.ready = true
	return nil
}

// Recover implements platform.Recovery.
func (r *Recovery) Recover(ctx context.Context) error {
	if err := r.init(); err != nil {
		return err
	}

	r.sdaPin.Configure(machine.PinConfig{Mode: machine.PinInput})

	for i := 0; i < maxRecoveryPulses; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.sdaPin.Get() {
			break
		}
		r.pulse()
		if i == maxRecoveryPulses-1 && !r.sdaPin.Get() {
			return ErrSDAStuckLow
		}
	}

	return r.manualStop()
}

func (r *Recovery) pulse() {
	for r.sm.IsTxFIFOFull() {
	}
	r.sm.TxPut(0)
}

// manualStop drives a manual START then STOP pattern directly from Go, since
// these are one-shot edges rather than a repeated pulse train and don't need
// PIO's timing precision. SDA is forced high before SCL so the START's
// high-to-low SDA transition is well-defined regardless of whatever level
// the pin's output register last held from input mode.
func (r *Recovery) manualStop() error {
	r.sm.SetEnabled(false)
	r.sclPin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.sdaPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	r.sdaPin.High()
	r.sclPin.High()
	r.sdaPin.Low()

	r.sclPin.High()
	r.sdaPin.High()

	return nil
}
