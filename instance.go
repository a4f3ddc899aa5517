package i2cmaster

import (
	"context"

	"github.com/amken3d/i2cmaster/clock"
	"github.com/amken3d/i2cmaster/regs"
	"github.com/amken3d/i2cmaster/xfer"
)

// Re-exported so callers building a Message chain don't need to import
// package xfer directly (spec.md 6's Message record).
type (
	Message = xfer.Message
	Flag    = xfer.Flag
)

const (
	FlagRead      = xfer.FlagRead
	FlagTenBit    = xfer.FlagTenBit
	FlagNoRestart = xfer.FlagNoRestart
)

// Instance is a per-caller handle onto a shared Bus (spec.md 3's "per-caller
// handle"): the target address and address width Write/Read use, and a copy
// of the frequency this handle last stored. Transfers are clocked from the
// Bus's own frequency, which SetFrequency on any Instance of the port sets.
type Instance struct {
	bus    *Bus
	addr   uint16
	tenBit bool
	freqHz uint32
}

// SetFrequency clamps and stores the target bus frequency for the next
// transfer, returning the value actually stored (spec.md 6).
func (in *Instance) SetFrequency(hz uint32) uint32 {
	b := in.bus
	b.disp.Lock()
	defer b.disp.Unlock()

	clamped := clock.ClampFrequency(b.plat.PeripheralClockHz(), hz)
	b.freqHz = clamped
	in.freqHz = clamped
	return clamped
}

// SetAddress stores the slave address this Instance's Write/Read/Tx shorthand
// target, setting the 10-BIT flag iff nbits==10 (spec.md 6).
func (in *Instance) SetAddress(addr uint16, nbits int) {
	in.addr = addr
	in.tenBit = nbits == 10
}

func (in *Instance) flags(extra xfer.Flag) xfer.Flag {
	f := extra
	if in.tenBit {
		f |= FlagTenBit
	}
	return f
}

// Write is shorthand for a single write message to the Instance's current
// address (spec.md 6).
func (in *Instance) Write(ctx context.Context, buf []byte) (int, error) {
	msg := Message{Addr: in.addr, Flags: in.flags(0), Buffer: buf}
	if err := in.Transfer(ctx, []Message{msg}); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Read is shorthand for a single read message to the Instance's current
// address (spec.md 6).
func (in *Instance) Read(ctx context.Context, buf []byte) (int, error) {
	msg := Message{Addr: in.addr, Flags: in.flags(FlagRead), Buffer: buf}
	if err := in.Transfer(ctx, []Message{msg}); err != nil {
		return 0, err
	}
	return len(buf), nil
}

// Transfer runs an arbitrary message chain through the dispatcher
// (spec.md 6's transfer(msgs[])). ctx's deadline, if any and shorter than
// the dispatcher's configured timeout, isn't separately enforced — the
// dispatcher's own TimeoutPolicy is the transfer's clock, per spec.md 5's
// "no asynchronous cancellation beyond deadline". ctx.Err() is still checked
// before starting, so a caller that already cancelled never issues a START.
func (in *Instance) Transfer(ctx context.Context, msgs []Message) error {
	if in.bus == nil {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return in.bus.disp.Process(msgs)
}

// Tx implements the single-method interface tinygo.org/x/drivers sensor
// packages expect from a bus (e.g. machine.I2C's Tx signature), letting an
// Instance stand in directly for machine.I2C. A non-empty w followed by a
// non-empty r becomes a write then a repeated-START read, matching the
// register-address-then-read idiom those drivers use.
func (in *Instance) Tx(addr uint16, w, r []byte) error {
	if in.bus == nil {
		return ErrClosed
	}
	var msgs []Message
	if len(w) > 0 {
		msgs = append(msgs, Message{Addr: addr, Buffer: w})
	}
	if len(r) > 0 {
		msgs = append(msgs, Message{Addr: addr, Flags: FlagRead, Buffer: r})
	}
	if len(msgs) == 0 {
		return nil
	}
	return in.bus.disp.Process(msgs)
}

// Close releases this Instance's reference, tearing the Bus down on the
// last release (spec.md 4.7).
func (in *Instance) Close() error {
	if in.bus == nil {
		return ErrClosed
	}
	b := in.bus
	istate := disableInterrupts()
	b.refcount--
	if b.refcount == 0 {
		b.tearDown()
	}
	restoreInterrupts(istate)
	in.bus = nil
	return nil
}

// Reset performs bus recovery: deinit, GPIO bit-bang per spec.md 4.7, then
// reinit. Requires a Recovery to have been installed with WithRecovery.
func (in *Instance) Reset(ctx context.Context) error {
	if in.bus == nil {
		return ErrClosed
	}
	b := in.bus
	if b.cfg.recovery == nil {
		return ErrNoRecovery
	}

	b.disp.Lock()
	defer b.disp.Unlock()

	if b.cfg.mode != dispatchPolled {
		b.plat.DetachIRQ()
	}
	b.regs.ModifyCR1(0, regs.CR1_PE)
	b.plat.ReleasePins()

	recoverErr := b.cfg.recovery.Recover(ctx)

	b.plat.ConfigurePins()
	clock.Program(b.regs, b.plat.PeripheralClockHz(), b.freqHz, b.cfg.duty169)
	b.regs.ModifyCR2(uint16(b.plat.PeripheralClockHz()/1_000_000)&regs.CR2_FREQMask, regs.CR2_FREQMask)
	b.regs.ModifyCR1(regs.CR1_PE, 0)
	if b.cfg.mode != dispatchPolled {
		b.plat.AttachIRQ(b.disp.HandleInterrupt)
	}

	return recoverErr
}
