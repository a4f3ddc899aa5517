package dispatch

import (
	"errors"
	"testing"

	"github.com/amken3d/i2cmaster/engine"
	"github.com/amken3d/i2cmaster/i2cerr"
	"github.com/amken3d/i2cmaster/regs"
	"github.com/amken3d/i2cmaster/regs/simhw"
	"github.com/amken3d/i2cmaster/xfer"
)

// These tests drive the engine directly (single goroutine, no Process()
// call) so they can inspect the unexported handshake/classify plumbing
// without needing a concurrent stand-in for a hardware interrupt.

func TestHandleInterruptDoesNotSignalWhenIdle(t *testing.T) {
	dev := simhw.NewDevice()
	dev.LoadTxns([]simhw.Txn{{Addr: 0x50, Read: true, Data: []byte{0x01}}})
	state := &xfer.State{}
	buf := make([]byte, 1)
	state.Load([]xfer.Message{{Addr: 0x50, Flags: xfer.FlagRead, Buffer: buf}})
	e := engine.New(dev, state, nil, engine.ModeInterrupt)
	d := New(e)
	dev.ModifyCR1(regs.CR1_START, 0)

	for i := 0; i < 10 && !state.Done(); i++ {
		d.HandleInterrupt(uint32(i))
	}
	if !state.Done() {
		t.Fatal("expected transfer to complete within 10 steps")
	}

	select {
	case <-d.done:
		t.Fatal("HandleInterrupt posted completion while handshake was Idle")
	default:
	}
}

func TestHandleInterruptSignalsWhenWaiting(t *testing.T) {
	dev := simhw.NewDevice()
	dev.LoadTxns([]simhw.Txn{{Addr: 0x50, Read: true, Data: []byte{0x01}}})
	state := &xfer.State{}
	buf := make([]byte, 1)
	state.Load([]xfer.Message{{Addr: 0x50, Flags: xfer.FlagRead, Buffer: buf}})
	e := engine.New(dev, state, nil, engine.ModeInterrupt)
	d := New(e)
	dev.ModifyCR1(regs.CR1_START, 0)
	d.handshake = int32(HandshakeWaiting)

	for i := 0; i < 10 && !state.Done(); i++ {
		d.HandleInterrupt(uint32(i))
	}

	select {
	case <-d.done:
	default:
		t.Fatal("expected a completion signal once the handshake was WAITING")
	}
	if Handshake(d.handshake) != HandshakeDone {
		t.Errorf("handshake = %v, want HandshakeDone", d.handshake)
	}
}

// P9/S6: an address NACK classifies as NACK and leaves the bus idle.
func TestClassifyAddressNACK(t *testing.T) {
	dev := simhw.NewDevice()
	dev.LoadTxns([]simhw.Txn{{Addr: 0x7F, Read: true, NACKAddr: true}})
	state := &xfer.State{}
	buf := make([]byte, 1)
	state.Load([]xfer.Message{{Addr: 0x7F, Flags: xfer.FlagRead, Buffer: buf}})
	e := engine.New(dev, state, nil, engine.ModeInterrupt)
	d := New(e)
	dev.ModifyCR1(regs.CR1_START, 0)

	for i := 0; i < 10 && !state.Done(); i++ {
		e.Step(uint32(i))
	}
	if !state.Done() {
		t.Fatal("expected the abort path to reach the terminal state")
	}

	err := d.classify(dev, state)
	if !errors.Is(err, i2cerr.ErrNACK) {
		t.Fatalf("classify() = %v, want an error wrapping i2cerr.ErrNACK", err)
	}
	if dev.ReadSR2()&regs.SR2_BUSY != 0 {
		t.Error("bus should read idle (BUSY clear) after an address NACK")
	}
}
