package i2cmaster_test

import (
	"context"
	"testing"
	"time"

	"github.com/amken3d/i2cmaster"
	"github.com/amken3d/i2cmaster/regs"
	"github.com/amken3d/i2cmaster/regs/simhw"
)

// fakePlatform backs a test port with a simhw.Device and records the
// Lifecycle calls a real board implementation would make, so tests can
// assert bring-up/tear-down happened without a real MCU.
type fakePlatform struct {
	dev *simhw.Device

	clockEnabled bool
	pinsConfig   bool
	irqAttached  bool
	handler      func(now uint32)
}

func newFakePlatform(txns []simhw.Txn) *fakePlatform {
	dev := simhw.NewDevice()
	dev.LoadTxns(txns)
	return &fakePlatform{dev: dev}
}

func (f *fakePlatform) Registers() regs.Regs { return f.dev }

func (f *fakePlatform) PeripheralClockHz() uint32 { return 36_000_000 }

func (f *fakePlatform) EnableClock()  { f.clockEnabled = true }
func (f *fakePlatform) DisableClock() { f.clockEnabled = false }

func (f *fakePlatform) ConfigurePins() { f.pinsConfig = true }
func (f *fakePlatform) ReleasePins()   { f.pinsConfig = false }

func (f *fakePlatform) AttachIRQ(h func(uint32)) { f.irqAttached = true; f.handler = h }
func (f *fakePlatform) DetachIRQ()               { f.irqAttached = false; f.handler = nil }

const testPort i2cmaster.PortID = 0

func TestOpenCloseBringsUpAndTearsDownOnRefcount(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)

	in1, err := i2cmaster.Open(testPort, i2cmaster.WithPolledDispatch())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !fp.clockEnabled || !fp.pinsConfig {
		t.Fatal("expected the platform to be brought up on first reference")
	}

	in2, err := i2cmaster.Open(testPort, i2cmaster.WithPolledDispatch())
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}

	if err := in1.Close(); err != nil {
		t.Fatalf("in1.Close() error = %v", err)
	}
	if !fp.clockEnabled {
		t.Error("bus should stay up while a second Instance still holds a reference")
	}

	if err := in2.Close(); err != nil {
		t.Fatalf("in2.Close() error = %v", err)
	}
	if fp.clockEnabled || fp.pinsConfig {
		t.Error("expected the platform to be torn down on the last release")
	}

	if err := in1.Close(); err != i2cmaster.ErrClosed {
		t.Errorf("double Close() = %v, want ErrClosed", err)
	}
}

func TestOpenUnknownPlatform(t *testing.T) {
	const unregistered i2cmaster.PortID = 2
	if _, err := i2cmaster.Open(unregistered); err != i2cmaster.ErrNoPlatform {
		t.Fatalf("Open() on an unregistered port = %v, want ErrNoPlatform", err)
	}
}

func TestInstanceWriteThenReadPolled(t *testing.T) {
	fp := newFakePlatform([]simhw.Txn{
		{Addr: 0x20, Read: false},
		{Addr: 0x20, Read: true, Data: []byte{0x99}},
	})
	i2cmaster.RegisterPlatform(testPort, fp)

	in, err := i2cmaster.Open(testPort,
		i2cmaster.WithPolledDispatch(),
		i2cmaster.WithStaticTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	in.SetAddress(0x20, 7)

	ctx := context.Background()
	if n, err := in.Write(ctx, []byte{0x01}); err != nil || n != 1 {
		t.Fatalf("Write() = (%d, %v), want (1, nil)", n, err)
	}

	buf := make([]byte, 1)
	if n, err := in.Read(ctx, buf); err != nil || n != 1 {
		t.Fatalf("Read() = (%d, %v), want (1, nil)", n, err)
	}
	if buf[0] != 0x99 {
		t.Errorf("buf[0] = %#x, want 0x99", buf[0])
	}
}

func TestInstanceTxDriverCompatible(t *testing.T) {
	fp := newFakePlatform([]simhw.Txn{
		{Addr: 0x53, Read: false},
		{Addr: 0x53, Read: true, Data: []byte{0x01, 0x02}},
	})
	i2cmaster.RegisterPlatform(testPort, fp)

	in, err := i2cmaster.Open(testPort,
		i2cmaster.WithPolledDispatch(),
		i2cmaster.WithStaticTimeout(50*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	buf := make([]byte, 2)
	if err := in.Tx(0x53, []byte{0x32}, buf); err != nil {
		t.Fatalf("Tx() error = %v", err)
	}
	if buf[0] != 0x01 || buf[1] != 0x02 {
		t.Fatalf("buf = %v, want [0x01 0x02]", buf)
	}
}

func TestSetFrequencyNotClampedAboveMinimumPeripheralClock(t *testing.T) {
	fp := newFakePlatform(nil)
	i2cmaster.RegisterPlatform(testPort, fp)

	in, err := i2cmaster.Open(testPort, i2cmaster.WithPolledDispatch())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer in.Close()

	got := in.SetFrequency(400_000)
	if got != 400_000 {
		t.Errorf("SetFrequency(400000) with a 36MHz peripheral clock = %d, want 400000", got)
	}
}
