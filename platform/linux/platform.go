//go:build linux

package linux

import (
	"sync"
	"time"

	"github.com/amken3d/i2cmaster/regs"
)

// Board is a platform.Platform over a /dev/mem-mapped register block. Linux
// userspace has no portable way to ungate a peripheral clock, mux pins into
// alternate function, or attach a handler to a specific MCU IRQ vector the
// way a bare-metal target can. On the SoCs this targets, the kernel's own
// pinctrl/clock drivers already did that before userspace ever opened
// /dev/mem, so EnableClock/ConfigurePins and their inverses are no-ops here;
// a deployment that needs them to do something devicetree doesn't already
// cover should set them up before the process starts.
//
// AttachIRQ has no Linux userspace equivalent for a raw MMIO register block
// either (no /dev/gpiochip-style edge-event path exists for an I2C
// peripheral's own interrupt line), so it stands in a polling goroutine that
// calls handler on a fixed tick, the same event+error vectors a real IRQ
// would drive by invoking the exact function pointer Dispatcher.HandleInterrupt
// is. This makes platform/linux usable against real kernel-exposed registers
// for smoke-testing the dispatcher and engine without a microcontroller, at
// the cost of interrupt latency bounded by PollInterval instead of silicon.
type Board struct {
	Regs *MMIORegs

	// ClockHz is the value PeripheralClockHz reports; there is no portable
	// way to read it back from Linux, so the caller supplies it from the
	// SoC's documented APB clock tree.
	ClockHz uint32

	// PollInterval is how often the stand-in IRQ goroutine calls handler.
	// Zero selects a 100us default.
	PollInterval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	wg      sync.WaitGroup
	handler func(now uint32)
}

func (b *Board) Registers() regs.Regs { return b.Regs }

func (b *Board) PeripheralClockHz() uint32 { return b.ClockHz }

func (b *Board) EnableClock()  {}
func (b *Board) DisableClock() {}

func (b *Board) ConfigurePins() {}
func (b *Board) ReleasePins()   {}

func (b *Board) AttachIRQ(handler func(now uint32)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handler = handler
	b.stop = make(chan struct{})
	interval := b.PollInterval
	if interval <= 0 {
		interval = 100 * time.Microsecond
	}

	b.wg.Add(1)
	go func(stop chan struct{}) {
		defer b.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case t := <-ticker.C:
				handler(uint32(t.UnixMicro()))
			}
		}
	}(b.stop)
}

func (b *Board) DetachIRQ() {
	b.mu.Lock()
	stop := b.stop
	b.stop = nil
	b.handler = nil
	b.mu.Unlock()

	if stop != nil {
		close(stop)
		b.wg.Wait()
	}
}
