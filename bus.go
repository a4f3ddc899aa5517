package i2cmaster

import (
	"time"

	"github.com/amken3d/i2cmaster/clock"
	"github.com/amken3d/i2cmaster/dispatch"
	"github.com/amken3d/i2cmaster/engine"
	"github.com/amken3d/i2cmaster/platform"
	"github.com/amken3d/i2cmaster/regs"
	"github.com/amken3d/i2cmaster/trace"
	"github.com/amken3d/i2cmaster/xfer"
)

// Bus is the shared per-port resource spec.md 4.7 describes: the hardware
// state that exists once regardless of how many Instances reference it.
// bus.go's registry keeps one Bus per PortID in a fixed array, refcounted
// under interrupts-off (spec.md 9).
type Bus struct {
	port     PortID
	plat     platform.Platform
	cfg      config
	refcount int

	regs   regs.Regs
	state  *xfer.State
	tracer *trace.Recorder
	eng    *engine.Engine
	disp   *dispatch.Dispatcher

	// freqHz is the live target bus frequency, read by the ClockProgram
	// hook on every transfer and written under the dispatcher's lock by
	// Instance.SetFrequency (spec.md 6: "otherwise stores f for the next
	// transfer").
	freqHz uint32
}

var registry [MaxPorts]Bus

// Open acquires an Instance on the given port, bringing the underlying Bus
// up on the first reference and sharing it on subsequent opens (spec.md
// 4.7: "reference-counted instances sharing one hardware port").
func Open(port PortID, opts ...Option) (*Instance, error) {
	if int(port) >= MaxPorts {
		return nil, ErrPortRange
	}
	p := platforms[port]
	if p == nil {
		return nil, ErrNoPlatform
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	istate := disableInterrupts()
	b := &registry[port]
	if b.refcount == 0 {
		b.bringUp(port, p, cfg)
	}
	b.refcount++
	restoreInterrupts(istate)

	return &Instance{bus: b, freqHz: b.freqHz}, nil
}

// bringUp is spec.md 4.7's "up on first reference" sequence. Called with
// interrupts already disabled by the caller.
func (b *Bus) bringUp(port PortID, p platform.Platform, cfg config) {
	b.port = port
	b.plat = p
	b.cfg = cfg

	b.regs = p.Registers()
	b.state = &xfer.State{}
	b.tracer = trace.New(cfg.traceCapacity)
	b.freqHz = cfg.defaultFreqHz

	mode := engine.ModeInterrupt
	if cfg.mode == dispatchPolled {
		mode = engine.ModePolled
	}
	b.eng = engine.New(b.regs, b.state, b.tracer, mode)
	b.disp = dispatch.New(b.eng)
	b.disp.Timeout = b.timeoutPolicy()
	if cfg.fsmc != nil {
		b.disp.FSMCWorkaround = cfg.fsmc.SetEnabled
	}
	b.disp.ClockProgram = func(r regs.Regs) {
		clock.Program(r, p.PeripheralClockHz(), b.freqHz, cfg.duty169)
	}

	p.EnableClock()
	p.ConfigurePins()
	clock.Program(b.regs, p.PeripheralClockHz(), b.freqHz, cfg.duty169)
	b.regs.ModifyCR2(uint16(p.PeripheralClockHz()/1_000_000)&regs.CR2_FREQMask, regs.CR2_FREQMask)
	b.regs.ModifyCR1(regs.CR1_PE, 0)

	if cfg.mode != dispatchPolled {
		p.AttachIRQ(b.disp.HandleInterrupt)
	}
}

func (b *Bus) timeoutPolicy() dispatch.TimeoutPolicy {
	if b.cfg.usPerByte > 0 {
		return dispatch.TimeoutPolicy{PerByte: time.Duration(b.cfg.usPerByte) * time.Microsecond}
	}
	return dispatch.TimeoutPolicy{Static: b.cfg.staticTimeout}
}

// tearDown is spec.md 4.7's "down on last release" sequence. Called with
// interrupts already disabled by the caller.
func (b *Bus) tearDown() {
	if b.cfg.mode != dispatchPolled {
		b.plat.DetachIRQ()
	}
	b.regs.ModifyCR1(0, regs.CR1_PE)
	b.plat.ReleasePins()
	b.plat.DisableClock()
	*b = Bus{}
}
