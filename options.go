package i2cmaster

import (
	"time"

	"github.com/amken3d/i2cmaster/dispatch"
	"github.com/amken3d/i2cmaster/platform"
)

// config accumulates the build-time options spec.md 6 lists before Open
// resolves them against a Platform.
type config struct {
	mode          dispatchMode
	staticTimeout time.Duration
	usPerByte     uint32
	duty169       bool
	traceCapacity int
	recovery      platform.Recovery
	fsmc          platform.FSMCController
	defaultFreqHz uint32
}

type dispatchMode int

const (
	dispatchInterrupt dispatchMode = iota
	dispatchPolled
)

// Option configures a Bus at Open time, matching the functional-option
// idiom machine.I2CConfig-style APIs use.
type Option func(*config)

// WithPolledDispatch drives the engine from a busy-wait loop instead of the
// port's event/error IRQs.
func WithPolledDispatch() Option {
	return func(c *config) { c.mode = dispatchPolled }
}

// WithInterruptDispatch is the default: the engine is stepped from
// Platform.AttachIRQ's handler.
func WithInterruptDispatch() Option {
	return func(c *config) { c.mode = dispatchInterrupt }
}

// WithDynamicTimeout scales the per-transfer deadline by total byte count
// (spec.md 6's "dynamic-timeout... scale timeout by total bytes").
func WithDynamicTimeout(usPerByte uint32) Option {
	return func(c *config) { c.usPerByte = usPerByte }
}

// WithStaticTimeout sets a fixed per-transfer deadline regardless of length.
func WithStaticTimeout(d time.Duration) Option {
	return func(c *config) { c.staticTimeout = d; c.usPerByte = 0 }
}

// WithDutyCycle169 selects the 16/9 fast-mode duty cycle over the default
// 1/2, passed straight through to clock.Program.
func WithDutyCycle169(enabled bool) Option {
	return func(c *config) { c.duty169 = enabled }
}

// WithTrace enables the trace recorder with the given ring capacity. A
// capacity of 0 leaves tracing compiled in but allocation-free (trace.New's
// no-op ring).
func WithTrace(capacity int) Option {
	return func(c *config) { c.traceCapacity = capacity }
}

// WithRecovery installs the bus-recovery implementation Reset uses.
func WithRecovery(r platform.Recovery) Option {
	return func(c *config) { c.recovery = r }
}

// WithFSMCWorkaround installs the pre/post-transfer hook for ports that
// share pins with the FSMC external-memory controller.
func WithFSMCWorkaround(f platform.FSMCController) Option {
	return func(c *config) { c.fsmc = f }
}

// WithDefaultFrequency seeds the bus's initial SCL frequency, overridable
// later with Instance.SetFrequency. Defaults to 100 kHz per spec.md 4.7.
func WithDefaultFrequency(hz uint32) Option {
	return func(c *config) { c.defaultFreqHz = hz }
}

func defaultConfig() config {
	return config{
		mode:          dispatchInterrupt,
		staticTimeout: dispatch.DefaultTimeout,
		defaultFreqHz: 100_000,
	}
}
