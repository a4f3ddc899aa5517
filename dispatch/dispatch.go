// Package dispatch owns the per-bus lock and the completion handshake that
// drives the protocol engine to a finished transfer, in either dispatch
// mode (spec.md 4.6, 5). It is the one place that knows about wall-clock
// deadlines, timeouts, and error classification; the engine itself never
// blocks and never sees a clock.
package dispatch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/amken3d/i2cmaster/engine"
	"github.com/amken3d/i2cmaster/i2cerr"
	"github.com/amken3d/i2cmaster/regs"
	"github.com/amken3d/i2cmaster/xfer"
)

// Handshake mirrors the interrupt-handshake field spec.md 3/5 describes: an
// atomic value the waiter sets to WAITING when it arms the wait (and to DONE
// when it gives up on timeout), and HandleInterrupt sets to DONE when the
// engine finishes, with the completion channel supplying the happens-before
// edge.
type Handshake int32

const (
	HandshakeIdle Handshake = iota
	HandshakeWaiting
	HandshakeDone
)

// TimeoutPolicy computes the completion deadline for a transfer. A nonzero
// PerByte makes it dynamic (spec.md 6: "dynamic-timeout... scale timeout by
// total bytes"); PerByte==0 makes it the fixed Static duration.
type TimeoutPolicy struct {
	Static  time.Duration
	PerByte time.Duration
}

func (p TimeoutPolicy) Deadline(totalBytes int) time.Duration {
	if p.PerByte > 0 {
		return p.PerByte * time.Duration(totalBytes)
	}
	return p.Static
}

// DefaultTimeout is used when a Dispatcher is built with no explicit policy.
const DefaultTimeout = 25 * time.Millisecond

// Dispatcher drives one bus's Engine to completion and classifies the
// result. One Dispatcher serves one physical I2C port; callers sharing a
// port serialize through mu (spec.md 5: "each bus has one exclusion lock
// taken by the dispatcher for the entire duration of process()").
type Dispatcher struct {
	mu sync.Mutex

	Engine  *engine.Engine
	Timeout TimeoutPolicy

	// ClockProgram reprograms CCR/TRISE/OAR1 before each transfer
	// (spec.md 4.6 step 5). May be nil if the frequency never changes.
	ClockProgram func(r regs.Regs)

	// FSMCWorkaround, when set, brackets process() by disabling the
	// conflicting controller (spec.md 6, 9). Its presence also defers the
	// STOP-settle wait from pre-transfer to post-transfer, since STOP
	// cannot complete while the other controller holds the shared
	// resource (spec.md 6's FSMC paragraph).
	FSMCWorkaround func(enable bool)

	// TraceDump, if set, receives one line per collapsed trace entry after
	// every process() call (spec.md 4.6 step 10).
	TraceDump func(string)

	// Tick supplies monotonic timestamps for trace samples and polled-mode
	// step pacing. Defaults to a wall-clock-derived counter.
	Tick func() uint32

	handshake int32 // atomic Handshake
	done      chan struct{}
}

// Lock and Unlock expose the dispatcher's mutex to control-path operations
// that race with a transfer in progress — setaddress, setfrequency, reset
// (spec.md 5: "Control-path operations that could race... also take the
// lock"). Process takes and releases it internally; these exist for the
// Lifecycle layer above.
func (d *Dispatcher) Lock()   { d.mu.Lock() }
func (d *Dispatcher) Unlock() { d.mu.Unlock() }

// New builds a Dispatcher over an already-constructed Engine.
func New(e *engine.Engine) *Dispatcher {
	return &Dispatcher{
		Engine:  e,
		Timeout: TimeoutPolicy{Static: DefaultTimeout},
		done:    make(chan struct{}, 1),
		Tick:    defaultTick,
	}
}

func defaultTick() uint32 {
	return uint32(time.Now().UnixMicro())
}

// stopSettleBudget bounds how long Process waits for a lingering STOP from
// a previous transfer to clear before starting a new one (spec.md 4.6 step
// 2). It is deliberately short: a STOP that hasn't settled by then is
// logged, not fatal — the transfer proceeds and most likely reports BUSY.
const stopSettleBudget = 2 * time.Millisecond

// Process runs one full transfer: spec.md 4.6 steps 1-10. msgs is installed
// into the engine's transfer state and driven to completion under the
// dispatcher's lock.
func (d *Dispatcher) Process(msgs []xfer.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := d.Engine.Regs
	s := d.Engine.State

	deferStopSettle := d.FSMCWorkaround != nil
	if d.FSMCWorkaround != nil {
		d.FSMCWorkaround(false)
		defer d.FSMCWorkaround(true)
	}
	if !deferStopSettle {
		d.waitStopSettle(r)
	}

	r.ClearSR1()
	r.ModifyCR1(0, regs.CR1_START|regs.CR1_STOP|regs.CR1_PEC)

	s.Load(msgs)
	if d.Engine.Trace != nil {
		d.Engine.Trace.Reset()
	}
	if d.ClockProgram != nil {
		d.ClockProgram(r)
	}

	r.ModifyCR1(regs.CR1_START, 0)

	totalBytes := 0
	for _, m := range msgs {
		totalBytes += len(m.Buffer)
	}
	deadline := d.Timeout.Deadline(totalBytes)

	var timedOut bool
	switch d.Engine.Mode {
	case engine.ModeInterrupt:
		timedOut = d.waitInterrupt(r, deadline)
	default:
		timedOut = d.waitPolled(deadline)
	}

	if deferStopSettle {
		d.waitStopSettle(r)
	}

	if timedOut {
		r.ModifyCR1(0, regs.CR1_START|regs.CR1_STOP|regs.CR1_PEC)
		if d.Engine.Mode == engine.ModePolled {
			r.ModifyCR1(regs.CR1_STOP, 0)
		}
		d.dumpTrace()
		return &i2cerr.TransferError{Kind: i2cerr.ErrTimedOut, Status: regs.Status(s.Status)}
	}

	err := d.classify(r, s)
	d.dumpTrace()
	return err
}

// waitStopSettle polls for a lingering STOP bit to clear, bounded by
// stopSettleBudget. It never fails the preamble (spec.md 7's recovery
// policy): it just gives up and lets the transfer proceed.
func (d *Dispatcher) waitStopSettle(r regs.Regs) {
	deadline := time.Now().Add(stopSettleBudget)
	for r.ReadCR1()&regs.CR1_STOP != 0 {
		if r.ReadSR1()&regs.SR1_TIMEOUT != 0 {
			return
		}
		if time.Now().After(deadline) {
			return
		}
	}
}

// waitPolled loops the engine until the transfer state reports done or the
// deadline passes.
func (d *Dispatcher) waitPolled(deadline time.Duration) bool {
	end := time.Now().Add(deadline)
	for !d.Engine.State.Done() {
		d.Engine.Step(d.Tick())
		if time.Now().After(end) {
			return !d.Engine.State.Done()
		}
	}
	return false
}

// waitInterrupt arms the interrupt-enable bits and blocks on the completion
// channel, which HandleInterrupt posts to once the engine reports done.
func (d *Dispatcher) waitInterrupt(r regs.Regs, deadline time.Duration) bool {
	r.ModifyCR2(regs.CR2_ITERREN|regs.CR2_ITEVFEN, 0)
	atomic.StoreInt32(&d.handshake, int32(HandshakeWaiting))

	select {
	case <-d.done:
		r.ModifyCR2(0, regs.CR2_AllITEN)
		return false
	case <-time.After(deadline):
		atomic.StoreInt32(&d.handshake, int32(HandshakeDone))
		r.ModifyCR2(0, regs.CR2_AllITEN)
		return true
	}
}

// HandleInterrupt is what an attached event or error IRQ calls. It steps
// the engine once and, if that finishes the chain, posts the completion
// signal — but only if a waiter is actually WAITING, guarding against a
// completion post racing ahead of the dispatcher arming the handshake
// (spec.md 4.5's terminal-handling note).
func (d *Dispatcher) HandleInterrupt(now uint32) {
	d.Engine.Step(now)
	if !d.Engine.State.Done() {
		return
	}
	prev := atomic.SwapInt32(&d.handshake, int32(HandshakeDone))
	if Handshake(prev) == HandshakeWaiting {
		select {
		case d.done <- struct{}{}:
		default:
		}
	}
}

// classify turns the final captured status into a caller-visible error,
// following spec.md 4.6 step 9's priority order. A nil return means the
// transfer succeeded.
func (d *Dispatcher) classify(r regs.Regs, s *xfer.State) error {
	status := regs.Status(s.Status)
	if err := i2cerr.Classify(status); err != nil {
		return err
	}
	if r.ReadSR2()&regs.SR2_BUSY != 0 {
		return &i2cerr.TransferError{Kind: i2cerr.ErrBusy, Status: status}
	}
	return nil
}

func (d *Dispatcher) dumpTrace() {
	if d.TraceDump == nil || d.Engine.Trace == nil {
		return
	}
	d.Engine.Trace.Dump(d.TraceDump)
}
