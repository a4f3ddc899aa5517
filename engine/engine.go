// Package engine is the protocol engine: the state machine that turns one
// SR1 status snapshot into exactly one register-level action (spec.md 4.5).
// It is deliberately a single entry point, Step, so that both dispatch modes
// (interrupt and polled) drive the exact same logic — the only difference
// between them is who calls Step and how often.
package engine

import (
	"github.com/amken3d/i2cmaster/regs"
	"github.com/amken3d/i2cmaster/trace"
	"github.com/amken3d/i2cmaster/xfer"
)

// Mode selects the two branches that behave differently between
// interrupt-driven and polled dispatch. Detecting an address NACK from the
// absence of ADDR (spec.md 4.5(c)) requires an edge the polled loop cannot
// see reliably, so that branch only fires in interrupt mode; polled callers
// instead rely on the dispatcher's deadline to notice a NACKed address. The
// fallback branch (h) aborts the chain in interrupt mode and only records
// "device not ready" in polled mode.
type Mode int

const (
	ModeInterrupt Mode = iota
	ModePolled
)

// Engine closes over the registers, transfer state, and trace ring a single
// bus instance owns. It holds no state of its own: everything Step needs to
// decide or remember lives in the State it is given (spec.md 3).
type Engine struct {
	Regs  regs.Regs
	State *xfer.State
	Trace *trace.Recorder
	Mode  Mode
}

// New builds an Engine over the given register file, transfer state, and
// trace recorder. trc may be nil; trace.Recorder's zero-ring behavior makes
// nil-vs-disabled the same code path.
func New(r regs.Regs, state *xfer.State, trc *trace.Recorder, mode Mode) *Engine {
	if trc == nil {
		trc = trace.New(0)
	}
	return &Engine{Regs: r, State: state, Trace: trc, Mode: mode}
}

// Step reads the current SR1, selects and runs exactly one branch in the
// priority order spec.md 4.5 lays out, and then runs terminal handling.
// Callers (the interrupt handler, or the polled dispatch loop) call Step
// repeatedly until State.Done() reports the chain finished; what happens
// then — waking a waiting goroutine, or just returning control to a polling
// loop — is the dispatcher's job, not the engine's (spec.md 5).
func (e *Engine) Step(now uint32) {
	sr1 := e.Regs.ReadSR1()
	e.Trace.Sample(uint32(sr1), now)

	s := e.State

	// Message-advance prelude (spec.md 4.5 preamble): only runs between
	// messages (dcnt==-1) with at least one message still unlatched, and
	// falls through into the branch below using the same sr1 sample — the
	// SB that started this chain, or a repeated-START's SB, is still the
	// event being handled.
	if s.Pending() {
		s.LatchNext()
		e.Trace.Event(trace.EventMsgAdvance, uint32(s.TotalLen()))
	}

	switch {
	case sr1&regs.SR1_SB != 0:
		e.handleStart(s)

	case e.Mode == ModeInterrupt && sr1&regs.SR1_ADDR == 0 && s.CheckAddrACK():
		e.handleAddrNACK(s, sr1)

	case s.Flags().Has(xfer.FlagRead) && sr1&regs.SR1_ADDR != 0 && s.CheckAddrACK():
		e.handleReadAddrClear(s, sr1)

	case !s.Flags().Has(xfer.FlagRead) && sr1&(regs.SR1_ADDR|regs.SR1_TXE) != 0:
		e.handleWrite(s, sr1)

	case s.Flags().Has(xfer.FlagRead) && sr1&regs.SR1_RXNE != 0:
		e.handleReadData(s, sr1)

	case s.Done():
		// Empty-call handler (spec.md 4.5(g)): the chain already finished on
		// a prior entry and this call carries no new event. Terminal
		// handling below does the actual shutdown work.
		sr2 := e.Regs.ReadSR2()
		s.Status = uint32(regs.CombineStatus(sr1, sr2))
		e.Trace.Event(trace.EventShutdown, 0)

	default:
		e.handleFallback(s)
	}

	e.terminalHandling(s)
}

// handleStart is branch (b): a START (first or repeated) has just gone out
// and the address byte has to follow it.
func (e *Engine) handleStart(s *xfer.State) {
	if s.DCnt() <= 0 {
		// Empty message, kept for the same robustness reason the source
		// keeps it: skip address emission entirely and force a re-entry
		// that advances straight to the next message.
		s.Advance()
		e.Regs.ModifyCR2(regs.CR2_ITBUFEN, 0)
		e.Trace.Event(trace.EventMsgAdvance, 0)
		return
	}

	switch {
	case s.TotalLen() == 1 && s.Flags().Has(xfer.FlagRead):
		// Single-byte read: POS must be clear (it may be left over from a
		// previous 2-byte read), and NACK has to be armed immediately so it
		// lands on the only byte this message will receive.
		e.Regs.ModifyCR1(0, regs.CR1_POS)
		e.Regs.ModifyCR1(0, regs.CR1_ACK)
	case s.TotalLen() == 2 && s.Flags().Has(xfer.FlagRead):
		// Two-byte read: POS and ACK both set so the NACK falls on the
		// second byte once it's manually cleared in the read-data phase.
		e.Regs.ModifyCR1(regs.CR1_POS, 0)
		e.Regs.ModifyCR1(regs.CR1_ACK, 0)
	default:
		e.Regs.ModifyCR1(0, regs.CR1_POS)
		e.Regs.ModifyCR1(regs.CR1_ACK, 0)
	}

	e.Regs.WriteDR(addressByte(s))
	s.SetCheckAddrACK(true)
	e.Trace.Event(trace.EventStart, uint32(s.Addr()))
}

// addressByte folds the target address and direction into the byte STM32
// expects on DR right after a START. Ten-bit addressing emits 0 as a
// placeholder: spec.md 9 flags this as inherited from the source, where the
// 10-bit header sequence was never wired up either.
func addressByte(s *xfer.State) uint8 {
	if s.Flags().Has(xfer.FlagTenBit) {
		return 0
	}
	rw := uint8(0)
	if s.Flags().Has(xfer.FlagRead) {
		rw = 1
	}
	return uint8(s.Addr()<<1) | rw
}

// handleAddrNACK is branch (c): interrupt mode only. The address byte we
// just sent was NACKed, so the whole chain aborts and a STOP clears the bus.
func (e *Engine) handleAddrNACK(s *xfer.State, sr1 uint16) {
	s.Abort()
	e.Regs.ModifyCR1(regs.CR1_STOP, 0)
	sr2 := e.Regs.ReadSR2()
	s.Status = uint32(regs.CombineStatus(sr1, sr2))
	e.Trace.Event(trace.EventAddrNACK, uint32(s.Addr()))
}

// handleReadAddrClear is branch (d): ADDR just cleared on a read message.
// SR2 is read first — unconditionally, as on real silicon — and only after
// that does dcnt/total_msg_len decide what else needs doing.
func (e *Engine) handleReadAddrClear(s *xfer.State, sr1 uint16) {
	s.SetCheckAddrACK(false)
	sr2 := e.Regs.ReadSR2()

	switch {
	case s.DCnt() == 1 && s.TotalLen() == 1:
		e.Regs.ModifyCR2(regs.CR2_ITBUFEN, 0)
		e.Regs.ModifyCR1(regs.CR1_STOP, 0)
		s.DecDCnt()
		e.Trace.Event(trace.EventAddrACK, 1)
	case s.DCnt() == 2 && s.TotalLen() == 2:
		e.Regs.ModifyCR1(0, regs.CR1_ACK)
		e.Trace.Event(trace.EventAddrACK, 2)
	default:
		e.Trace.Event(trace.EventAddrACK, 0)
	}

	s.Status = uint32(regs.CombineStatus(sr1, sr2))
}

// handleWrite is branch (e): ADDR just cleared on a write message, or TXE
// fired because the last byte finished shifting out.
func (e *Engine) handleWrite(s *xfer.State, sr1 uint16) {
	sr2 := e.Regs.ReadSR2()
	s.SetCheckAddrACK(false)

	switch {
	case s.DCnt() >= 1:
		e.Regs.WriteDR(s.NextByte())
		e.Trace.Event(trace.EventWriteByte, uint32(s.DCnt()))
		s.AdvanceCursor()

	case s.DCnt() == 0:
		next, hasNext := s.NextMessageFlags()
		switch {
		case !hasNext:
			e.Regs.ModifyCR1(regs.CR1_STOP, 0)
			s.Advance()
			e.Trace.Event(trace.EventStop, 0)
		case next == 0 || next.Has(xfer.FlagRead):
			e.Regs.ModifyCR1(regs.CR1_START, 0)
			s.Advance()
			e.Trace.Event(trace.EventStart, uint32(next))
		case next.Has(xfer.FlagNoRestart):
			s.Advance()
			e.Trace.Event(trace.EventMsgAdvance, 0)
		default:
			e.Trace.Event(trace.EventWriteFlagError, uint32(next))
		}

	default:
		e.Trace.Event(trace.EventStateError, uint32(s.DCnt()))
	}

	s.Status = uint32(regs.CombineStatus(sr1, sr2))
}

// handleReadData is branch (f): RXNE (and, for 2-byte and N>=3 reads, BTF)
// drive the three read sub-protocols spec.md 4.5(f) and 9 describe. This is
// table-shaped by design: each case is one row of (total_msg_len, dcnt, BTF)
// rather than a deep if/else cascade, because that's the shape the STM32
// reference manual's EV7/EV7_1 timing table already has.
func (e *Engine) handleReadData(s *xfer.State, sr1 uint16) {
	btf := sr1&regs.SR1_BTF != 0

	switch {
	case s.DCnt() == 0 && s.TotalLen() == 1:
		s.PutByte(e.Regs.ReadDR())
		s.AdvanceCursor()
		e.Trace.Event(trace.EventReadByte, 1)

	case s.DCnt() == 2 && s.TotalLen() == 2 && !btf:
		e.Trace.Event(trace.EventWaitBTF, 0)

	case s.DCnt() == 2 && s.TotalLen() == 2 && btf:
		e.Regs.ModifyCR1(regs.CR1_STOP, 0)
		p := s.Ptr()
		s.PutByteAt(p, e.Regs.ReadDR())
		s.PutByteAt(p+1, e.Regs.ReadDR())
		s.Advance()
		e.Trace.Event(trace.EventReadByte, 2)

	case s.TotalLen() >= 3 && !btf:
		e.Trace.Event(trace.EventWaitBTF, 0)

	case s.DCnt() >= 4 && s.TotalLen() >= 3 && btf:
		s.PutByte(e.Regs.ReadDR())
		s.AdvanceCursor()
		e.Trace.Event(trace.EventReadByte, uint32(s.DCnt()))

	case s.DCnt() == 3 && s.TotalLen() >= 3 && btf:
		// NACK armed here lands on the very last byte: clearing ACK now
		// guarantees one more BTF event after this read, not RXNE alone,
		// so the N-1/N byte pair is pulled out together below.
		e.Regs.ModifyCR1(0, regs.CR1_ACK)
		s.PutByte(e.Regs.ReadDR())
		s.AdvanceCursor()
		e.Trace.Event(trace.EventReadByte, 3)

	case s.DCnt() == 2 && s.TotalLen() >= 3 && btf:
		e.Regs.ModifyCR1(regs.CR1_STOP, 0)
		p := s.Ptr()
		s.PutByteAt(p, e.Regs.ReadDR())
		s.PutByteAt(p+1, e.Regs.ReadDR())
		s.Advance()
		e.Trace.Event(trace.EventReadByte, 2)

	default:
		e.Trace.Event(trace.EventReadError, uint32(s.DCnt()))
		s.Advance()
		s.SetMsgcZero()
	}

	sr2 := e.Regs.ReadSR2()
	s.Status = uint32(regs.CombineStatus(sr1, sr2))
}

// handleFallback is branch (h): none of the above matched. Interrupt mode
// treats this as a protocol-level state error and aborts the chain; polled
// mode sees it routinely (polling can observe the bus between the events
// the interrupt branches expect) and just records that the device isn't
// ready yet.
func (e *Engine) handleFallback(s *xfer.State) {
	if e.Mode == ModePolled {
		e.Trace.Event(trace.EventDeviceNotReady, 0)
		return
	}
	sr2 := e.Regs.ReadSR2()
	s.Advance()
	s.SetMsgcZero()
	s.Status = uint32(regs.CombineStatus(e.Regs.ReadSR1(), sr2))
	e.Trace.Event(trace.EventStateError, 0)
}

// terminalHandling is the "messages handling (2/2)" pass that runs after
// every branch, unconditionally: if the chain is now done, clear msgv and
// silence the interrupt-enable bits. Clearing CR2's enable bits is harmless
// even in polled mode, where they were never set in the first place.
func (e *Engine) terminalHandling(s *xfer.State) {
	if !s.Done() {
		return
	}
	s.Clear()
	e.Regs.ModifyCR2(0, regs.CR2_AllITEN)
	e.Trace.Event(trace.EventDone, 0)
}
