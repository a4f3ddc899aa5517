// Package simhw is a reactive fake of the I2C peripheral's register file,
// standing in for real silicon in host-side tests of the protocol engine
// (spec.md section 8 calls this "a simulated register model that responds
// like the silicon"). It reproduces the one coupling the engine depends on
// above all others: reading SR2 clears ADDR, and what happens next depends
// on the ACK/POS bits the engine wrote before that read.
package simhw

import "github.com/amken3d/i2cmaster/regs"

// Txn is one scripted bus transaction a virtual slave will answer. The
// Device consumes one Txn per START / repeated START.
type Txn struct {
	Addr     uint8  // 7-bit address this transaction targets
	Read     bool   // true for a read transaction
	Data     []byte // bytes the slave returns (Read) — ignored otherwise
	NACKAddr bool   // true: slave NACKs the address regardless of match
}

// Device is a scriptable virtual I2C master-side peripheral plus the slave
// it talks to. Construct with NewDevice, load a transaction script with
// LoadTxns, then drive it exactly the way the protocol engine does: through
// the regs.Regs interface.
type Device struct {
	cr1, cr2, oar1, ccr, trise uint16
	sr1, sr2                   uint16

	txns []Txn
	idx  int

	addrPending bool // true: next DR write is the address byte
	direction   bool // true = read, valid once address is resolved
	open        bool // true: current txn was address-ACKed and not yet closed
	srcPos      int  // next unread index into the current txn's Data
	pipeline    []byte
	written     []byte

	// stopPending is true once STOP has been requested on a read whose
	// pipeline still holds undelivered bytes. Real silicon keeps shifting
	// out what's already latched before the stop condition lands, so the
	// txn only actually closes once ReadDR has drained the pipeline.
	stopPending bool

	// Log records every protocol-relevant operation in order, for assertions
	// against spec.md's invariants (P1-P10) and literal scenarios (S1-S6).
	Log []string
}

func NewDevice() *Device {
	return &Device{}
}

// LoadTxns installs the scripted transaction sequence.
func (d *Device) LoadTxns(txns []Txn) {
	d.txns = txns
	d.idx = 0
}

// Written returns the bytes captured from completed write transactions.
func (d *Device) Written() []byte { return d.written }

// TxnIndex returns how many scripted transactions have been fully closed
// (STOP or repeated START past them). Useful for asserting a chain advanced
// exactly as far as expected.
func (d *Device) TxnIndex() int { return d.idx }

func (d *Device) log(s string) { d.Log = append(d.Log, s) }

func (d *Device) currentTxn() *Txn {
	if d.idx >= len(d.txns) {
		return nil
	}
	return &d.txns[d.idx]
}

func (d *Device) ReadSR1() uint16 { return d.sr1 }

func (d *Device) ReadSR2() uint16 {
	if d.sr1&regs.SR1_ADDR != 0 {
		d.sr1 &^= regs.SR1_ADDR
		d.log("read-sr2-clear-addr")
		d.onAddrCleared()
	}
	return d.sr2
}

func (d *Device) ClearSR1() {
	d.sr1 = 0
	d.log("clear-sr1")
}

func (d *Device) onAddrCleared() {
	if d.direction {
		d.srcPos = 0
		d.pipeline = nil
		d.topUpPipeline()
	} else {
		d.sr1 |= regs.SR1_TXE
	}
}

// topUpPipeline pulls undelivered source bytes into the two-stage DR+shift
// register pipeline, mirroring the real peripheral's look-ahead shifting.
func (d *Device) topUpPipeline() {
	if d.stopPending {
		return
	}
	txn := d.currentTxn()
	if txn == nil {
		return
	}
	for len(d.pipeline) < 2 && d.srcPos < len(txn.Data) {
		d.pipeline = append(d.pipeline, txn.Data[d.srcPos])
		d.srcPos++
	}
	d.recomputeReadFlags()
}

// recomputeReadFlags sets RXNE/BTF from the current pipeline depth.
func (d *Device) recomputeReadFlags() {
	switch {
	case len(d.pipeline) >= 2:
		d.sr1 |= regs.SR1_RXNE | regs.SR1_BTF
	case len(d.pipeline) == 1:
		d.sr1 |= regs.SR1_RXNE
		d.sr1 &^= regs.SR1_BTF
	default:
		d.sr1 &^= regs.SR1_RXNE | regs.SR1_BTF
	}
}

func (d *Device) ReadDR() uint8 {
	if len(d.pipeline) == 0 {
		return 0
	}
	b := d.pipeline[0]
	d.pipeline = d.pipeline[1:]
	d.log("read-dr")
	if d.stopPending && len(d.pipeline) == 0 {
		d.finalizeTxn()
		return b
	}
	d.topUpPipeline()
	d.recomputeReadFlags()
	return b
}

func (d *Device) WriteDR(b uint8) {
	if d.addrPending {
		d.resolveAddress(b)
		return
	}
	if !d.direction {
		d.written = append(d.written, b)
		d.log("write-dr")
		d.sr1 |= regs.SR1_TXE
	}
}

func (d *Device) resolveAddress(b uint8) {
	d.addrPending = false
	// Writing DR right after reading SR1 is what clears SB on real silicon.
	d.sr1 &^= regs.SR1_SB
	addr := b >> 1
	isRead := b&1 != 0
	txn := d.currentTxn()

	if txn == nil || txn.NACKAddr || txn.Addr != addr || txn.Read != isRead {
		d.sr1 |= regs.SR1_AF
		d.log("addr-nack")
		return
	}

	d.direction = isRead
	d.open = true
	d.sr1 |= regs.SR1_ADDR
	d.log("addr-ack")
}

func (d *Device) ReadCR1() uint16 { return d.cr1 }

func (d *Device) WriteCR1(v uint16) {
	rising := v&regs.CR1_START != 0 && d.cr1&regs.CR1_START == 0
	stopRising := v&regs.CR1_STOP != 0 && d.cr1&regs.CR1_STOP == 0
	d.cr1 = v
	if stopRising {
		d.log("stop")
		d.requestStop()
	}
	if rising {
		d.beginStart()
	}
}

// requestStop models the stop condition being programmed while the shift
// register/DR pipeline may still hold bytes the engine hasn't read out yet:
// the txn only actually closes once ReadDR drains it (see ReadDR).
func (d *Device) requestStop() {
	if d.direction && len(d.pipeline) > 0 {
		d.stopPending = true
		return
	}
	d.finalizeTxn()
}

func (d *Device) ModifyCR1(set, clear uint16) {
	if set&regs.CR1_ACK != 0 {
		d.log("ack=1")
	}
	if clear&regs.CR1_ACK != 0 {
		d.log("ack=0")
	}
	if set&regs.CR1_POS != 0 {
		d.log("pos=1")
	}
	if clear&regs.CR1_POS != 0 {
		d.log("pos=0")
	}
	d.WriteCR1((d.cr1 | set) &^ clear)
}

func (d *Device) beginStart() {
	d.log("start")
	// The peripheral clears CR1.START itself once the start condition has
	// gone out, so a later START request is a fresh rising edge.
	d.cr1 &^= regs.CR1_START
	if d.open {
		// Repeated START without an intervening STOP closes the previous
		// transaction and opens the next one in the script.
		d.idx++
		d.open = false
	}
	d.sr1 |= regs.SR1_SB
	d.sr1 &^= regs.SR1_ADDR | regs.SR1_AF | regs.SR1_RXNE | regs.SR1_BTF | regs.SR1_TXE
	d.addrPending = true
	d.pipeline = nil
	d.srcPos = 0
}

// finalizeTxn advances the transaction script past the one STOP just
// closed (or the one a repeated START implicitly closed).
func (d *Device) finalizeTxn() {
	if d.idx < len(d.txns) {
		d.idx++
	}
	d.sr1 = 0
	d.pipeline = nil
	d.addrPending = false
	d.open = false
	d.stopPending = false
}

func (d *Device) ReadCR2() uint16   { return d.cr2 }
func (d *Device) WriteCR2(v uint16) { d.cr2 = v }

func (d *Device) ModifyCR2(set, clear uint16) {
	before := d.cr2
	d.cr2 = (d.cr2 | set) &^ clear
	if set&regs.CR2_ITBUFEN != 0 && before&regs.CR2_ITBUFEN == 0 {
		d.log("itbufen=1")
	}
}

func (d *Device) ReadOAR1() uint16   { return d.oar1 }
func (d *Device) WriteOAR1(v uint16) { d.oar1 = v }

func (d *Device) ReadCCR() uint16   { return d.ccr }
func (d *Device) WriteCCR(v uint16) { d.ccr = v }

func (d *Device) ReadTRISE() uint16   { return d.trise }
func (d *Device) WriteTRISE(v uint16) { d.trise = v }

var _ regs.Regs = (*Device)(nil)
