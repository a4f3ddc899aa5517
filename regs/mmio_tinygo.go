//go:build tinygo

package regs

import (
	"runtime/volatile"
	"unsafe"
)

// MMIO accesses the real peripheral registers at a fixed base address.
// It carries no state of its own beyond that address; it is safe to copy.
type MMIO struct {
	base uintptr
}

// NewMMIO returns a Regs implementation backed by the peripheral at base.
func NewMMIO(base uintptr) *MMIO {
	return &MMIO{base: base}
}

func (m *MMIO) reg16(offset uintptr) *volatile.Register16 {
	return (*volatile.Register16)(unsafe.Pointer(m.base + offset))
}

func (m *MMIO) ReadSR1() uint16 { return m.reg16(OffsetSR1).Get() }
func (m *MMIO) ReadSR2() uint16 { return m.reg16(OffsetSR2).Get() }
func (m *MMIO) ClearSR1()       { m.reg16(OffsetSR1).Set(0) }

func (m *MMIO) ReadDR() uint8    { return uint8(m.reg16(OffsetDR).Get()) }
func (m *MMIO) WriteDR(b uint8)  { m.reg16(OffsetDR).Set(uint16(b)) }

func (m *MMIO) ReadCR1() uint16   { return m.reg16(OffsetCR1).Get() }
func (m *MMIO) WriteCR1(v uint16) { m.reg16(OffsetCR1).Set(v) }
func (m *MMIO) ModifyCR1(set, clear uint16) {
	r := m.reg16(OffsetCR1)
	r.Set((r.Get() | set) &^ clear)
}

func (m *MMIO) ReadCR2() uint16   { return m.reg16(OffsetCR2).Get() }
func (m *MMIO) WriteCR2(v uint16) { m.reg16(OffsetCR2).Set(v) }
func (m *MMIO) ModifyCR2(set, clear uint16) {
	r := m.reg16(OffsetCR2)
	r.Set((r.Get() | set) &^ clear)
}

func (m *MMIO) ReadOAR1() uint16   { return m.reg16(OffsetOAR1).Get() }
func (m *MMIO) WriteOAR1(v uint16) { m.reg16(OffsetOAR1).Set(v) }

func (m *MMIO) ReadCCR() uint16   { return m.reg16(OffsetCCR).Get() }
func (m *MMIO) WriteCCR(v uint16) { m.reg16(OffsetCCR).Set(v) }

func (m *MMIO) ReadTRISE() uint16   { return m.reg16(OffsetTRISE).Get() }
func (m *MMIO) WriteTRISE(v uint16) { m.reg16(OffsetTRISE).Set(v) }
