// Package clock computes and programs the I2C peripheral's CCR and TRISE
// registers from a peripheral clock frequency and a target bus frequency
// (spec.md 4.2). It is the smallest component in the driver and has no
// protocol logic of its own: it only computes numbers and writes two
// registers while the peripheral is disabled.
package clock

import "github.com/amken3d/i2cmaster/regs"

const (
	StandardModeMax = 100_000
	FastModeMax     = 400_000

	minFrequencyForFullRate = 4_000_000
)

// Mode identifies which I2C timing mode a target frequency falls into.
type Mode int

const (
	ModeStandard Mode = iota
	ModeFast
)

// Program computes CCR/TRISE for fp (peripheral clock, Hz) and ft (target
// bus frequency, Hz) and writes them to r. duty169 selects the Fast-mode
// 16/9 duty cycle when ft is in fast-mode range; it is ignored in standard
// mode. Program clears CR1.PE itself while it writes the timing registers
// and then restores CR1 as it found it, so the peripheral stays disabled if
// it was disabled and enabled otherwise (spec.md 4.2).
func Program(r regs.Regs, fp, ft uint32, duty169 bool) {
	priorCR1 := r.ReadCR1()
	r.ModifyCR1(0, regs.CR1_PE)

	ccr, trise, fsSet, dutySet := compute(fp, ft, duty169)

	ccrVal := uint16(ccr) & regs.CCR_Mask
	if fsSet {
		ccrVal |= regs.CCR_FS
	}
	if dutySet {
		ccrVal |= regs.CCR_DUTY
	}
	r.WriteCCR(ccrVal)
	r.WriteTRISE(uint16(trise) & 0x3F)

	// Silicon erratum: OAR1 bit 14 must always read back as 1.
	r.WriteOAR1(r.ReadOAR1() | regs.OAR1_AlwaysSetBit)

	r.WriteCR1(priorCR1)
}

// compute implements spec.md 4.2 exactly: the standard-mode and fast-mode
// CCR/TRISE formulas, including the fast-mode 16/9-duty variant.
func compute(fp, ft uint32, duty169 bool) (ccr, trise uint32, fsSet, dutySet bool) {
	if ft <= StandardModeMax {
		ccr = fp / (2 * ft)
		if ccr < 4 {
			ccr = 4
		}
		trise = fp/1_000_000 + 1
		return ccr, trise, false, false
	}

	if duty169 {
		ccr = fp / (25 * ft)
		fsSet, dutySet = true, true
	} else {
		ccr = fp / (3 * ft)
		fsSet = true
	}
	if ccr < 1 {
		ccr = 1
	}
	trise = (fp/1_000_000)*300/1000 + 1
	return ccr, trise, fsSet, dutySet
}

// ClampFrequency enforces spec.md 6's setfrequency rule: if the peripheral
// clock is below 4 MHz, any requested bus frequency is clamped to the
// standard-mode default of 100 kHz.
func ClampFrequency(fp, requested uint32) uint32 {
	if fp < minFrequencyForFullRate {
		return StandardModeMax
	}
	return requested
}

func ModeFor(ft uint32) Mode {
	if ft <= StandardModeMax {
		return ModeStandard
	}
	return ModeFast
}
