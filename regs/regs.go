// Package regs provides typed access to the I2C peripheral's memory-mapped
// registers (CR1, CR2, OAR1, DR, SR1, SR2, CCR, TRISE). It isolates unsafe
// I/O from the protocol engine: no branch in this package decides protocol
// behavior, it only knows how to read and write bits at known offsets.
package regs

// Register byte offsets from the peripheral base address, shared across the
// STM32F1/F4-family silicon variants this driver targets.
const (
	OffsetCR1   = 0x00
	OffsetCR2   = 0x04
	OffsetOAR1  = 0x08
	OffsetOAR2  = 0x0C
	OffsetDR    = 0x10
	OffsetSR1   = 0x14
	OffsetSR2   = 0x18
	OffsetCCR   = 0x1C
	OffsetTRISE = 0x20
)

// CR1 bits.
const (
	CR1_PE     uint16 = 1 << 0
	CR1_SMBUS  uint16 = 1 << 1
	CR1_NOSTRETCH uint16 = 1 << 7
	CR1_START  uint16 = 1 << 8
	CR1_STOP   uint16 = 1 << 9
	CR1_ACK    uint16 = 1 << 10
	CR1_POS    uint16 = 1 << 11
	CR1_PEC    uint16 = 1 << 12
	CR1_SWRST  uint16 = 1 << 15
)

// CR2 bits. FREQ occupies bits [5:0].
const (
	CR2_FREQMask uint16 = 0x3F
	CR2_ITERREN  uint16 = 1 << 8
	CR2_ITEVFEN  uint16 = 1 << 9
	CR2_ITBUFEN  uint16 = 1 << 10
	CR2_DMAEN    uint16 = 1 << 11
	CR2_LAST     uint16 = 1 << 12

	// CR2_AllITEN is the set of interrupt-enable bits the dispatcher clears
	// together on completion or timeout.
	CR2_AllITEN = CR2_ITERREN | CR2_ITEVFEN | CR2_ITBUFEN
)

// SR1 bits.
const (
	SR1_SB       uint16 = 1 << 0
	SR1_ADDR     uint16 = 1 << 1
	SR1_BTF      uint16 = 1 << 2
	SR1_ADD10    uint16 = 1 << 3
	SR1_STOPF    uint16 = 1 << 4
	SR1_RXNE     uint16 = 1 << 6
	SR1_TXE      uint16 = 1 << 7
	SR1_BERR     uint16 = 1 << 8
	SR1_ARLO     uint16 = 1 << 9
	SR1_AF       uint16 = 1 << 10
	SR1_OVR      uint16 = 1 << 11
	SR1_PECERR   uint16 = 1 << 12
	SR1_TIMEOUT  uint16 = 1 << 14
	SR1_SMBALERT uint16 = 1 << 15

	// SR1_ErrorMask is every bit the dispatcher classifies as an error on
	// transfer completion (spec.md 4.6 step 9).
	SR1_ErrorMask = SR1_BERR | SR1_ARLO | SR1_AF | SR1_OVR | SR1_PECERR | SR1_TIMEOUT
)

// SR2 bits.
const (
	SR2_MSL        uint16 = 1 << 0
	SR2_BUSY       uint16 = 1 << 1
	SR2_TRA        uint16 = 1 << 2
	SR2_GENCALL    uint16 = 1 << 4
	SR2_SMBDEFAULT uint16 = 1 << 5
	SR2_SMBHOST    uint16 = 1 << 6
	SR2_DUALF      uint16 = 1 << 7
)

// OAR1 bit 14 must always read 1 per a documented silicon erratum.
const OAR1_AlwaysSetBit uint16 = 1 << 14

// CCR bits.
const (
	CCR_DUTY uint16 = 1 << 14
	CCR_FS   uint16 = 1 << 15
	CCR_Mask uint16 = 0x0FFF
)

// Regs is the typed register interface the protocol engine, clock
// programmer, and dispatcher talk to. Reading SR1 and reading SR2 are
// distinct operations: the engine relies on that distinction to avoid
// prematurely clearing ADDR (spec.md 4.1).
type Regs interface {
	ReadSR1() uint16
	// ReadSR2 reads SR2. On real silicon this has the side effect of
	// clearing ADDR if SR1 was read first; the simulated model in package
	// simhw reproduces that coupling for tests.
	ReadSR2() uint16
	// ClearSR1 writes 0 to SR1, dropping stale error bits (spec.md 4.6 step 3).
	ClearSR1()

	ReadDR() uint8
	WriteDR(b uint8)

	ReadCR1() uint16
	WriteCR1(v uint16)
	// ModifyCR1 sets the bits in set and clears the bits in clear, in that
	// order, leaving all other bits untouched.
	ModifyCR1(set, clear uint16)

	ReadCR2() uint16
	WriteCR2(v uint16)
	ModifyCR2(set, clear uint16)

	ReadOAR1() uint16
	WriteOAR1(v uint16)

	ReadCCR() uint16
	WriteCCR(v uint16)

	ReadTRISE() uint16
	WriteTRISE(v uint16)
}

// Status is the combined SR1 | SR2<<16 snapshot captured at terminal events,
// matching the transfer-state "status" field (spec.md 3).
type Status uint32

func CombineStatus(sr1, sr2 uint16) Status {
	return Status(uint32(sr1) | uint32(sr2)<<16)
}

func (s Status) SR1() uint16 { return uint16(s) }
func (s Status) SR2() uint16 { return uint16(s >> 16) }

func (s Status) HasError() bool {
	return s.SR1()&SR1_ErrorMask != 0
}
