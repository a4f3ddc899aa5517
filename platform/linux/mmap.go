//go:build linux

// Package linux is a host-testable Platform implementation for Linux SoCs
// that expose a register-compatible I2C peripheral's physical registers
// (STM32MP1-class parts running mainline Linux are the motivating target).
// It maps the peripheral's register block out of /dev/mem, the same
// unsafe.Pointer-plus-syscall idiom other Go programs use to reach
// /dev/i2c-N and its ioctl constants, aimed one layer lower at the raw
// MMIO block instead of the kernel's i2c-dev character device, since the
// driver core needs direct register access rather than the kernel's own
// combined-transfer ioctl.
package linux

import (
	"encoding/binary"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/amken3d/i2cmaster/regs"
)

// MMIORegs is a regs.Regs backed by a /dev/mem mapping of one I2C
// peripheral's register block. The STM32-family layout (regs.OffsetCR1
// through regs.OffsetTRISE) is a 0x24-byte window; each register occupies
// a little-endian 32-bit word of which only the low 16 bits are defined.
type MMIORegs struct {
	mem []byte
}

const regBlockSize = 0x24

// OpenMMIORegs maps physAddr..physAddr+regBlockSize out of /dev/mem. The
// caller must have permission to open /dev/mem (typically root, or a
// udev rule granting CAP_SYS_RAWIO) and the kernel must not have
// CONFIG_STRICT_DEVMEM excluding this physical range.
func OpenMMIORegs(physAddr int64) (*MMIORegs, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("linux: open /dev/mem: %w", err)
	}
	defer f.Close()

	pageSize := int64(os.Getpagesize())
	pageBase := physAddr &^ (pageSize - 1)
	pageOffset := physAddr - pageBase
	mapLen := int(pageOffset) + regBlockSize
	if rem := mapLen % int(pageSize); rem != 0 {
		mapLen += int(pageSize) - rem
	}

	mem, err := unix.Mmap(int(f.Fd()), pageBase, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("linux: mmap i2c register block: %w", err)
	}

	return &MMIORegs{mem: mem[pageOffset : pageOffset+regBlockSize]}, nil
}

// Close unmaps the register block. Safe to call once; a Bus built over a
// closed MMIORegs must not be used again.
func (m *MMIORegs) Close() error {
	if m.mem == nil {
		return nil
	}
	full := m.mem[:cap(m.mem)]
	err := unix.Munmap(full)
	m.mem = nil
	return err
}

func (m *MMIORegs) read16(off int) uint16 {
	return uint16(binary.LittleEndian.Uint32(m.mem[off : off+4]))
}

func (m *MMIORegs) write16(off int, v uint16) {
	binary.LittleEndian.PutUint32(m.mem[off:off+4], uint32(v))
}

func (m *MMIORegs) ReadSR1() uint16 { return m.read16(regs.OffsetSR1) }
func (m *MMIORegs) ReadSR2() uint16 { return m.read16(regs.OffsetSR2) }
func (m *MMIORegs) ClearSR1()       { m.write16(regs.OffsetSR1, 0) }

func (m *MMIORegs) ReadDR() uint8    { return uint8(m.read16(regs.OffsetDR)) }
func (m *MMIORegs) WriteDR(b uint8)  { m.write16(regs.OffsetDR, uint16(b)) }

func (m *MMIORegs) ReadCR1() uint16   { return m.read16(regs.OffsetCR1) }
func (m *MMIORegs) WriteCR1(v uint16) { m.write16(regs.OffsetCR1, v) }
func (m *MMIORegs) ModifyCR1(set, clear uint16) {
	m.write16(regs.OffsetCR1, (m.read16(regs.OffsetCR1)|set)&^clear)
}

func (m *MMIORegs) ReadCR2() uint16   { return m.read16(regs.OffsetCR2) }
func (m *MMIORegs) WriteCR2(v uint16) { m.write16(regs.OffsetCR2, v) }
func (m *MMIORegs) ModifyCR2(set, clear uint16) {
	m.write16(regs.OffsetCR2, (m.read16(regs.OffsetCR2)|set)&^clear)
}

func (m *MMIORegs) ReadOAR1() uint16   { return m.read16(regs.OffsetOAR1) }
func (m *MMIORegs) WriteOAR1(v uint16) { m.write16(regs.OffsetOAR1, v) }

func (m *MMIORegs) ReadCCR() uint16   { return m.read16(regs.OffsetCCR) }
func (m *MMIORegs) WriteCCR(v uint16) { m.write16(regs.OffsetCCR, v) }

func (m *MMIORegs) ReadTRISE() uint16   { return m.read16(regs.OffsetTRISE) }
func (m *MMIORegs) WriteTRISE(v uint16) { m.write16(regs.OffsetTRISE, v) }

var _ regs.Regs = (*MMIORegs)(nil)
