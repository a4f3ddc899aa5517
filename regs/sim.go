//go:build !tinygo

package regs

// Sim is a bare in-memory register file used on the host build where there
// is no peripheral to MMIO onto. On its own it has no hardware behavior —
// package simhw builds a reactive slave model on top of it for tests. A
// plain Sim is enough for code paths (like the clock programmer) that only
// need register storage, not bus semantics.
type Sim struct {
	CR1, CR2, OAR1, OAR2, CCR, TRISE uint16
	SR1, SR2                         uint16
	DR                               uint8
}

func NewSim() *Sim { return &Sim{} }

func (s *Sim) ReadSR1() uint16 { return s.SR1 }
func (s *Sim) ReadSR2() uint16 { return s.SR2 }
func (s *Sim) ClearSR1()       { s.SR1 = 0 }

func (s *Sim) ReadDR() uint8   { return s.DR }
func (s *Sim) WriteDR(b uint8) { s.DR = b }

func (s *Sim) ReadCR1() uint16   { return s.CR1 }
func (s *Sim) WriteCR1(v uint16) { s.CR1 = v }
func (s *Sim) ModifyCR1(set, clear uint16) {
	s.CR1 = (s.CR1 | set) &^ clear
}

func (s *Sim) ReadCR2() uint16   { return s.CR2 }
func (s *Sim) WriteCR2(v uint16) { s.CR2 = v }
func (s *Sim) ModifyCR2(set, clear uint16) {
	s.CR2 = (s.CR2 | set) &^ clear
}

func (s *Sim) ReadOAR1() uint16   { return s.OAR1 }
func (s *Sim) WriteOAR1(v uint16) { s.OAR1 = v }

func (s *Sim) ReadCCR() uint16   { return s.CCR }
func (s *Sim) WriteCCR(v uint16) { s.CCR = v }

func (s *Sim) ReadTRISE() uint16   { return s.TRISE }
func (s *Sim) WriteTRISE(v uint16) { s.TRISE = v }
