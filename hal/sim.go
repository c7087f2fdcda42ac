package hal

import "fmt"

// Simulator is an in-memory HAL used by tests and by cmd/simrun. It plays
// the same role the teacher's MockSetFields cgo helper plays for
// RawTCPInfo: a deterministic, directly-pokeable register fixture standing
// in for hardware the rest of the package can't assume is present.
type Simulator struct {
	regs16 map[simKey]uint16
	regs32 map[simKey]uint32
	txRAM  []byte
	rxRAM  []byte
	mode   CommMode
	svcEn  bool
	svcN   int
}

type simKey struct {
	reg    Register
	port   Port
	offset uint32
}

// NewSimulator builds a simulator with the given RAM sizes and hardware
// service-channel container count.
func NewSimulator(txSize, rxSize, svcContainers int) *Simulator {
	return &Simulator{
		regs16: make(map[simKey]uint16),
		regs32: make(map[simKey]uint32),
		txRAM:  make([]byte, txSize),
		rxRAM:  make([]byte, rxSize),
		svcN:   svcContainers,
	}
}

func (s *Simulator) Read16(reg Register, port Port, offset uint32) (uint16, error) {
	return s.regs16[simKey{reg, port, offset}], nil
}

func (s *Simulator) Read32(reg Register, port Port, offset uint32) (uint32, error) {
	return s.regs32[simKey{reg, port, offset}], nil
}

func (s *Simulator) Write16(reg Register, port Port, offset uint32, value uint16) error {
	s.regs16[simKey{reg, port, offset}] = value
	return nil
}

func (s *Simulator) Write32(reg Register, port Port, offset uint32, value uint32) error {
	s.regs32[simKey{reg, port, offset}] = value
	return nil
}

func (s *Simulator) TxRAM() []byte { return s.txRAM }
func (s *Simulator) RxRAM() []byte { return s.rxRAM }

func (s *Simulator) SetCommMode(mode CommMode) error {
	s.mode = mode
	return nil
}

func (s *Simulator) CommMode() (CommMode, error) {
	return s.mode, nil
}

func (s *Simulator) SVCEngineEnable(enable bool) error {
	s.svcEn = enable
	return nil
}

func (s *Simulator) SVCContainerCount() int { return s.svcN }

// SVCEngineEnabled reports whether the test harness enabled the SVC engine;
// it has no hardware meaning and exists purely for assertions.
func (s *Simulator) SVCEngineEnabled() bool { return s.svcEn }

// PokeTGSR sets the given TGSR bit mask on a port, for tests that need to
// drive the topology recognizer through a specific sequence of telegram
// receptions without a real wire.
func (s *Simulator) PokeTGSR(port Port, mask uint32) {
	reg := RegTGSR1
	if port == Port2 {
		reg = RegTGSR2
	}
	s.regs32[simKey{reg, port, 0}] = mask
}

// PokeLinkStatus sets the DFCSR link-status bits read back by the
// recognizer.
func (s *Simulator) PokeLinkStatus(mask uint32) {
	s.regs32[simKey{RegDFCSR, Port1, 0}] = mask
}

func (s *Simulator) String() string {
	return fmt.Sprintf("Simulator{mode=%d svcEn=%v svcN=%d txLen=%d rxLen=%d}", s.mode, s.svcEn, s.svcN, len(s.txRAM), len(s.rxRAM))
}
