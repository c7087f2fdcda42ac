// Package hal abstracts the register-level surface of the FPGA-mapped
// MAC/scheduler: transmit/receive telegram RAM, per-port status registers,
// the communication-mode register, cyclic timers, ring-delay measurement
// counters, and the service-channel hardware engine. The core never talks
// to real memory directly; it talks to this interface, the way the
// teacher's tcpinfo packages never parse raw kernel bytes outside of a
// single Unpack boundary.
package hal

import "fmt"

// Port identifies one of the two physical Ethernet-like ports.
type Port int

const (
	Port1 Port = 1
	Port2 Port = 2
)

func (p Port) String() string {
	switch p {
	case Port1:
		return "P1"
	case Port2:
		return "P2"
	default:
		return fmt.Sprintf("Port(%d)", int(p))
	}
}

// Register is a symbolic register name. The concrete register map (address,
// width, per-port replication) is owned by the HAL implementation; the core
// only ever refers to registers by name.
type Register int

const (
	RegTGSR1       Register = iota // port 1 telegram-status register
	RegTGSR2                       // port 2 telegram-status register
	RegDFCSR                       // communication-mode / link-status register
	RegPhaseCtrl                   // phase-control register
	RegTCNT                        // free-running cyclic timer
	RegTCNT1                       // port 1 ring-delay measurement counter
	RegTCNT2                       // port 2 ring-delay measurement counter
)

// TGSR bit positions, shared across both ports' telegram-status registers.
const (
	TGSRAllMDT     uint32 = 1 << iota // all expected MDTs received
	TGSRAllAT                         // all expected ATs received
	TGSRMSTValid                      // MST received and valid
	TGSRMSTWinErr                     // MST received outside its timing window
	TGSRPrimaryTel                    // a primary-direction telegram was seen this cycle
	TGSRSecondTel                     // a secondary-direction telegram was seen this cycle
	TGSRNewData                       // new receive data this cycle
)

// DFCSR link-status bits (read) and mode values (written).
const (
	LinkStatusP1 uint32 = 1 << iota
	LinkStatusP2
)

// DFCSR communication-mode values, §6.
type CommMode uint32

const (
	ModeUCLine CommMode = iota
	ModeUCRing
	ModeRTLineP1
	ModeRTLineP2
	ModeRTBoth
	ModeRTRing
)

// HAL is the register-level surface the core reads and writes through.
// Implementations map this either to volatile memory on real hardware or,
// as here, to an in-memory simulator for tests (hal.Simulator).
type HAL interface {
	Read16(reg Register, port Port, offset uint32) (uint16, error)
	Read32(reg Register, port Port, offset uint32) (uint32, error)
	Write16(reg Register, port Port, offset uint32, value uint16) error
	Write32(reg Register, port Port, offset uint32, value uint32) error

	// TxRAM/RxRAM give byte-addressable access to the telegram memories the
	// telegrambuild package partitions at every phase entry.
	TxRAM() []byte
	RxRAM() []byte

	// SetCommMode writes the communication-mode/topology register (DFCSR).
	SetCommMode(mode CommMode) error
	CommMode() (CommMode, error)

	// Service-channel hardware engine (opaque per spec.md §1 Out-of-scope;
	// the core only needs to enable/disable/reset it and learn its
	// container count).
	SVCEngineEnable(enable bool) error
	SVCContainerCount() int
}
