package wire

// SVCElement identifies the kind of parameter element a service-channel
// transfer addresses (spec.md §6): 7 = operation data, 1 = IDN, etc.
type SVCElement uint8

const (
	SVCElementIDN          SVCElement = 1
	SVCElementOperationData SVCElement = 7
)

// SVCControlWord is the 16-bit control word on the MDT side of a per-slave
// service-channel slot.
type SVCControlWord uint16

const (
	svcCtrlMHS             = 1 << 0
	svcCtrlWrite           = 1 << 1
	svcCtrlLastTransmission = 1 << 2
	svcCtrlElementShift     = 3
	svcCtrlElementMask      = 0b111
	svcCtrlBusyMirror       = 1 << 6
)

func NewSVCControlWord(mhs, write, last bool, elem SVCElement, busyMirror bool) SVCControlWord {
	var v uint16
	if mhs {
		v |= svcCtrlMHS
	}
	if write {
		v |= svcCtrlWrite
	}
	if last {
		v |= svcCtrlLastTransmission
	}
	v |= uint16(elem&svcCtrlElementMask) << svcCtrlElementShift
	if busyMirror {
		v |= svcCtrlBusyMirror
	}
	return SVCControlWord(v)
}

func (w SVCControlWord) MHS() bool             { return uint16(w)&svcCtrlMHS != 0 }
func (w SVCControlWord) Write() bool           { return uint16(w)&svcCtrlWrite != 0 }
func (w SVCControlWord) LastTransmission() bool { return uint16(w)&svcCtrlLastTransmission != 0 }
func (w SVCControlWord) Element() SVCElement {
	return SVCElement((uint16(w) >> svcCtrlElementShift) & svcCtrlElementMask)
}
func (w SVCControlWord) BusyMirror() bool { return uint16(w)&svcCtrlBusyMirror != 0 }

// WithMHSToggled flips the Master-Handshake bit, the operation used to
// prime a slave's SVC (spec.md §4.4 set_phase_1 step 8).
func (w SVCControlWord) WithMHSToggled() SVCControlWord {
	return SVCControlWord(uint16(w) ^ svcCtrlMHS)
}

// SVCStatusWord is the 16-bit status word on the AT side of a per-slave
// service-channel slot.
type SVCStatusWord uint16

const (
	svcStatHandshakeAck = 1 << 0
	svcStatBusy         = 1 << 1
	svcStatError        = 1 << 2
	svcStatValid        = 1 << 3
)

func (w SVCStatusWord) HandshakeAck() bool { return uint16(w)&svcStatHandshakeAck != 0 }
func (w SVCStatusWord) Busy() bool         { return uint16(w)&svcStatBusy != 0 }
func (w SVCStatusWord) Error() bool        { return uint16(w)&svcStatError != 0 }
func (w SVCStatusWord) Valid() bool        { return uint16(w)&svcStatValid != 0 }

// SVCSlotSize is the byte size of one service-channel slot: a control or
// status word, followed by two 16-bit data words.
const SVCSlotSize = 6

// SVCSlotOffset returns the byte offset of the service-channel slot for the
// slave at the given topology index within an MDT/AT's service-channel
// area.
func SVCSlotOffset(topologyIndex int) int {
	return topologyIndex * SVCSlotSize
}

// EncodeSVCSlotMDT writes a control word and two data words at the given
// offset in an MDT buffer.
func EncodeSVCSlotMDT(buf []byte, offset int, ctrl SVCControlWord, data0, data1 uint16) {
	putUint16LE(buf[offset:], uint16(ctrl))
	putUint16LE(buf[offset+2:], data0)
	putUint16LE(buf[offset+4:], data1)
}

// DecodeSVCSlotAT reads a status word and two data words at the given
// offset in an AT buffer.
func DecodeSVCSlotAT(buf []byte, offset int) (SVCStatusWord, uint16, uint16) {
	return SVCStatusWord(getUint16LE(buf[offset:])), getUint16LE(buf[offset+2:]), getUint16LE(buf[offset+4:])
}
