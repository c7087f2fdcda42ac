// Package wire implements the bit-layout-sensitive, little-endian
// on-the-wire structures described in spec.md §6: the MDT/AT framing,
// C-DEV/S-DEV words, service-channel control/status words, the CP0
// CommVersion field, and the AT0 address field. Each type exposes
// explicit byte/bit accessors (masks and shifts) rather than
// language-level bitfields, the way the teacher's RawTCPInfo/Unpack pair
// decodes packed kernel bitfields explicitly instead of relying on Go
// struct layout to match the wire.
package wire

// SercosAddress is the 9-bit slave address carried in the low bits of the
// AT0 address field and in every other per-slave wire structure.
type SercosAddress uint16

const sercosAddressMask = 0x1FF

// AT0AddressSlot is one 16-bit little-endian slot in the CP0 AT0 address
// field: low 9 bits carry the Sercos address, the upper bits carry
// optional acknowledge flags (used when requested-functions demand
// slave-acknowledgement).
type AT0AddressSlot uint16

const at0AckShift = 9

func NewAT0AddressSlot(addr SercosAddress, ack bool) AT0AddressSlot {
	v := uint16(addr) & sercosAddressMask
	if ack {
		v |= 1 << at0AckShift
	}
	return AT0AddressSlot(v)
}

func (s AT0AddressSlot) Address() SercosAddress {
	return SercosAddress(uint16(s) & sercosAddressMask)
}

func (s AT0AddressSlot) Acknowledged() bool {
	return uint16(s)&(1<<at0AckShift) != 0
}

// EncodeAT0AddressField writes one little-endian slot per slave into buf
// starting at offset, returning the number of bytes written.
func EncodeAT0AddressField(buf []byte, offset int, slots []AT0AddressSlot) int {
	for i, slot := range slots {
		putUint16LE(buf[offset+2*i:], uint16(slot))
	}
	return len(slots) * 2
}

// DecodeAT0AddressField reads n little-endian slots from buf starting at
// offset.
func DecodeAT0AddressField(buf []byte, offset int, n int) []AT0AddressSlot {
	slots := make([]AT0AddressSlot, n)
	for i := range slots {
		slots[i] = AT0AddressSlot(getUint16LE(buf[offset+2*i:]))
	}
	return slots
}

// TopologyIndexWord is the 16-bit little-endian topology-index word read
// from the AT address region during CP0 address-scan stabilization
// (spec.md §4.1 step 2).
type TopologyIndexWord uint16

func DecodeTopologyIndex(buf []byte, offset int) TopologyIndexWord {
	return TopologyIndexWord(getUint16LE(buf[offset:]))
}

func putUint16LE(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getUint16LE(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
