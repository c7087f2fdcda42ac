// Package telegrambuild implements the per-phase TxRAM/RxRAM layout
// builder of spec.md §6: framing, sequence counter, HotPlug, per-slave
// service-channel slots, and per-slave connection-payload placement.
package telegrambuild

import "github.com/sercos3/csmd/wire"

// SlaveSlot records where one slave's service-channel slot and
// connection payload live within the telegram RAM, recorded once per
// phase entry.
type SlaveSlot struct {
	TopologyIndex int
	SVCOffset     int
	PayloadOffset int
	PayloadLength int
}

// Layout is the per-phase RAM layout for one telegram (MDT or AT): the
// framing prefix size, the per-slave slot table, and the total length.
type Layout struct {
	Kind       wire.TelegramKind
	HeaderSize int
	Slots      []SlaveSlot
	TotalLen   int
}

// Builder lays out TxRAM/RxRAM once per phase entry, mirroring the
// original's per-phase telegram (re)configuration pass.
type Builder struct {
	FirstMDTCarriesHotPlug bool
	AllMDTsCarryHotPlug    bool
}

// Build computes the Layout for nSlaves slaves each needing
// payloadLen bytes of connection payload, starting right after the
// frame header and the CP0 CommVersion/UC-window prefix is not present
// (CP>=1 framing per spec.md §6).
func (b *Builder) Build(kind wire.TelegramKind, mdtIndex int, nSlaves int, payloadLen int) Layout {
	header := wire.FrameHeaderSize()
	offset := header

	slots := make([]SlaveSlot, nSlaves)
	for i := 0; i < nSlaves; i++ {
		svcOff := offset
		offset += wire.SVCSlotSize
		payOff := offset
		offset += payloadLen
		slots[i] = SlaveSlot{
			TopologyIndex: i,
			SVCOffset:     svcOff,
			PayloadOffset: payOff,
			PayloadLength: payloadLen,
		}
	}

	return Layout{Kind: kind, HeaderSize: header, Slots: slots, TotalLen: offset}
}

// carriesHotPlug reports whether MDT index mdtIndex should carry the
// master-writable HotPlug field, per the builder's configuration.
func (b *Builder) carriesHotPlug(mdtIndex int) bool {
	if b.AllMDTsCarryHotPlug {
		return true
	}
	return b.FirstMDTCarriesHotPlug && mdtIndex == 0
}

// WriteMDTFrame writes the frame header (sequence counter, and
// HotPlug if this MDT index carries it) into buf per l's header size.
func (b *Builder) WriteMDTFrame(buf []byte, l Layout, mdtIndex int, seq uint16, hotPlug uint16) {
	h := wire.FrameHeader{SequenceCounter: seq}
	if b.carriesHotPlug(mdtIndex) {
		h.HotPlug = hotPlug
	}
	wire.EncodeFrameHeader(buf, wire.MDT, h)
}

// WriteATFrame writes the AT frame header (sequence counter only).
func (b *Builder) WriteATFrame(buf []byte, seq uint16) {
	wire.EncodeFrameHeader(buf, wire.AT, wire.FrameHeader{SequenceCounter: seq})
}
