package telegrambuild

import (
	"testing"

	"github.com/sercos3/csmd/wire"
)

func TestBuildLayoutSlotOffsets(t *testing.T) {
	b := &Builder{FirstMDTCarriesHotPlug: true}
	l := b.Build(wire.MDT, 0, 2, 4)

	if len(l.Slots) != 2 {
		t.Fatalf("len(Slots) = %d, want 2", len(l.Slots))
	}
	if l.Slots[0].SVCOffset != wire.FrameHeaderSize() {
		t.Errorf("first slot SVCOffset = %d, want %d", l.Slots[0].SVCOffset, wire.FrameHeaderSize())
	}
	wantSecondSVC := wire.FrameHeaderSize() + wire.SVCSlotSize + 4
	if l.Slots[1].SVCOffset != wantSecondSVC {
		t.Errorf("second slot SVCOffset = %d, want %d", l.Slots[1].SVCOffset, wantSecondSVC)
	}
	wantTotal := wire.FrameHeaderSize() + 2*(wire.SVCSlotSize+4)
	if l.TotalLen != wantTotal {
		t.Errorf("TotalLen = %d, want %d", l.TotalLen, wantTotal)
	}
}

func TestWriteMDTFrameHotPlugOnlyFirst(t *testing.T) {
	b := &Builder{FirstMDTCarriesHotPlug: true}
	buf := make([]byte, wire.FrameHeaderSize())
	b.WriteMDTFrame(buf, Layout{}, 0, 5, 0xABCD)
	h := wire.DecodeFrameHeader(buf, wire.MDT)
	if h.HotPlug != 0xABCD {
		t.Errorf("first MDT should carry HotPlug, got %#x", h.HotPlug)
	}

	buf2 := make([]byte, wire.FrameHeaderSize())
	b.WriteMDTFrame(buf2, Layout{}, 1, 5, 0xABCD)
	h2 := wire.DecodeFrameHeader(buf2, wire.MDT)
	if h2.HotPlug != 0 {
		t.Errorf("second MDT should not carry HotPlug when only-first configured, got %#x", h2.HotPlug)
	}
}
