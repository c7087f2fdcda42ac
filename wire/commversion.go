package wire

// CommVersion is the packed 32-bit field written into MDT0 at CP0
// (spec.md §3): address-allocation flag (bit 0), CP1/CP2 telegram count
// (bits 16-17), communication-parameter-in-MDT0 flag (bit 20),
// fast-phase-switch flag (bit 21), last-slave-no-forward flag (bit 22).
type CommVersion uint32

const (
	cvAddressAllocation = 1 << 0
	cvTelegramCountShift = 16
	cvTelegramCountMask  = 0b11
	cvTelegramCountFour  = 0b01
	cvComParamInMDT0     = 1 << 20
	cvFastPhaseSwitch    = 1 << 21
	cvLastSlaveNoForward = 1 << 22
)

// TelegramCount is the number of MDT/AT telegram pairs used in CP1/CP2:
// only 2 or 4 are valid per spec.md §4.4 set_phase_1 step 1. Bits 16-17
// carry 0b00 for 2 pairs and 0b01 for 4 pairs; any other field value
// decodes as 2.
type TelegramCount uint8

type CommVersionFields struct {
	AddressAllocation  bool
	TelegramCount      TelegramCount
	ComParamInMDT0     bool
	FastPhaseSwitch    bool
	LastSlaveNoForward bool
}

func NewCommVersion(f CommVersionFields) CommVersion {
	var v uint32
	if f.AddressAllocation {
		v |= cvAddressAllocation
	}
	if f.TelegramCount == 4 {
		v |= cvTelegramCountFour << cvTelegramCountShift
	}
	if f.ComParamInMDT0 {
		v |= cvComParamInMDT0
	}
	if f.FastPhaseSwitch {
		v |= cvFastPhaseSwitch
	}
	if f.LastSlaveNoForward {
		v |= cvLastSlaveNoForward
	}
	return CommVersion(v)
}

func (c CommVersion) Fields() CommVersionFields {
	count := TelegramCount(2)
	if (uint32(c)>>cvTelegramCountShift)&cvTelegramCountMask == cvTelegramCountFour {
		count = 4
	}
	return CommVersionFields{
		AddressAllocation:  uint32(c)&cvAddressAllocation != 0,
		TelegramCount:      count,
		ComParamInMDT0:     uint32(c)&cvComParamInMDT0 != 0,
		FastPhaseSwitch:    uint32(c)&cvFastPhaseSwitch != 0,
		LastSlaveNoForward: uint32(c)&cvLastSlaveNoForward != 0,
	}
}

// EncodeMDT0CommVersion writes the CommVersion field, and, when mode != UC
// window fixed, the {t1,t6,t7} nanosecond words, into the first bytes of
// MDT0 (spec.md §6). It returns the number of bytes written.
func EncodeMDT0CommVersion(buf []byte, cv CommVersion, ucWindow *UCWindowTimes) int {
	putUint32LE(buf, uint32(cv))
	if ucWindow == nil {
		return 4
	}
	putUint32LE(buf[4:], uint32(ucWindow.T1.Nanoseconds()))
	putUint32LE(buf[8:], uint32(ucWindow.T6.Nanoseconds()))
	putUint32LE(buf[12:], uint32(ucWindow.T7.Nanoseconds()))
	return 16
}

func DecodeMDT0CommVersion(buf []byte) CommVersion {
	return CommVersion(getUint32LE(buf))
}
