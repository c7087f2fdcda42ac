package phase

import (
	"time"

	"github.com/sercos3/csmd/ringdelay"
)

// UCChannelMode is the configured UC-channel timing mode (spec.md §4.3).
type UCChannelMode int

const (
	UCChannelFixed UCChannelMode = iota
	UCChannelMethod1
	UCChannelMethod2
	UCChannelMethod1Var
)

// Config holds the instance-wide configuration passed once at
// NewInstance (SPEC_FULL.md §10.3).
type Config struct {
	RingDelayStrategy ringdelay.Strategy
	UCChannelMode     UCChannelMode
	HotPlugEnabled    bool

	// ConnectionPayloadLen is the per-slave connection-payload byte
	// count the telegram layout builder reserves in every MDT/AT slot
	// (spec.md §2 component 2: "per-slave data sizes").
	ConnectionPayloadLen int
	// AllMDTsCarryHotPlug selects whether every MDT carries the
	// master-writable HotPlug field, rather than only the first
	// (spec.md §6 MDT framing).
	AllMDTsCarryHotPlug bool

	NbrRingDelayMeasurements int

	AddressScanAttemptBudget int
	AddressScanStableTarget  int

	MaxConsecutiveTelegramErrors int

	StepTimeoutBase time.Duration
}

// DefaultConfig returns the default configuration (SPEC_FULL.md §10.3):
// Strategy B, UC-channel fixed mode, hot-plug disabled, address-scan
// budgets 1000/100, max consecutive telegram errors at a conservative
// threshold, and a 200ms per-step timeout base (20 cycles at 10ms).
func DefaultConfig() Config {
	return Config{
		RingDelayStrategy:            ringdelay.StrategyB,
		UCChannelMode:                UCChannelFixed,
		HotPlugEnabled:               false,
		ConnectionPayloadLen:         4,
		AllMDTsCarryHotPlug:          false,
		NbrRingDelayMeasurements:     ringdelay.MaxMeasurements,
		AddressScanAttemptBudget:     1000,
		AddressScanStableTarget:      100,
		MaxConsecutiveTelegramErrors: 10,
		StepTimeoutBase:              20 * 10 * time.Millisecond,
	}
}
