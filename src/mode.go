package jt9decode

import (
	"fmt"
	"strings"
	"time"
)

const SampleRate = 12000 // Fixed by the engine, Hz.

const MaxWindowSeconds = 30 * 60 // NTMAX

// Capacity of the engine's sample array and of the cycle buffer.
const MaxSamples = MaxWindowSeconds * SampleRate

// ModeProfile describes one of the supported modes.
type ModeProfile struct {
	Code    int32  // nmode as understood by jt9
	CycleMs int    // T/R cycle length
	Symbols int32  // ipc[0], symbol periods in the window
	Name    string // For display
}

var (
	ModeFT2 = ModeProfile{Code: 52, CycleMs: 3750, Symbols: 105, Name: "FT2"}
	ModeFT4 = ModeProfile{Code: 5, CycleMs: 7500, Symbols: 105, Name: "FT4"}
	ModeFT8 = ModeProfile{Code: 8, CycleMs: 15000, Symbols: 50, Name: "FT8"}
)

var allModes = []ModeProfile{ModeFT2, ModeFT4, ModeFT8}

// ParseMode looks up a mode by name, ignoring case.
func ParseMode(name string) (ModeProfile, error) {
	for _, m := range allModes {
		if strings.EqualFold(name, m.Name) {
			return m, nil
		}
	}

	return ModeProfile{}, fmt.Errorf("unknown mode %q, valid modes: FT2, FT4, FT8", name)
}

// WindowSamples is the number of samples in one cycle.
func (m ModeProfile) WindowSamples() int {
	return SampleRate * m.CycleMs / 1000
}

// Cycle is the cycle length as a duration.
func (m ModeProfile) Cycle() time.Duration {
	return time.Duration(m.CycleMs) * time.Millisecond
}

// TRPeriodSeconds is ntrperiod.  jt9 takes whole seconds so FT2 becomes 3.
func (m ModeProfile) TRPeriodSeconds() int32 {
	return int32(m.CycleMs / 1000) //nolint:gosec
}

func (m ModeProfile) String() string {
	return m.Name
}
