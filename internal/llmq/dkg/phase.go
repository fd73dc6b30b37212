// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"fmt"

	"github.com/alterdot/adotd/chaincfg"
)

// Phase identifies a phase of a DKG session.
type Phase uint8

// These constants define the DKG phases in the order they are run.  Each phase
// other than PhaseIdle lasts DKGPhaseBlocks blocks.
const (
	// PhaseIdle is the phase outside of the DKG phases of an interval.
	PhaseIdle Phase = iota

	// PhaseInitialized is the phase during which the member set is fixed.
	PhaseInitialized

	// PhaseContribute is the phase during which members broadcast their
	// secret sharing contributions.
	PhaseContribute

	// PhaseComplain is the phase during which members complain about
	// contributions they could not verify.
	PhaseComplain

	// PhaseJustify is the phase during which accused members reveal the
	// disputed shares.
	PhaseJustify

	// PhaseCommit is the phase during which the valid and bad members are
	// determined.
	PhaseCommit

	// PhaseFinalize is the phase during which the final commitment is
	// assembled.
	PhaseFinalize
)

// phaseStrings is a map of phases back to their names for pretty printing.
var phaseStrings = map[Phase]string{
	PhaseIdle:        "idle",
	PhaseInitialized: "initialized",
	PhaseContribute:  "contribute",
	PhaseComplain:    "complain",
	PhaseJustify:     "justify",
	PhaseCommit:      "commit",
	PhaseFinalize:    "finalize",
}

// String returns the phase as a human-readable name.
func (p Phase) String() string {
	if s := phaseStrings[p]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown Phase (%d)", uint8(p))
}

// PhaseAt returns the phase at the provided offset from the start of a DKG
// interval.  Offsets before the start or after the final phase are idle.
func PhaseAt(params *chaincfg.LLMQParams, offset int64) Phase {
	if offset < 0 {
		return PhaseIdle
	}
	idx := offset / params.DKGPhaseBlocks
	if idx >= chaincfg.DKGPhaseCount {
		return PhaseIdle
	}
	return PhaseInitialized + Phase(idx)
}

// InMiningWindow returns whether commitments may be mined at the provided
// offset from the start of a DKG interval.
func InMiningWindow(params *chaincfg.LLMQParams, offset int64) bool {
	return offset >= params.DKGMiningWindowStart &&
		offset <= params.DKGMiningWindowEnd
}

// IntervalStart returns the height of the first block of the DKG interval the
// provided height belongs to.
func IntervalStart(params *chaincfg.LLMQParams, height int64) int64 {
	return height - height%params.DKGInterval
}
