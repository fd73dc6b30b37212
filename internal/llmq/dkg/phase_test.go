// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dkg

import (
	"testing"
)

// TestPhaseAt ensures interval offsets map to the expected phases.
func TestPhaseAt(t *testing.T) {
	t.Parallel()

	params := testLLMQParams()
	tests := []struct {
		offset       int64
		want         Phase
		miningWindow bool
	}{
		{offset: -1, want: PhaseIdle},
		{offset: 0, want: PhaseInitialized},
		{offset: 1, want: PhaseInitialized},
		{offset: 2, want: PhaseContribute},
		{offset: 4, want: PhaseComplain},
		{offset: 7, want: PhaseJustify},
		{offset: 8, want: PhaseCommit},
		{offset: 10, want: PhaseFinalize, miningWindow: true},
		{offset: 11, want: PhaseFinalize, miningWindow: true},
		{offset: 12, want: PhaseIdle, miningWindow: true},
		{offset: 18, want: PhaseIdle, miningWindow: true},
		{offset: 19, want: PhaseIdle},
	}

	for _, test := range tests {
		if got := PhaseAt(params, test.offset); got != test.want {
			t.Errorf("offset %d: unexpected phase -- got %v, want %v",
				test.offset, got, test.want)
		}
		if got := InMiningWindow(params, test.offset); got != test.miningWindow {
			t.Errorf("offset %d: unexpected mining window -- got %v, want %v",
				test.offset, got, test.miningWindow)
		}
	}

	for _, height := range []int64{48, 49, 71} {
		if got := IntervalStart(params, height); got != 48 {
			t.Errorf("unexpected interval start for height %d: %d", height, got)
		}
	}
	if got := Phase(99).String(); got != "Unknown Phase (99)" {
		t.Errorf("unexpected unknown phase string %q", got)
	}
}
