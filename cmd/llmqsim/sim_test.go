// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"testing"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/alterdot/adotd/internal/blockchain"
	"github.com/alterdot/adotd/internal/statedb"
)

// TestSimulation runs short simulations on the regression test network and
// checks the resulting deployment states and quorums.
func TestSimulation(t *testing.T) {
	tests := []struct {
		name          string
		byzantine     int
		noSignal      bool
		wantDIP0003   blockchain.ThresholdState
		wantActive    int
		wantRetained  int
		wantMinValid  int
		wantFinalized int
	}{{
		name:          "honest members, signalling miners",
		wantDIP0003:   blockchain.ThresholdActive,
		wantActive:    2,
		wantRetained:  2,
		wantMinValid:  5,
		wantFinalized: 4,
	}, {
		name:          "one byzantine member, no signalling",
		byzantine:     1,
		noSignal:      true,
		wantDIP0003:   blockchain.ThresholdStarted,
		wantActive:    2,
		wantRetained:  2,
		wantMinValid:  4,
		wantFinalized: 4,
	}}

	for _, test := range tests {
		db, err := statedb.OpenMemory()
		if err != nil {
			t.Fatalf("%q: unable to open database: %v", test.name, err)
		}
		cfg := &config{
			Blocks:      110,
			Masternodes: 12,
			Byzantine:   test.byzantine,
			NoSignal:    test.noSignal,
			params:      chaincfg.RegNetParams(),
		}
		sim, err := newSimulator(cfg, db)
		if err != nil {
			t.Fatalf("%q: unable to create simulator: %v", test.name, err)
		}
		if err := sim.run(context.Background()); err != nil {
			t.Fatalf("%q: simulation failed: %v", test.name, err)
		}

		got := sim.sum.Deployments[chaincfg.DeploymentDIP0003].State
		if got != test.wantDIP0003 {
			t.Errorf("%q: DIP0003 state %v, want %v", test.name, got,
				test.wantDIP0003)
		}
		if sim.sum.Finalized != test.wantFinalized || sim.sum.Failed != 0 {
			t.Errorf("%q: %d finalized and %d failed intervals, want %d "+
				"finalized", test.name, sim.sum.Finalized, sim.sum.Failed,
				test.wantFinalized)
		}

		active := sim.registry.ActiveQuorumsFor(chaincfg.LLMQ5_60)
		retained := sim.registry.RetainedQuorumsFor(chaincfg.LLMQ5_60)
		if len(active) != test.wantActive || len(retained) != test.wantRetained {
			t.Errorf("%q: %d active and %d retained quorums, want %d and %d",
				test.name, len(active), len(retained), test.wantActive,
				test.wantRetained)
		}
		for _, q := range append(active, retained...) {
			if len(q.Members) < test.wantMinValid {
				t.Errorf("%q: quorum %v has %d members", test.name,
					q.QuorumHash, len(q.Members))
			}
		}

		// The quorums survive a restart.
		stored, err := db.Quorums(chaincfg.LLMQ5_60)
		if err != nil {
			t.Fatalf("%q: unable to load quorums: %v", test.name, err)
		}
		if len(stored) != test.wantFinalized {
			t.Errorf("%q: %d stored quorums, want %d", test.name,
				len(stored), test.wantFinalized)
		}
		db.Close()
	}
}
