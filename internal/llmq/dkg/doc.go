// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package dkg implements the distributed key generation sessions of long-living
masternode quorums.

Every DKGInterval blocks a session is started for each active quorum type.  The
members of the session are derived from the masternode list and the first
block of the interval, and the session then runs through the following phases,
each lasting DKGPhaseBlocks blocks:

	initialized -> contribute -> complain -> justify -> commit -> finalize

Members deal a secret sharing contribution to every other member, complain
about dealers whose share does not match the published verification vector,
and accused dealers reveal the disputed shares.  During the commit phase the
valid and bad members are determined, and during the finalize phase the final
commitment holding the quorum public key is assembled.  Commitments may only
be mined in the mining window of the interval, which CheckCommitment enforces.

Sessions are stepped explicitly with AdvanceTo as blocks are connected, so the
outcome of a session is a pure function of the chain and the messages it
received.
*/
package dkg
