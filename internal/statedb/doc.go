// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package statedb implements a leveldb backed store for the consensus state that
is expensive to recompute: the version bits threshold states of every
deployment and the finalized long-living masternode quorums.
*/
package statedb
