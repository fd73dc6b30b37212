// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package llmq tracks long-living masternode quorums.

The Manager follows the main chain.  Each time a block starts a DKG interval
of an active quorum type, it derives the members of the interval from the
masternode list and starts a dkg.Session for them.  DKG messages received from
the network are handed to ProcessMessage, which buffers messages that arrive
before their phase.  Final commitments mined in blocks are validated against
the interval they belong to and the quorums they create are passed to the
Registry.

The Registry keeps the quorums whose commitments are sufficiently confirmed.
For every quorum type, the newest SigningActiveQuorumCount quorums are active
and can be selected for signing requests with QuorumForSigningRequest, while
the KeepOldConnections quorums before them are retained.  Reorgs are handled
with BlockDisconnected, which in turn purges the registry.

# Errors

Errors returned by this package are of type ContextError, wrapping either an
ErrorKind of this package or of the dkg package, so that callers can
programmatically determine the failure with errors.Is.
*/
package llmq
