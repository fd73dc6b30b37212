// Copyright (c) 2015-2021 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"sync"
	"time"

	"github.com/decred/slog"
)

// pickNoun returns the singular or plural form of a noun depending on the
// provided count.
func pickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// BlockProgress describes what processing a block did.
type BlockProgress struct {
	Height    int64
	Timestamp time.Time

	// SessionsStarted is the number of DKG sessions the block started.
	SessionsStarted int

	// CommitmentsMined is the number of non-null final commitments the block
	// mined.
	CommitmentsMined int

	// IntervalsFailed is the number of DKG intervals that closed without a
	// quorum with the block.
	IntervalsFailed int
}

// Logger provides periodic logging of progress towards some action such as
// processing the chain.
type Logger struct {
	sync.Mutex
	subsystemLogger slog.Logger
	progressAction  string

	// lastLogTime tracks the last time a log statement was shown.
	lastLogTime time.Time

	// These fields accumulate information about blocks between log statements.
	receivedBlocks      uint64
	receivedSessions    uint64
	receivedCommitments uint64
	receivedFailures    uint64
}

// New returns a new block progress logger.
func New(progressAction string, logger slog.Logger) *Logger {
	return &Logger{
		lastLogTime:     time.Now(),
		progressAction:  progressAction,
		subsystemLogger: logger,
	}
}

// LogProgress accumulates details for the provided block and periodically
// (every 10 seconds) logs an information message to show progress to the user
// along with duration and totals included.
//
// The force flag may be used to force a log message to be shown regardless of
// the time the last one was shown.
//
// The progress message is templated as follows:
//
//	{progressAction} {numProcessed} {blocks|block} in the last {timePeriod}
//	({numSessions} {sessions|session}, {numCommitments}
//	{commitments|commitment}, {numFailed} failed, height {lastBlockHeight},
//	{lastBlockTimeStamp})
func (l *Logger) LogProgress(p *BlockProgress, forceLog bool) {
	l.Lock()
	defer l.Unlock()

	l.receivedBlocks++
	l.receivedSessions += uint64(p.SessionsStarted)
	l.receivedCommitments += uint64(p.CommitmentsMined)
	l.receivedFailures += uint64(p.IntervalsFailed)
	now := time.Now()
	duration := now.Sub(l.lastLogTime)
	if !forceLog && duration < time.Second*10 {
		return
	}

	// Log information about chain progress.
	l.subsystemLogger.Infof("%s %d %s in the last %0.2fs (%d %s, %d %s, "+
		"%d failed, height %d, %s)", l.progressAction,
		l.receivedBlocks, pickNoun(l.receivedBlocks, "block", "blocks"),
		duration.Seconds(),
		l.receivedSessions, pickNoun(l.receivedSessions, "session", "sessions"),
		l.receivedCommitments, pickNoun(l.receivedCommitments, "commitment",
			"commitments"),
		l.receivedFailures, p.Height, p.Timestamp)

	l.receivedBlocks = 0
	l.receivedSessions = 0
	l.receivedCommitments = 0
	l.receivedFailures = 0
	l.lastLogTime = now
}

// SetLastLogTime updates the last time data was logged to the provided time.
func (l *Logger) SetLastLogTime(time time.Time) {
	l.Lock()
	l.lastLogTime = time
	l.Unlock()
}
