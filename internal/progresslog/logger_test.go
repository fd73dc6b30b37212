// Copyright (c) 2021 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package progresslog

import (
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/decred/slog"
)

var (
	backendLog = slog.NewBackend(io.Discard)
	testLog    = backendLog.Logger("TEST")
)

// TestLogProgress ensures the logging functionality works as expected via a
// test logger.
func TestLogProgress(t *testing.T) {
	testBlocks := []BlockProgress{{
		Height:          24,
		Timestamp:       time.Unix(1293623863, 0), // 2010-12-29 11:57:43 +0000 UTC
		SessionsStarted: 2,
	}, {
		Height:           35,
		Timestamp:        time.Unix(1293624163, 0), // 2010-12-29 12:02:43 +0000 UTC
		CommitmentsMined: 1,
	}, {
		Height:           43,
		Timestamp:        time.Unix(1293624463, 0), // 2010-12-29 12:07:43 +0000 UTC
		CommitmentsMined: 1,
		IntervalsFailed:  1,
	}}

	tests := []struct {
		name                    string
		reset                   bool
		inputBlock              *BlockProgress
		forceLog                bool
		inputLastLogTime        time.Time
		wantReceivedBlocks      uint64
		wantReceivedSessions    uint64
		wantReceivedCommitments uint64
		wantReceivedFailures    uint64
	}{{
		name:                 "round 1, block 0, last log time < 10 secs ago, not forced",
		inputBlock:           &testBlocks[0],
		forceLog:             false,
		inputLastLogTime:     time.Now(),
		wantReceivedBlocks:   1,
		wantReceivedSessions: 2,
	}, {
		name:                    "round 1, block 1, last log time < 10 secs ago, not forced",
		inputBlock:              &testBlocks[1],
		forceLog:                false,
		inputLastLogTime:        time.Now(),
		wantReceivedBlocks:      2,
		wantReceivedSessions:    2,
		wantReceivedCommitments: 1,
	}, {
		name:             "round 1, block 2, last log time < 10 secs ago, forced",
		inputBlock:       &testBlocks[2],
		forceLog:         true,
		inputLastLogTime: time.Now(),
	}, {
		name:                 "round 2, block 0, last log time < 10 secs ago, not forced",
		reset:                true,
		inputBlock:           &testBlocks[0],
		forceLog:             false,
		inputLastLogTime:     time.Now(),
		wantReceivedBlocks:   1,
		wantReceivedSessions: 2,
	}, {
		name:             "round 2, block 1, last log time > 10 secs ago, not forced",
		inputBlock:       &testBlocks[1],
		forceLog:         false,
		inputLastLogTime: time.Now().Add(-11 * time.Second),
	}, {
		name:             "round 2, block 2, last log time > 10 secs ago, forced",
		inputBlock:       &testBlocks[2],
		forceLog:         true,
		inputLastLogTime: time.Now().Add(-11 * time.Second),
	}}

	progressLogger := New("Processed", testLog)
	for _, test := range tests {
		if test.reset {
			progressLogger = New("Processed", testLog)
		}
		progressLogger.SetLastLogTime(test.inputLastLogTime)
		progressLogger.LogProgress(test.inputBlock, test.forceLog)
		wantBlockProgressLogger := &Logger{
			receivedBlocks:      test.wantReceivedBlocks,
			receivedSessions:    test.wantReceivedSessions,
			receivedCommitments: test.wantReceivedCommitments,
			receivedFailures:    test.wantReceivedFailures,
			lastLogTime:         progressLogger.lastLogTime,
			progressAction:      progressLogger.progressAction,
			subsystemLogger:     progressLogger.subsystemLogger,
		}
		if !reflect.DeepEqual(progressLogger, wantBlockProgressLogger) {
			t.Errorf("%s:\nwant: %+v\ngot: %+v\n", test.name,
				wantBlockProgressLogger, progressLogger)
		}
	}
}
