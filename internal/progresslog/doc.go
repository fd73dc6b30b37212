// Copyright (c) 2020 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package progresslog provides periodic logging for block processing.

Tests are included to ensure proper functionality.

## Feature Overview

- Maintains cumulative totals about blocks between each logging interval
  - Total number of blocks
  - Total number of DKG sessions started
  - Total number of final commitments mined
  - Total number of DKG intervals that failed
- Logs all cumulative data every 10 seconds
- Immediately logs any outstanding data when forced
*/
package progresslog
