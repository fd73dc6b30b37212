// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"runtime"

	"github.com/alterdot/adotd/internal/statedb"
	"github.com/alterdot/adotd/internal/version"
)

// llmqsimMain is the real main function for llmqsim.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func llmqsimMain() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	simuLog.Infof("Version %s (Go version %s %s/%s)", version.String(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
	simuLog.Infof("Simulating %d blocks of %s with %d masternodes",
		cfg.Blocks, cfg.params.Name, cfg.Masternodes)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var db *statedb.DB
	if cfg.DataDir != "" {
		db, err = statedb.Open(cfg.DataDir)
	} else {
		db, err = statedb.OpenMemory()
	}
	if err != nil {
		simuLog.Errorf("Unable to open state database: %v", err)
		return err
	}
	defer func() {
		simuLog.Info("Closing state database...")
		if err := db.Close(); err != nil {
			simuLog.Errorf("Unable to close state database: %v", err)
		}
	}()

	sim, err := newSimulator(cfg, db)
	if err != nil {
		simuLog.Errorf("Unable to create simulator: %v", err)
		return err
	}
	err = sim.run(ctx)
	sim.logSummary()
	switch {
	case errors.Is(err, context.Canceled):
		simuLog.Info("Simulation interrupted")
		return nil
	case err != nil:
		simuLog.Errorf("Simulation failed: %v", err)
	}
	return err
}

func main() {
	if err := llmqsimMain(); err != nil {
		os.Exit(1)
	}
}
