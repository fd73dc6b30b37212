// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/alterdot/adotd/internal/version"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultLogLevel    = "info"
	defaultLogFilename = "llmqsim.log"
	defaultNetwork     = "regnet"
	defaultBlocks      = 500
	defaultMasternodes = 12
	defaultDevNetName  = "llmqsim"
)

// config defines the configuration options for llmqsim.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion bool     `short:"V" long:"version" description:"Display version information and exit"`
	Network     string   `short:"n" long:"network" description:"Network to simulate {mainnet, testnet, regnet, devnet}"`
	DevNetName  string   `long:"devnetname" description:"Name of the simulated devnet"`
	Blocks      int64    `short:"b" long:"blocks" description:"Number of blocks to simulate"`
	Masternodes int      `short:"m" long:"masternodes" description:"Number of registered masternodes"`
	Signal      []string `short:"s" long:"signal" description:"Deployment miners signal for when it is started -- may be specified multiple times, all started deployments are signalled when none are specified"`
	NoSignal    bool     `long:"nosignal" description:"Never signal for any deployment"`
	Byzantine   int      `long:"byzantine" description:"Number of members of each DKG session that deal corrupted shares and never justify them"`
	DataDir     string   `long:"datadir" description:"Directory to store the simulated state in -- state is kept in memory when empty"`
	LogDir      string   `long:"logdir" description:"Directory to log output -- only standard output is used when empty"`
	DebugLevel  string   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	params   *chaincfg.Params
	signalID map[chaincfg.DeploymentID]struct{}
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = strings.Replace(path, "~", homeDir, 1)
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// validLogLevel returns whether or not logLevel is a valid debug log level.
func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// parseAndSetDebugLevels attempts to parse the specified debug level and set
// the levels accordingly.  An appropriate error is returned if anything is
// invalid.
func parseAndSetDebugLevels(debugLevel string) error {
	// When the specified string doesn't have any delimiters, treat it as
	// the log level for all subsystems.
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, debugLevel)
		}
		setLogLevels(debugLevel)
		return nil
	}

	// Split the specified string into subsystem/level pairs while detecting
	// issues and update the log levels accordingly.
	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			str := "the specified debug level contains an invalid " +
				"subsystem/level pair [%v]"
			return fmt.Errorf(str, logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]
		if _, exists := subsystemLoggers[subsysID]; !exists {
			str := "the specified subsystem [%v] is invalid -- " +
				"supported subsystems %v"
			return fmt.Errorf(str, subsysID, supportedSubsystems())
		}
		if !validLogLevel(logLevel) {
			str := "the specified debug level [%v] is invalid"
			return fmt.Errorf(str, logLevel)
		}
		setLogLevel(subsysID, logLevel)
	}
	return nil
}

// networkParams returns the parameters of the named network.
func networkParams(name, devNetName string) (*chaincfg.Params, error) {
	switch name {
	case "mainnet":
		return chaincfg.MainNetParams(), nil
	case "testnet":
		return chaincfg.TestNetParams(), nil
	case "regnet":
		return chaincfg.RegNetParams(), nil
	case "devnet":
		return chaincfg.DevNetParams(chaincfg.DevNetConfig{Name: devNetName})
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

// parseDeployments returns the deployments identified by the provided names.
func parseDeployments(names []string) (map[chaincfg.DeploymentID]struct{}, error) {
	ids := make(map[chaincfg.DeploymentID]struct{}, len(names))
	for _, name := range names {
		found := false
		for id := chaincfg.DeploymentID(0); id < chaincfg.DefinedDeployments; id++ {
			if strings.EqualFold(id.String(), name) {
				ids[id] = struct{}{}
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown deployment %q", name)
		}
	}
	return ids, nil
}

// loadConfig initializes and parses the config using command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Parse CLI options and overwrite/add any specified options
//  3. Validate the options and resolve the network
func loadConfig() (*config, []string, error) {
	cfg := config{
		Network:     defaultNetwork,
		DevNetName:  defaultDevNetName,
		Blocks:      defaultBlocks,
		Masternodes: defaultMasternodes,
		DebugLevel:  defaultLogLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if cfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version.String())
		os.Exit(0)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	usageErr := func(err error) (*config, []string, error) {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "Use llmqsim -h to show usage")
		return nil, nil, err
	}

	cfg.params, err = networkParams(cfg.Network, cfg.DevNetName)
	if err != nil {
		return usageErr(fmt.Errorf("loadConfig: %w", err))
	}
	if cfg.Blocks < 1 {
		return usageErr(fmt.Errorf("loadConfig: the number of blocks must "+
			"be positive, got %d", cfg.Blocks))
	}
	if cfg.Masternodes < 1 {
		return usageErr(fmt.Errorf("loadConfig: the number of masternodes "+
			"must be positive, got %d", cfg.Masternodes))
	}
	if cfg.Byzantine < 0 {
		return usageErr(fmt.Errorf("loadConfig: the number of byzantine "+
			"members must not be negative, got %d", cfg.Byzantine))
	}
	if cfg.NoSignal && len(cfg.Signal) > 0 {
		return usageErr(errors.New("loadConfig: the signal and nosignal " +
			"options can't be used together"))
	}
	cfg.signalID, err = parseDeployments(cfg.Signal)
	if err != nil {
		return usageErr(fmt.Errorf("loadConfig: %w", err))
	}

	// State and logs are namespaced per network.
	cfg.DataDir = cleanAndExpandPath(cfg.DataDir)
	if cfg.DataDir != "" {
		cfg.DataDir = filepath.Join(cfg.DataDir, cfg.params.Name)
	}
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	if cfg.LogDir != "" {
		cfg.LogDir = filepath.Join(cfg.LogDir, cfg.params.Name)
		logFile := filepath.Join(cfg.LogDir, defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			return usageErr(err)
		}
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return usageErr(fmt.Errorf("loadConfig: %w", err))
	}

	return &cfg, remainingArgs, nil
}

// signals returns whether miners signal for the deployment once it started.
func (cfg *config) signals(id chaincfg.DeploymentID) bool {
	if cfg.NoSignal {
		return false
	}
	if len(cfg.signalID) == 0 {
		return true
	}
	_, ok := cfg.signalID[id]
	return ok
}
