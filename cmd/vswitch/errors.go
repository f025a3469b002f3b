package main

import "errors"

// Flag/config errors
var (
	ErrMissingSocketFile = errors.New("at least one --socket-file is required")
	ErrInvalidCPUFreq    = errors.New("--cpu-freq must be positive")
	ErrInvalidPoolCount  = errors.New("--num-pools must be positive")
)

// Startup errors
var (
	ErrBuildSwitchContext  = errors.New("build switch context")
	ErrOpenEventLog        = errors.New("open event log")
	ErrSetupFirewallMirror = errors.New("setup nftables mirror")
)

// Demo-guest errors
var (
	ErrCreateDemoGuest = errors.New("create demo guest")
	ErrRegisterGuest   = errors.New("register demo guest transport")
)
