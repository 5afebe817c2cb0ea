//go:build !windows

package mcp

import (
	"os"
	"syscall"
)

// shutdownSignals are the signals that stop a running server.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
