//go:build windows

package mcp

import "os"

// shutdownSignals are the signals that stop a running server. Windows has
// no SIGTERM.
var shutdownSignals = []os.Signal{os.Interrupt}
