//go:build !windows

package main

import (
	"os"
	"syscall"
)

// terminationSignals end the chat session and stop the devserver.
var terminationSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}
