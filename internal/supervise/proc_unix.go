//go:build !windows

package supervise

import (
	"os"
	"syscall"
)

// detachSysProcAttr places the child in its own session so it is decoupled
// from the orchestrator's terminal and lifetime.
func detachSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// terminateProcess requests graceful termination.
func terminateProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
