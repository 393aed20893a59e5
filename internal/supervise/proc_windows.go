//go:build windows

package supervise

import (
	"os"
	"syscall"
)

const detachedProcess = 0x00000008

// detachSysProcAttr detaches the child from the parent console so it is
// decoupled from the orchestrator's lifetime.
func detachSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}

// terminateProcess requests termination. Windows has no SIGTERM equivalent
// for detached processes, so this kills outright.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
