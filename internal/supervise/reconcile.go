package supervise

import (
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// findOrphans scans the process table for processes whose command line
// mentions the server binary name. This is a best-effort reconciliation aid
// for servers spawned by a previous orchestrator run: the substring match is
// imprecise and can false-positive against unrelated processes with a
// similar invocation, so callers must treat the result as a hint, never as
// authoritative ownership.
func findOrphans(binaryName string) []*process.Process {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}
	var matches []*process.Process
	for _, p := range procs {
		cmdline, err := p.Cmdline()
		if err != nil || cmdline == "" {
			continue
		}
		if strings.Contains(cmdline, binaryName) {
			matches = append(matches, p)
		}
	}
	return matches
}

// stopOrphan terminates one discovered process: graceful first, then a kill
// after the grace window. Returns false if the process refused to die.
func stopOrphan(p *process.Process, grace time.Duration) bool {
	if err := p.Terminate(); err != nil {
		if kerr := p.Kill(); kerr != nil {
			return false
		}
	}
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		running, err := p.IsRunning()
		if err != nil || !running {
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err := p.Kill(); err != nil {
		return false
	}
	return true
}
