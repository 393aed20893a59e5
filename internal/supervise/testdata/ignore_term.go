package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Simulates a server that ignores graceful termination so the supervisor has
// to escalate to a kill.
func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		for range sigCh {
			// swallow
		}
	}()
	for {
		time.Sleep(time.Second)
	}
}
