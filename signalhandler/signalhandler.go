// Package signalhandler wires interrupt signals into context cancellation
// so in-flight scans and detection runs can finish cooperatively.
package signalhandler

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
)

// SetupContext returns a context cancelled on SIGINT or SIGTERM. The first
// signal requests a cooperative shutdown; a second signal exits immediately.
func SetupContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		os.Exit(1)
	}()

	return ctx, stop
}

// GetOptimalProcs returns the optimal number of worker goroutines for the
// system. Decoding saturates memory bandwidth before it saturates cores, so
// leave headroom.
func GetOptimalProcs() int {
	numCPU := runtime.NumCPU()

	maxProcs := (numCPU * 3) / 4
	if maxProcs < 1 {
		maxProcs = 1
	}

	return maxProcs
}
