package main

import (
	"context"
	"os"
	"sync/atomic"

	"termwatch/internal/logging"
)

// watchShutdownSignals cancels the run context on the first signal. Repeated
// signals while the drain is in progress are logged once and ignored.
func watchShutdownSignals(logger *logging.Logger, cancelRun context.CancelFunc, signalCh <-chan os.Signal) func() {
	if signalCh == nil {
		return func() {}
	}

	done := make(chan struct{})
	var shutdownStarted atomic.Bool
	var loggedRepeat atomic.Bool

	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signalCh:
				if !ok {
					return
				}
				fields := map[string]string{}
				if sig != nil {
					fields["signal"] = sig.String()
				}
				if shutdownStarted.CompareAndSwap(false, true) {
					if logger != nil {
						logger.Info("shutdown signal received; disconnecting all terminals", fields)
					}
					if cancelRun != nil {
						cancelRun()
					}
					continue
				}
				if loggedRepeat.CompareAndSwap(false, true) && logger != nil {
					logger.Info("shutdown already in progress; ignoring signal", fields)
				}
			}
		}
	}()

	return func() {
		close(done)
	}
}
