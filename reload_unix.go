//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// setupReloadSignal rebuilds on SIGUSR1 until ctx is done or the returned
// function is called.
func setupReloadSignal(ctx context.Context, rebuild func(string)) (stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGUSR1)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for {
			select {
			case <-sigChan:
				rebuild("manual reload (SIGUSR1)")
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(done)
		<-finished
	}
}
