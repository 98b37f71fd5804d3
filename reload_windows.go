//go:build windows

package main

import "context"

// setupReloadSignal does nothing: Windows has no SIGUSR1.
func setupReloadSignal(_ context.Context, _ func(string)) (stop func()) {
	return func() {}
}
