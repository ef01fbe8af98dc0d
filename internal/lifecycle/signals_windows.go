//go:build windows

package lifecycle

import "os"

func watchedSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// The host stops the worker by killing the process on Windows; there is no
// SIGTERM delivery to hook.
func unsupportedSignals() []string {
	return []string{"SIGTERM"}
}

func signalName(sig os.Signal) string {
	if sig == os.Interrupt {
		return "SIGINT"
	}
	return sig.String()
}
