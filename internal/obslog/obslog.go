// Package obslog provides the structured logger shared by the GPU
// device wrapper and the frame graph. It wraps log/slog rather than
// introducing a third-party logging library, matching the direct
// slog.Error(...) call style used elsewhere for GPU diagnostics.
package obslog

import (
	"log/slog"
	"os"
)

// L is the frame-graph-wide logger. Tests may redirect it with SetOutput.
var L = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

// SetOutput replaces L with a logger that sends its records to h. It
// exists so tests can capture log output deterministically.
func SetOutput(h slog.Handler) { L = slog.New(h) }

// Compile logs a frame-graph compile-phase transition.
func Compile(phase string, nodes int) {
	L.Info("compile", "phase", phase, "nodes", nodes)
}

// PassInit logs a pass finishing its Init step.
func PassInit(name string) {
	L.Info("pass init", "pass", name)
}

// PassReset logs a pass finishing its Reset step.
func PassReset(name string) {
	L.Info("pass reset", "pass", name)
}

// Resize logs a frame graph resize.
func Resize(width, height int) {
	L.Info("resize", "width", width, "height", height)
}

// Elided logs a logical resource that was declared but never read,
// and was therefore dropped from the execution set.
func Elided(resource string) {
	L.Info("resource elided", "resource", resource)
}
