// Package logx centralizes the "warn and continue" diagnostic pattern used
// throughout the Kbuild store, path resolver, and emitter. It does not
// introduce a logging framework: both helpers are thin wrappers over
// fmt.Fprintf(os.Stderr, ...), matching gophersat's own diagnostics style.
package logx

import (
	"fmt"
	"os"
)

// Warnf writes a "c WARN: " prefixed diagnostic line to stderr.
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "c WARN: "+format+"\n", args...)
}

// Infof writes a "c " prefixed informational line to stderr.
func Infof(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "c "+format+"\n", args...)
}
