// Package debug provides a gated diagnostic logger. Output is off by
// default and enabled by setting MALWI_DEBUG=1, so a scan never prints
// anything beyond its report unless a developer opts in.
package debug

import (
	"fmt"
	"os"
	"sync"
)

var (
	mu      sync.Mutex
	enabled = os.Getenv("MALWI_DEBUG") != ""
)

// SetEnabled overrides the environment-derived default; tests use this to
// keep diagnostic output out of -v runs.
func SetEnabled(v bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = v
}

// Printf writes a diagnostic line to stderr when debug output is enabled.
func Printf(format string, args ...interface{}) {
	mu.Lock()
	on := enabled
	mu.Unlock()
	if !on {
		return
	}
	fmt.Fprintf(os.Stderr, "[malwi] "+format+"\n", args...)
}
