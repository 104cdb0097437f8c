// Package compilerlog provides a gated debug logger used by the CLI
// (cmd/cheetahc) for its --verbose tracing. The compiler packages do not
// call it; the core never logs on its hot path (spec §5: a compile
// is a pure function of (source, options)); this exists purely for
// operators running the CLI with --verbose.
package compilerlog

import (
	"fmt"
	"log"
	"os"
)

var (
	debug  bool
	logger = log.New(os.Stderr, "[cheetahc] ", log.LstdFlags)
)

// SetDebug turns the gate on or off. Off by default.
func SetDebug(b bool) {
	debug = b
}

// Debug reports whether the gate is currently on.
func Debug() bool {
	return debug
}

// Logf logs format/items if the debug gate is on; otherwise it's a no-op.
func Logf(format string, items ...interface{}) {
	if debug {
		logger.Printf(format, items...)
	}
}

// Tracef is like Logf but prefixes the message with a sender tag, mirroring
// the teacher's Logf(sender, format, items...) shape.
func Tracef(sender, format string, items ...interface{}) {
	if debug {
		logger.Printf("[%s] %s", sender, fmt.Sprintf(format, items...))
	}
}
