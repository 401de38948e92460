// Package iox holds cleanup helpers shared by the client, its backends and
// the CLI.
package iox

import "io"

// DiscardClose closes c and drops the error, for response bodies and
// clients whose close failure changes nothing:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc adapts c for t.Cleanup.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr runs fn and drops its error. Used for logger.Sync, which
// fails on terminals.
func DiscardErr(fn func() error) { _ = fn() }

// Warner is the logging surface WarnClose reports through. *log.Logger
// satisfies it.
type Warner interface {
	Warn(msg string, fields map[string]any)
}

// WarnClose closes c and logs a failure as a warning under msg. Used for
// files whose close flushes buffered data.
func WarnClose(c io.Closer, w Warner, msg string) {
	if err := c.Close(); err != nil {
		w.Warn(msg, map[string]any{"error": err.Error()})
	}
}
