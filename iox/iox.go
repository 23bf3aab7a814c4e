// Package iox provides I/O helpers for resource cleanup.
package iox

import "io"

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(input)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for deferred cleanup and t.Cleanup registration:
//
//	defer iox.CloseFunc(input)()
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for cleanup calls (e.g. a best-effort stream finalize on an error
// path) where the primary error has already been captured:
//
//	iox.DiscardErr(s.Finalize)
func DiscardErr(fn func() error) { _ = fn() }
