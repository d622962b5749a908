// Package iox holds cleanup helpers for handles whose close or flush
// errors cannot change the outcome.
package iox

import "io"

// DiscardClose closes c and ignores the error. Used for sources and
// response bodies that have already been fully consumed or abandoned:
//
//	defer iox.DiscardClose(src)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(adapter))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and ignores its error:
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }
