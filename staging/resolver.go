// Package staging turns file addresses into local paths the application can
// read.
//
// Direct addresses resolve to their own path with no I/O. Indirect addresses
// are copied by a Stager into a process-private scratch directory; a staged
// path only becomes visible once the full copy has been committed.
package staging

import "github.com/pithecene-io/intake/types"

// Resolve classifies addr. For a Direct address it returns the path and
// needsStaging=false. For an Indirect address it returns needsStaging=true
// and an empty path; the address must be handed to a Stager.
//
// Resolve never opens, stats or otherwise touches the address.
func Resolve(addr types.FileAddress) (path string, needsStaging bool) {
	if addr.Scheme == types.SchemeDirect {
		return addr.Raw, false
	}
	return "", true
}
