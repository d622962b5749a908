// Package intent decides whether an operating-system hand-off carries a
// spreadsheet for this application and extracts the address to take.
//
// A skipped event is a normal outcome, not an error: the hand-off is simply
// not for us.
package intent

import "github.com/pithecene-io/intake/types"

// Skip classifies why an event produced no address.
type Skip int

const (
	// SkipNone means the classification is applicable.
	SkipNone Skip = iota
	// SkipUnsupported means the action or media type is not recognized.
	SkipUnsupported
	// SkipNoAddress means the event was applicable but carried no address.
	SkipNoAddress
)

// String returns the log label for the skip reason.
func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipUnsupported:
		return "unsupported_event"
	case SkipNoAddress:
		return "address_missing"
	default:
		return "unknown"
	}
}

// Classification is the result of Classify.
type Classification struct {
	// Addresses holds the candidate addresses. At most one is ever returned.
	Addresses []types.FileAddress
	// Skip is SkipNone when Addresses is non-empty.
	Skip Skip
}

// Applicable reports whether the event should be resolved and delivered.
func (c Classification) Applicable() bool {
	return c.Skip == SkipNone && len(c.Addresses) > 0
}

// Classify inspects ev and returns the address to take, if any.
//
//   - view: the primary address is the sole candidate.
//   - send: the first payload item wins even if several were shared;
//     without payload items the extra-payload address is used.
func Classify(ev *types.IntakeEvent) Classification {
	if ev == nil {
		return Classification{Skip: SkipUnsupported}
	}
	if ev.Action != types.ActionView && ev.Action != types.ActionSend {
		return Classification{Skip: SkipUnsupported}
	}
	if !types.IsSupportedMediaType(ev.MediaType) {
		return Classification{Skip: SkipUnsupported}
	}

	var addr *types.FileAddress
	switch ev.Action {
	case types.ActionView:
		addr = ev.Data
	case types.ActionSend:
		if len(ev.Items) > 0 {
			addr = &ev.Items[0]
		} else {
			addr = ev.Stream
		}
	}

	if addr == nil || addr.Raw == "" {
		return Classification{Skip: SkipNoAddress}
	}
	return Classification{Addresses: []types.FileAddress{*addr}}
}
