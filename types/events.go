package types

import "strings"

// Action is the hand-off verb the operating system attached to an intake event.
type Action string

// Action constants. Any other value is carried through but never actionable.
const (
	ActionView Action = "view"
	ActionSend Action = "send"
)

// Supported declares the only media types that make an intake event actionable.
const (
	// MediaTypeLegacySpreadsheet is the .xls MIME identifier.
	MediaTypeLegacySpreadsheet = "application/vnd.ms-excel"
	// MediaTypeModernSpreadsheet is the .xlsx MIME identifier.
	MediaTypeModernSpreadsheet = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// IsSupportedMediaType reports whether mediaType is one of the spreadsheet
// identifiers. Comparison ignores case and MIME parameters ("; charset=...").
func IsSupportedMediaType(mediaType string) bool {
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case MediaTypeLegacySpreadsheet, MediaTypeModernSpreadsheet:
		return true
	default:
		return false
	}
}

// IntakeEvent is an operating-system hand-off directed at the application,
// delivered on launch or on resume. It is immutable once produced.
// All fields use msgpack tags to match the shell frame wire format.
type IntakeEvent struct {
	// Action is the hand-off verb (view or send).
	Action Action `msgpack:"action" json:"action"`
	// MediaType is the MIME type declared by the sender.
	MediaType string `msgpack:"media_type" json:"media_type"`
	// Data is the primary address, used by view events.
	Data *FileAddress `msgpack:"data,omitempty" json:"data,omitempty"`
	// Items is the multi-item payload collection of a send event.
	Items []FileAddress `msgpack:"items,omitempty" json:"items,omitempty"`
	// Stream is the single extra-payload address of a send event.
	Stream *FileAddress `msgpack:"stream,omitempty" json:"stream,omitempty"`
	// ColdStart is true when the event launched the application. Handling
	// follows the frame the event arrived in (launch or resume); a
	// disagreeing flag is only logged.
	ColdStart bool `msgpack:"cold_start" json:"cold_start"`
}

// Addresses returns every address the event carries, in order:
// primary address, payload items, then the extra-payload address.
func (e *IntakeEvent) Addresses() []FileAddress {
	var out []FileAddress
	if e.Data != nil {
		out = append(out, *e.Data)
	}
	out = append(out, e.Items...)
	if e.Stream != nil {
		out = append(out, *e.Stream)
	}
	return out
}
