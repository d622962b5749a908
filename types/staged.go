package types

// MethodFileReceived is the only outbound message name on the bridge.
const MethodFileReceived = "onFileReceived"

// DefaultChannel is the bridge channel name used when none is configured.
const DefaultChannel = "intake/file_receiver"

// StagedFile is a complete copy of Indirect bytes in the scratch directory.
// It is only ever returned after the copy and rename have both succeeded.
type StagedFile struct {
	// Path is the absolute destination path (received_<token>.xlsx).
	Path string `msgpack:"path" json:"path"`
	// CreatedAtEpochMillis is when staging completed.
	CreatedAtEpochMillis int64 `msgpack:"created_at_ms" json:"created_at_ms"`
	// Size is the number of bytes copied.
	Size int64 `msgpack:"size" json:"size"`
}

// FileReceived is the notification delivered to the application logic layer.
// Path resolves to a complete, readable file at the time of delivery.
type FileReceived struct {
	// Channel is the bridge channel name.
	Channel string `msgpack:"channel" json:"channel"`
	// Method is always MethodFileReceived.
	Method string `msgpack:"method" json:"method"`
	// Path is the absolute local path of the received file.
	Path string `msgpack:"path" json:"path"`
	// Staged is true when Path points into the scratch directory.
	Staged bool `msgpack:"staged" json:"staged"`
	// Timestamp is the notification time in RFC 3339 UTC format.
	Timestamp string `msgpack:"ts" json:"timestamp"`
}
