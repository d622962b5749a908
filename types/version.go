package types

// Version is the canonical project version.
// The CLI, the shell frame contract and the bridge message share this version.
const Version = "0.1.0"
