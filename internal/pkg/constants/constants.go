// Package constants holds values shared between the voipfilter CLI and its
// pipeline packages.
package constants

// SIP
const (
	// DefaultSIPPort is the UDP port inspected for SIP signalling unless
	// configured otherwise.
	DefaultSIPPort = 5060
)

// Output capture
const (
	// OutputSnapLen is the snap length declared in the output global header.
	OutputSnapLen = 0x400000
)

// Log file rotation
const (
	DefaultLogMaxSize    = "100M"
	DefaultLogMaxBackups = 3
)
