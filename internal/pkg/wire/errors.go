// Package wire holds the error taxonomy shared by the binary decoders
// (capture container, link, IPv4, transport and RTP).
package wire

import "fmt"

// Kind classifies a FormatError.
type Kind int

const (
	KindBadMagic Kind = iota + 1
	KindBadVersion
	KindTruncated
	KindUnsupportedLinkType
	KindBadRTPVersion
)

func (k Kind) String() string {
	switch k {
	case KindBadMagic:
		return "bad magic"
	case KindBadVersion:
		return "bad version"
	case KindTruncated:
		return "truncated"
	case KindUnsupportedLinkType:
		return "unsupported link type"
	case KindBadRTPVersion:
		return "bad RTP version"
	default:
		return "unknown"
	}
}

// FormatError reports bytes that do not form a valid header for the layer
// being decoded. All FormatErrors are fatal to the source being read.
type FormatError struct {
	Kind   Kind
	Layer  string // "pcap", "ethernet", "sll", "ipv4", "tcp", "udp", "rtp"
	Detail string
}

func (e *FormatError) Error() string {
	msg := e.Kind.String()
	if e.Layer != "" {
		msg = e.Layer + ": " + msg
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches on Kind so that callers can use errors.Is against the
// sentinels below regardless of layer and detail. A bad RTP version is
// also a bad version.
func (e *FormatError) Is(target error) bool {
	t, ok := target.(*FormatError)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindBadRTPVersion && t.Kind == KindBadVersion
}

// Sentinels for errors.Is.
var (
	ErrBadMagic            = &FormatError{Kind: KindBadMagic}
	ErrBadVersion          = &FormatError{Kind: KindBadVersion}
	ErrTruncated           = &FormatError{Kind: KindTruncated}
	ErrUnsupportedLinkType = &FormatError{Kind: KindUnsupportedLinkType}
	ErrBadRTPVersion       = &FormatError{Kind: KindBadRTPVersion}
)

// Truncated builds a KindTruncated error for layer, recording how many
// bytes were needed and how many were available.
func Truncated(layer string, need, have int) *FormatError {
	return &FormatError{
		Kind:   KindTruncated,
		Layer:  layer,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
	}
}

// Errorf builds a FormatError of the given kind with a formatted detail.
func Errorf(kind Kind, layer, format string, args ...any) *FormatError {
	return &FormatError{Kind: kind, Layer: layer, Detail: fmt.Sprintf(format, args...)}
}
