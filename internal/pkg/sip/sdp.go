package sip

import (
	"strings"

	"github.com/endorses/voipfilter/internal/pkg/rtp"
)

// ContentTypeSDP is the only content type whose body is read as SDP.
const ContentTypeSDP = "application/sdp"

// codecs in selection priority order.
var codecs = []struct {
	name        string
	payloadType uint8
}{
	{"g729", rtp.PayloadTypeG729},
	{"pcma", rtp.PayloadTypePCMA},
	{"pcmu", rtp.PayloadTypePCMU},
	{"speex", rtp.PayloadTypeSpeex},
}

// sdpLines returns the lines of the SDP body, or nil when message does not
// declare one or the body cannot be found.
func sdpLines(message string) []string {
	if ContentType(message) != ContentTypeSDP || ContentLength(message) == "" {
		return nil
	}
	start := strings.Index(message, CRLF+CRLF+"v=0")
	if start == -1 {
		return nil
	}
	return strings.Split(message[start+len(CRLF+CRLF):], CRLF)
}

// HasSDP reports whether message carries an SDP body.
func HasSDP(message string) bool {
	return sdpLines(message) != nil
}

// MediaAddress returns the address of the last "c=IN" line.
func MediaAddress(message string) string {
	var addr string
	for _, line := range sdpLines(message) {
		if strings.HasPrefix(line, "c=IN") {
			addr = line[strings.LastIndexByte(line, ' ')+1:]
		}
	}
	return addr
}

// MediaPort returns the port of the last "m=audio" line as text.
func MediaPort(message string) string {
	var port string
	for _, line := range sdpLines(message) {
		if strings.HasPrefix(line, "m=audio") {
			if fields := strings.Fields(line); len(fields) > 1 {
				port = fields[1]
			}
		}
	}
	return port
}

// MediaCodec picks the preferred codec offered by the a=rtpmap lines:
// G.729, then PCMA, PCMU and Speex. PCMU is returned when nothing is
// recognised or there is no SDP.
func MediaCodec(message string) uint8 {
	var offered []string
	for _, line := range sdpLines(message) {
		if strings.HasPrefix(line, "a=rtpmap") {
			offered = append(offered, strings.ToLower(line))
		}
	}
	for _, c := range codecs {
		for _, line := range offered {
			if strings.Contains(line, c.name) {
				return c.payloadType
			}
		}
	}
	return rtp.PayloadTypePCMU
}
