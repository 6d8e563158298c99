// Package sip pulls header values and SDP media parameters out of SIP
// message text. Lookups are plain substring searches over CRLF-delimited
// lines; nothing here fails, a missing or malformed field reads as "".
package sip

import (
	"strconv"
	"strings"
)

const (
	CRLF = "\r\n"

	// Marker identifies a SIP start line, at its start for responses and
	// at its end for requests.
	Marker = "SIP/2.0"
)

// FirstLine returns the text before the first CRLF, or "" when the
// message has no line terminator at all.
func FirstLine(message string) string {
	end := strings.Index(message, CRLF)
	if end == -1 {
		return ""
	}
	return message[:end]
}

// IsSignalling reports whether message looks like a SIP request or
// response judging by its first line.
func IsSignalling(message string) bool {
	line := FirstLine(message)
	return strings.HasPrefix(line, Marker) || strings.HasSuffix(line, Marker)
}

// Method returns the request method of a start line, or "" for responses
// and anything that is not a SIP start line.
func Method(firstLine string) string {
	if strings.HasPrefix(firstLine, Marker) || !strings.HasSuffix(firstLine, Marker) {
		return ""
	}
	method, _, ok := strings.Cut(firstLine, " ")
	if !ok {
		return ""
	}
	return method
}

// StatusCode returns the status code of a response start line, or 0.
func StatusCode(firstLine string) int {
	rest, ok := strings.CutPrefix(firstLine, Marker+" ")
	if !ok {
		return 0
	}
	code, _, _ := strings.Cut(rest, " ")
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0
	}
	return n
}

// HeaderValue finds the line "name: value" and returns value. Matching is
// case-sensitive and needs exactly one space after the colon. A header on
// the last, unterminated line is not found.
func HeaderValue(message, name string) string {
	start := strings.Index(message, CRLF+name+": ")
	if start <= 0 {
		return ""
	}
	sp := strings.IndexByte(message[start:], ' ')
	start += sp + 1
	end := strings.Index(message[start:], CRLF)
	if end == -1 {
		return ""
	}
	return message[start : start+end]
}

// headerValue prefers the long header name and falls back to the compact
// one.
func headerValue(message, long, compact string) string {
	if v := HeaderValue(message, long); v != "" {
		return v
	}
	if compact == "" {
		return ""
	}
	return HeaderValue(message, compact)
}

func CallID(message string) string        { return headerValue(message, "Call-ID", "i") }
func From(message string) string          { return headerValue(message, "From", "f") }
func To(message string) string            { return headerValue(message, "To", "t") }
func CSeq(message string) string          { return headerValue(message, "CSeq", "") }
func Supported(message string) string     { return headerValue(message, "Supported", "k") }
func Contact(message string) string       { return headerValue(message, "Contact", "m") }
func Via(message string) string           { return headerValue(message, "Via", "v") }
func ContentType(message string) string   { return headerValue(message, "Content-Type", "c") }
func ContentLength(message string) string { return headerValue(message, "Content-Length", "l") }

// Expires returns the Expires header, falling back to the digits of the
// first "expires=" parameter anywhere in the message (REGISTER contacts).
func Expires(message string) string {
	if v := HeaderValue(message, "Expires"); v != "" {
		return v
	}
	const param = "expires="
	start := strings.Index(message, param)
	if start == -1 {
		return ""
	}
	start += len(param)
	end := start
	for end < len(message) && message[end] >= '0' && message[end] <= '9' {
		end++
	}
	return message[start:end]
}

// TagValue returns the value of a "name=value" parameter inside a header
// value, ending at the next ';' or '>'. A parameter at the very start of
// header is not recognised.
//
//	TagValue("<sip:bob@example.com>;tag=a6c85cf", "tag") == "a6c85cf"
func TagValue(header, tag string) string {
	start := strings.Index(header, tag+"=")
	if start <= 0 {
		return ""
	}
	start += len(tag) + 1
	if start >= len(header) {
		return ""
	}
	end := strings.IndexAny(header[start:], ";>")
	if end == -1 {
		return header[start:]
	}
	return header[start : start+end]
}

// AddressValue returns the URI between "<sip:" and the following '>'.
func AddressValue(header string) string {
	const open = "<sip:"
	start := strings.Index(header, open)
	if start == -1 {
		return ""
	}
	end := strings.IndexByte(header[start:], '>')
	if end == -1 {
		return ""
	}
	return header[start+len(open) : start+end]
}
