package sip

import (
	"strconv"
)

// Message is a SIP message with the fields used for call correlation
// already extracted.
type Message struct {
	Text      string
	FirstLine string
	Method    string
	CallID    string
	From      string
	To        string
	CSeq      string
	// ContentType is empty when the header is absent.
	ContentType string
}

// Parse extracts the correlation fields of text. It does not check that
// text is SIP; see IsSignalling.
func Parse(text string) *Message {
	first := FirstLine(text)
	return &Message{
		Text:        text,
		FirstLine:   first,
		Method:      Method(first),
		CallID:      CallID(text),
		From:        From(text),
		To:          To(text),
		CSeq:        CSeq(text),
		ContentType: ContentType(text),
	}
}

func (m *Message) IsSignalling() bool { return IsSignalling(m.Text) }

func (m *Message) IsResponse() bool { return StatusCode(m.FirstLine) != 0 }

func (m *Message) HasSDP() bool { return HasSDP(m.Text) }

func (m *Message) FromTag() string { return TagValue(m.From, "tag") }

func (m *Message) ToTag() string { return TagValue(m.To, "tag") }

func (m *Message) FromAddress() string { return AddressValue(m.From) }

func (m *Message) ToAddress() string { return AddressValue(m.To) }

// MediaPort returns the SDP audio port, or 0 when there is none or it is
// not a valid port number.
func (m *Message) MediaPort() uint16 {
	p, err := strconv.ParseUint(MediaPort(m.Text), 10, 16)
	if err != nil {
		return 0
	}
	return uint16(p)
}

func (m *Message) MediaAddress() string { return MediaAddress(m.Text) }

func (m *Message) MediaCodec() uint8 { return MediaCodec(m.Text) }
