package voip

import (
	"testing"

	"github.com/endorses/voipfilter/internal/pkg/decode"
	"github.com/endorses/voipfilter/internal/pkg/testpkt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sipDatagram(payload []byte) *decode.UDP {
	return decode.NewUDP(5060, 5060, payload)
}

func TestCallSession_FilterOnHeaders(t *testing.T) {
	msg := testpkt.SIPMessage("INVITE sip:bob@example.com SIP/2.0", []string{
		"From: Alice <sip:0912222333@example.com>;tag=1",
		"To: Bob <sip:bob@example.com>",
		"Call-ID: abc123@host",
	}, "")

	tests := []struct {
		name   string
		filter string
		want   bool
	}{
		{"no filter matches all", "", true},
		{"call-id substring", "abc123", true},
		{"from number", "0912222333", true},
		{"to user", "bob@", true},
		{"no header contains it", "xyz", false},
		{"case-sensitive", "ABC123", false},
		{"first line does not count", "INVITE", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewCallSession(tt.filter, 0)
			assert.Equal(t, tt.want, s.Accept(sipDatagram(msg)))
			assert.Equal(t, tt.want, s.Matched())
		})
	}
}

func TestCallSession_CompactHeadersEquivalent(t *testing.T) {
	long := testpkt.SIPMessage("INVITE sip:bob@example.com SIP/2.0", []string{"Call-ID: abc123"}, "")
	compact := testpkt.SIPMessage("INVITE sip:bob@example.com SIP/2.0", []string{"i: abc123"}, "")

	for _, filter := range []string{"abc123", "abc", "zzz", ""} {
		a := NewCallSession(filter, 0).Accept(sipDatagram(long))
		b := NewCallSession(filter, 0).Accept(sipDatagram(compact))
		assert.Equal(t, a, b, "filter %q", filter)
	}
}

func TestCallSession_NotSignalling(t *testing.T) {
	s := NewCallSession("", 0)

	d := s.Inspect(sipDatagram([]byte("OPTIONS ping\r\n")))
	assert.False(t, d.Matched)
	assert.Nil(t, d.SIP)
	assert.Equal(t, ReasonNone, d.Reason)
}

func TestCallSession_LearnsMediaPort(t *testing.T) {
	s := NewCallSession("call-1", 0)

	d := s.Inspect(sipDatagram(testpkt.Invite("call-1", 30000)))
	require.True(t, d.Matched)
	assert.Equal(t, ReasonSignalling, d.Reason)
	assert.Equal(t, uint16(30000), d.LearnedPort)
	assert.Equal(t, []uint16{30000}, s.MediaPorts())

	rtp := decode.NewUDP(40000, 30000, []byte{0x80, 0x00, 0, 1})
	d = s.Inspect(rtp)
	assert.True(t, d.Matched)
	assert.Equal(t, ReasonMedia, d.Reason)

	reverse := decode.NewUDP(30000, 40000, []byte{0x80})
	assert.True(t, s.Accept(reverse))

	other := decode.NewUDP(40000, 30002, []byte{0x80})
	assert.False(t, s.Accept(other))
	assert.False(t, s.Matched())
}

func TestCallSession_RelearningIsIdempotent(t *testing.T) {
	s := NewCallSession("", 0)

	assert.Equal(t, uint16(30000), s.Inspect(sipDatagram(testpkt.Invite("c", 30000))).LearnedPort)
	assert.Zero(t, s.Inspect(sipDatagram(testpkt.Invite("c", 30000))).LearnedPort)
	s.Accept(sipDatagram(testpkt.Invite("c", 20000)))

	assert.Equal(t, []uint16{20000, 30000}, s.MediaPorts())
}

func TestCallSession_UnmatchedCallTeachesNothing(t *testing.T) {
	s := NewCallSession("wanted", 0)

	assert.False(t, s.Accept(sipDatagram(testpkt.Invite("other", 30000))))
	assert.Empty(t, s.MediaPorts())
	assert.False(t, s.Accept(decode.NewUDP(1234, 30000, []byte{0x80})))
}

func TestCallSession_SDPNeedsContentType(t *testing.T) {
	body := testpkt.SDP("10.0.0.1", 30000)
	msg := testpkt.SIPMessage("INVITE sip:bob@example.com SIP/2.0", []string{
		"Call-ID: c1",
		"Content-Type: text/plain",
	}, body)

	s := NewCallSession("c1", 0)
	assert.True(t, s.Accept(sipDatagram(msg)))
	assert.Empty(t, s.MediaPorts())
}

func TestCallSession_SIPPortTakesPrecedence(t *testing.T) {
	s := NewCallSession("", 0)
	s.Accept(sipDatagram(testpkt.Invite("c", 5062)))
	require.Equal(t, []uint16{5062}, s.MediaPorts())

	// Port 5060 is inspected as signalling even when the other port was learned.
	assert.False(t, s.Accept(decode.NewUDP(5062, 5060, []byte{0x80, 0x00})))
}

func TestCallSession_CustomSIPPort(t *testing.T) {
	s := NewCallSession("abc", 5080)
	assert.Equal(t, uint16(5080), s.SIPPort())

	msg := testpkt.SIPMessage("SIP/2.0 200 OK", []string{"Call-ID: abc"}, "")
	assert.False(t, s.Accept(decode.NewUDP(5060, 5060, msg)))
	assert.True(t, s.Accept(decode.NewUDP(5080, 6000, msg)))
}

func TestCallSession_ResponsesMatch(t *testing.T) {
	s := NewCallSession("abc", 0)
	msg := testpkt.SIPMessage("SIP/2.0 180 Ringing", []string{"Call-ID: abc"}, "")

	d := s.Inspect(sipDatagram(msg))
	assert.True(t, d.Matched)
	require.NotNil(t, d.SIP)
	assert.Equal(t, "", d.SIP.Method)
}
