package sip

import (
	"fmt"
	"testing"

	"github.com/endorses/voipfilter/internal/pkg/rtp"
	"github.com/stretchr/testify/assert"
)

func withSDP(contentType string, body string) string {
	return "INVITE sip:bob@example.com SIP/2.0\r\n" +
		"Call-ID: sdp-test\r\n" +
		"Content-Type: " + contentType + "\r\n" +
		fmt.Sprintf("Content-Length: %d\r\n", len(body)) +
		"\r\n" + body
}

func sdpBody(extra ...string) string {
	body := "v=0\r\n" +
		"o=alice 2890844526 2890844526 IN IP4 10.0.0.1\r\n" +
		"s=-\r\n" +
		"c=IN IP4 10.0.0.1\r\n" +
		"t=0 0\r\n" +
		"m=audio 49170 RTP/AVP 0 8 18\r\n"
	for _, l := range extra {
		body += l + "\r\n"
	}
	return body
}

func TestMediaAddressAndPort(t *testing.T) {
	msg := withSDP(ContentTypeSDP, sdpBody())
	assert.True(t, HasSDP(msg))
	assert.Equal(t, "10.0.0.1", MediaAddress(msg))
	assert.Equal(t, "49170", MediaPort(msg))
}

func TestMediaPort_LastAudioLineWins(t *testing.T) {
	msg := withSDP(ContentTypeSDP, sdpBody("m=audio 50000 RTP/AVP 8"))
	assert.Equal(t, "50000", MediaPort(msg))
}

func TestSDP_RequiresContentTypeAndLength(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"other content type", withSDP("application/isup", sdpBody())},
		{"content type with parameters", withSDP("application/sdp; charset=utf-8", sdpBody())},
		{"no content length", "INVITE x SIP/2.0\r\nContent-Type: application/sdp\r\n\r\n" + sdpBody()},
		{"no v=0 after blank line", withSDP(ContentTypeSDP, "o=x\r\nm=audio 1 RTP/AVP 0\r\n")},
		{"no body", invite},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, HasSDP(tt.msg))
			assert.Equal(t, "", MediaPort(tt.msg))
			assert.Equal(t, "", MediaAddress(tt.msg))
			assert.Equal(t, rtp.PayloadTypePCMU, MediaCodec(tt.msg))
		})
	}
}

func TestSDP_CompactContentType(t *testing.T) {
	body := sdpBody()
	msg := "INVITE x SIP/2.0\r\nc: application/sdp\r\n" +
		fmt.Sprintf("l: %d\r\n", len(body)) + "\r\n" + body
	assert.Equal(t, "49170", MediaPort(msg))
}

func TestMediaCodec(t *testing.T) {
	tests := []struct {
		name    string
		rtpmaps []string
		want    uint8
	}{
		{"g729 preferred over pcma", []string{"a=rtpmap:8 PCMA/8000", "a=rtpmap:18 G729/8000"}, rtp.PayloadTypeG729},
		{"pcma over pcmu", []string{"a=rtpmap:0 PCMU/8000", "a=rtpmap:8 PCMA/8000"}, rtp.PayloadTypePCMA},
		{"pcmu over speex", []string{"a=rtpmap:110 speex/8000", "a=rtpmap:0 pcmu/8000"}, rtp.PayloadTypePCMU},
		{"speex only", []string{"a=rtpmap:110 SPEEX/8000"}, rtp.PayloadTypeSpeex},
		{"case-insensitive", []string{"a=rtpmap:18 g729/8000"}, rtp.PayloadTypeG729},
		{"unknown codec defaults to pcmu", []string{"a=rtpmap:101 telephone-event/8000"}, rtp.PayloadTypePCMU},
		{"no rtpmap defaults to pcmu", nil, rtp.PayloadTypePCMU},
		{"codec names outside rtpmap ignored", []string{"a=fmtp:18 annexb=no;G729"}, rtp.PayloadTypePCMU},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MediaCodec(withSDP(ContentTypeSDP, sdpBody(tt.rtpmaps...))))
		})
	}
}

func TestParse(t *testing.T) {
	m := Parse(withSDP(ContentTypeSDP, sdpBody("a=rtpmap:8 PCMA/8000")))
	assert.True(t, m.IsSignalling())
	assert.False(t, m.IsResponse())
	assert.Equal(t, "INVITE", m.Method)
	assert.Equal(t, "sdp-test", m.CallID)
	assert.Equal(t, ContentTypeSDP, m.ContentType)
	assert.True(t, m.HasSDP())
	assert.Equal(t, uint16(49170), m.MediaPort())
	assert.Equal(t, "10.0.0.1", m.MediaAddress())
	assert.Equal(t, rtp.PayloadTypePCMA, m.MediaCodec())

	m = Parse(invite)
	assert.Equal(t, "1928301774", m.FromTag())
	assert.Equal(t, "", m.ToTag())
	assert.Equal(t, "alice@atlanta.example.com", m.FromAddress())
	assert.Equal(t, "bob@biloxi.example.com", m.ToAddress())
	assert.Equal(t, uint16(0), m.MediaPort())
}

func TestMessage_MediaPortInvalid(t *testing.T) {
	body := "v=0\r\nm=audio 99999 RTP/AVP 0\r\n"
	assert.Equal(t, uint16(0), Parse(withSDP(ContentTypeSDP, body)).MediaPort())
}
