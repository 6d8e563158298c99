package decode

import (
	"errors"
	"testing"

	"github.com/endorses/voipfilter/internal/pkg/testpkt"
	"github.com/endorses/voipfilter/internal/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeUDP(t *testing.T) {
	seg := testpkt.UDPPayload(5060, 30000, []byte("sip text"))

	u, err := DecodeUDP(seg)
	require.NoError(t, err)
	assert.Equal(t, uint16(5060), u.SrcPort)
	assert.Equal(t, uint16(30000), u.DstPort)
	assert.Equal(t, uint16(16), u.Length)
	assert.Equal(t, []byte("sip text"), u.Payload())
	assert.True(t, u.HasPort(30000))
	assert.False(t, u.HasPort(5061))
}

func TestDecodeUDP_PayloadClampedToCapture(t *testing.T) {
	seg := testpkt.UDPPayload(1, 2, []byte("0123456789"))

	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"capture cut before declared length", seg[:12], []byte("0123")},
		{"header only", seg[:8], []byte{}},
		{"declared length below header", append([]byte{0, 1, 0, 2, 0, 3, 0, 0}, 'x'), []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := DecodeUDP(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.Payload())
		})
	}
}

func TestDecodeUDP_Truncated(t *testing.T) {
	_, err := DecodeUDP([]byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, wire.ErrTruncated))
	assert.Equal(t, "udp: truncated: need 8 bytes, have 3", err.Error())
}

func TestDecodeTCP(t *testing.T) {
	ip, err := DecodeIPv4(testpkt.TCP(1, 5060, 40000, []byte("REGISTER")))
	require.NoError(t, err)

	tcp, err := DecodeTCP(ip.Payload)
	require.NoError(t, err)
	assert.Equal(t, uint16(5060), tcp.SrcPort)
	assert.Equal(t, uint16(40000), tcp.DstPort)
	assert.Equal(t, uint32(1000), tcp.Seq)
	assert.Equal(t, uint32(2000), tcp.Ack)
	assert.Equal(t, uint8(5), tcp.DataOffset)
	assert.True(t, tcp.PSH())
	assert.True(t, tcp.ACK())
	assert.False(t, tcp.SYN())
	assert.False(t, tcp.FIN())
	assert.False(t, tcp.RST())
	assert.Equal(t, uint16(65535), tcp.Window)
	assert.Equal(t, []byte("REGISTER"), tcp.Payload())
	assert.Equal(t, "5060 --> 40000 [ACK, PSH] Seq.num=1000 Ack.num=2000 window=65535 len=8", tcp.String())
}

func TestDecodeTCP_Flags(t *testing.T) {
	b := make([]byte, 20)
	b[12] = 0x51 // data offset 5, NS set
	b[13] = 0x12 // SYN, ACK

	tcp, err := DecodeTCP(b)
	require.NoError(t, err)
	assert.Equal(t, TCPFlagNS|TCPFlagSYN|TCPFlagACK, tcp.Flags)
	assert.True(t, tcp.SYN())
	assert.Empty(t, tcp.Payload())
}

func TestDecodeTCP_DataOffsetBeyondSegment(t *testing.T) {
	b := make([]byte, 24)
	b[12] = 0xf0

	tcp, err := DecodeTCP(b)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, tcp.Payload())
}

func TestDecodeTCP_Truncated(t *testing.T) {
	_, err := DecodeTCP(make([]byte, 19))
	assert.True(t, errors.Is(err, wire.ErrTruncated), "got %v", err)
}

func TestDecodeTransport(t *testing.T) {
	seg, err := DecodeTransport(ProtocolUDP, testpkt.UDPPayload(1, 2, nil))
	require.NoError(t, err)
	_, ok := seg.(*UDP)
	assert.True(t, ok)

	seg, err = DecodeTransport(ProtocolTCP, make([]byte, 20))
	require.NoError(t, err)
	_, ok = seg.(*TCP)
	assert.True(t, ok)

	seg, err = DecodeTransport(1, []byte{8, 0, 0, 0})
	assert.NoError(t, err)
	assert.Nil(t, seg)

	_, err = DecodeTransport(ProtocolUDP, []byte{1})
	assert.True(t, errors.Is(err, wire.ErrTruncated))
}
