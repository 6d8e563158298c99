package decode

import (
	"errors"
	"runtime"
	"testing"

	"github.com/endorses/voipfilter/internal/pkg/testpkt"
	"github.com/endorses/voipfilter/internal/pkg/wire"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

func TestDecodeIPv4(t *testing.T) {
	datagram := testpkt.UDP(4321, 5060, 5070, []byte("hello"))

	ip, err := DecodeIPv4(datagram)
	require.NoError(t, err)
	assert.Equal(t, uint8(4), ip.Version)
	assert.Equal(t, uint8(5), ip.IHL)
	assert.Equal(t, 20, ip.HeaderLen())
	assert.Equal(t, uint16(len(datagram)), ip.TotalLength)
	assert.Equal(t, uint16(4321), ip.ID)
	assert.Equal(t, uint8(64), ip.TTL)
	assert.Equal(t, ProtocolUDP, ip.Protocol)
	assert.Equal(t, "UDP", ip.ProtocolName())
	assert.Equal(t, "192.168.1.100", ip.SrcIP().String())
	assert.Equal(t, "192.168.1.101", ip.DstIP().String())
	assert.False(t, ip.IsFragment())
	assert.Equal(t, datagram[20:], ip.Payload)
	assert.Equal(t, datagram, ip.Raw)
}

func TestDecodeIPv4_FragmentFields(t *testing.T) {
	tests := []struct {
		name     string
		offset   int
		more     bool
		wantOff  uint16
		fragment bool
	}{
		{"first", 0, true, 0, true},
		{"middle", 16, true, 2, true},
		{"last", 1480, false, 185, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip, err := DecodeIPv4(testpkt.Fragment(9, layers.IPProtocolUDP, tt.offset, tt.more, make([]byte, 8)))
			require.NoError(t, err)
			assert.Equal(t, tt.wantOff, ip.FragOffset)
			assert.Equal(t, tt.more, ip.MoreFragments())
			assert.False(t, ip.DontFragment())
			assert.Equal(t, tt.fragment, ip.IsFragment())
			assert.Len(t, ip.Payload, 8)
		})
	}
}

func TestDecodeIPv4_DontFragment(t *testing.T) {
	datagram := testpkt.UDP(1, 1, 2, nil)
	datagram[6] |= 0x40

	ip, err := DecodeIPv4(datagram)
	require.NoError(t, err)
	assert.True(t, ip.DontFragment())
	assert.False(t, ip.IsFragment())
}

func TestDecodeIPv4_InconsistentLengths(t *testing.T) {
	base := testpkt.UDP(1, 1, 2, []byte("0123456789"))

	tests := []struct {
		name    string
		mutate  func(b []byte) []byte
		payload int
	}{
		{"total length below header length", func(b []byte) []byte {
			b[2], b[3] = 0, 10
			return b
		}, 0},
		{"total length beyond capture", func(b []byte) []byte {
			b[2], b[3] = 0x05, 0xdc
			return b
		}, len(base) - 20},
		{"header length beyond capture", func(b []byte) []byte {
			b[0] = 0x4f
			return b[:30]
		}, 0},
		{"trailing link padding ignored", func(b []byte) []byte {
			return append(b, 0, 0, 0, 0)
		}, len(base) - 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := tt.mutate(append([]byte(nil), base...))
			ip, err := DecodeIPv4(b)
			require.NoError(t, err)
			assert.Len(t, ip.Payload, tt.payload)
			assert.NotNil(t, ip.Payload)
		})
	}
}

func TestDecodeIPv4_Truncated(t *testing.T) {
	_, err := DecodeIPv4(make([]byte, 19))
	assert.True(t, errors.Is(err, wire.ErrTruncated), "got %v", err)
}

// Header fields agree with golang.org/x/net/ipv4 for whole datagrams and
// fragments alike.
func TestDecodeIPv4_AgreesWithXNet(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("ipv4.ParseHeader reads raw-socket byte order on BSD-derived systems")
	}

	datagrams := [][]byte{
		testpkt.UDP(77, 5060, 5060, []byte("INVITE sip:bob@example.com SIP/2.0")),
		testpkt.TCP(78, 5060, 40000, []byte("payload")),
		testpkt.Fragment(79, layers.IPProtocolUDP, 1480, false, make([]byte, 24)),
	}

	for _, b := range datagrams {
		ip, err := DecodeIPv4(b)
		require.NoError(t, err)

		h, err := ipv4.ParseHeader(b)
		require.NoError(t, err)

		assert.Equal(t, h.Version, int(ip.Version))
		assert.Equal(t, h.Len, ip.HeaderLen())
		assert.Equal(t, h.TotalLen, int(ip.TotalLength))
		assert.Equal(t, h.ID, int(ip.ID))
		assert.Equal(t, int(h.Flags), int(ip.Flags))
		assert.Equal(t, h.FragOff, int(ip.FragOffset))
		assert.Equal(t, h.TTL, int(ip.TTL))
		assert.Equal(t, h.Protocol, int(ip.Protocol))
		assert.Equal(t, h.Checksum, int(ip.Checksum))
		assert.Equal(t, h.Src.To4().String(), ip.SrcIP().String())
		assert.Equal(t, h.Dst.To4().String(), ip.DstIP().String())
	}
}
