package decode

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/endorses/voipfilter/internal/pkg/wire"
	"github.com/google/gopacket/layers"
)

const ipv4MinHeaderLen = 20

// IPv4 flag bits, as they appear in Flags.
const (
	IPv4MoreFragments uint8 = 0x1
	IPv4DontFragment  uint8 = 0x2
	IPv4Evil          uint8 = 0x4
)

// IP protocol numbers the pipeline cares about.
const (
	ProtocolTCP = uint8(layers.IPProtocolTCP)
	ProtocolUDP = uint8(layers.IPProtocolUDP)
)

// IPv4 is a decoded IPv4 header. Fields are taken as found; only the fixed
// header length is enforced.
type IPv4 struct {
	Version     uint8
	IHL         uint8 // header length in 32-bit words
	DSCP        uint8
	ECN         uint8
	TotalLength uint16
	ID          uint16
	Flags       uint8  // 3 bits
	FragOffset  uint16 // 13 bits, in 8-byte units
	TTL         uint8
	Protocol    uint8
	Checksum    uint16
	Src         [4]byte
	Dst         [4]byte
	Options     []byte

	// Payload is bytes [IHL*4, TotalLength) of Raw, clipped to what was
	// captured. It is empty when the lengths are inconsistent.
	Payload []byte
	// Raw is the unmodified datagram as handed to DecodeIPv4.
	Raw []byte
}

// DecodeIPv4 parses an IPv4 header. Malformed length fields never fail the
// decode; they leave the payload empty.
func DecodeIPv4(b []byte) (*IPv4, error) {
	if len(b) < ipv4MinHeaderLen {
		return nil, wire.Truncated("ipv4", ipv4MinHeaderLen, len(b))
	}

	ip := &IPv4{
		Version:     b[0] >> 4,
		IHL:         b[0] & 0x0f,
		DSCP:        b[1] >> 2,
		ECN:         b[1] & 0x03,
		TotalLength: binary.BigEndian.Uint16(b[2:4]),
		ID:          binary.BigEndian.Uint16(b[4:6]),
		TTL:         b[8],
		Protocol:    b[9],
		Checksum:    binary.BigEndian.Uint16(b[10:12]),
		Raw:         b,
	}
	flagsFrag := binary.BigEndian.Uint16(b[6:8])
	ip.Flags = uint8(flagsFrag >> 13)
	ip.FragOffset = flagsFrag & 0x1fff
	copy(ip.Src[:], b[12:16])
	copy(ip.Dst[:], b[16:20])

	hdrLen := ip.HeaderLen()
	if hdrLen > ipv4MinHeaderLen && hdrLen <= len(b) {
		ip.Options = b[ipv4MinHeaderLen:hdrLen]
	}

	end := int(ip.TotalLength)
	if end > len(b) {
		end = len(b)
	}
	if hdrLen < end {
		ip.Payload = b[hdrLen:end]
	} else {
		ip.Payload = []byte{}
	}
	return ip, nil
}

// HeaderLen is the header length in bytes.
func (ip *IPv4) HeaderLen() int {
	return int(ip.IHL) * 4
}

func (ip *IPv4) MoreFragments() bool {
	return ip.Flags&IPv4MoreFragments != 0
}

func (ip *IPv4) DontFragment() bool {
	return ip.Flags&IPv4DontFragment != 0
}

// IsFragment reports whether the datagram is one piece of a larger one.
func (ip *IPv4) IsFragment() bool {
	return ip.MoreFragments() || ip.FragOffset != 0
}

func (ip *IPv4) SrcIP() netip.Addr { return netip.AddrFrom4(ip.Src) }
func (ip *IPv4) DstIP() netip.Addr { return netip.AddrFrom4(ip.Dst) }

// ProtocolName returns gopacket's name for the carried protocol.
func (ip *IPv4) ProtocolName() string {
	return layers.IPProtocol(ip.Protocol).String()
}

func (ip *IPv4) String() string {
	return fmt.Sprintf("%s --> %s %s id=%d off=%d mf=%t len=%d",
		ip.SrcIP(), ip.DstIP(), ip.ProtocolName(), ip.ID, ip.FragOffset, ip.MoreFragments(), ip.TotalLength)
}
