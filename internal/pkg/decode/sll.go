package decode

import (
	"encoding/binary"

	"github.com/endorses/voipfilter/internal/pkg/wire"
)

const (
	sllMinLen     = 6
	sllHeaderLen  = 16
	sllAddrMaxLen = 8
)

// Linux cooked packet types.
const (
	SLLPacketHost      uint16 = 0
	SLLPacketBroadcast uint16 = 1
	SLLPacketMulticast uint16 = 2
	SLLPacketOtherHost uint16 = 3
	SLLPacketOutgoing  uint16 = 4
)

// LinuxCooked is a Linux "cooked" capture (SLL) header.
type LinuxCooked struct {
	PacketType uint16
	AddrType   uint16
	AddrLen    uint16
	// Addr holds the first AddrLen bytes of the 8-byte address slot.
	Addr     []byte
	protocol uint16
	payload  []byte
}

// Protocol is the SLL protocol field, an EtherType for IP traffic.
func (l *LinuxCooked) Protocol() uint16 { return l.protocol }

// Payload is everything after the 16-byte header.
func (l *LinuxCooked) Payload() []byte { return l.payload }

func (*LinuxCooked) linkFrame() {}

// DecodeLinuxCooked parses the 16-byte SLL header.
func DecodeLinuxCooked(b []byte) (*LinuxCooked, error) {
	if len(b) <= sllMinLen {
		return nil, wire.Truncated("sll", sllMinLen+1, len(b))
	}
	if len(b) < sllHeaderLen {
		return nil, wire.Truncated("sll", sllHeaderLen, len(b))
	}

	l := &LinuxCooked{
		PacketType: binary.BigEndian.Uint16(b[0:2]),
		AddrType:   binary.BigEndian.Uint16(b[2:4]),
		AddrLen:    binary.BigEndian.Uint16(b[4:6]),
	}
	n := int(l.AddrLen)
	if n > sllAddrMaxLen {
		n = sllAddrMaxLen
	}
	l.Addr = b[6 : 6+n]
	// b[12:14] are the unused tail of the address slot when AddrLen is 6.
	l.protocol = binary.BigEndian.Uint16(b[14:16])
	l.payload = b[sllHeaderLen:]
	return l, nil
}

// EncodeLinuxCooked builds the SLL header written in front of every emitted
// datagram: host packet, ARPHRD_ETHER address type, a zeroed 6-byte address.
func EncodeLinuxCooked(protocol uint16) []byte {
	b := make([]byte, sllHeaderLen)
	binary.BigEndian.PutUint16(b[0:2], SLLPacketHost)
	binary.BigEndian.PutUint16(b[2:4], 1)
	binary.BigEndian.PutUint16(b[4:6], 6)
	binary.BigEndian.PutUint16(b[14:16], protocol)
	return b
}
