package decode

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/endorses/voipfilter/internal/pkg/wire"
)

const (
	tcpMinHeaderLen = 20
	udpHeaderLen    = 8
)

// TCP flag bits within the 9-bit Flags field.
const (
	TCPFlagFIN uint16 = 1 << iota
	TCPFlagSYN
	TCPFlagRST
	TCPFlagPSH
	TCPFlagACK
	TCPFlagURG
	TCPFlagECE
	TCPFlagCWR
	TCPFlagNS
)

// Segment is a transport-layer segment, implemented only by *TCP and *UDP.
type Segment interface {
	Ports() (src, dst uint16)
	Payload() []byte
	segment()
}

// DecodeTransport decodes b as the transport protocol named by an IPv4
// header. Protocols other than TCP and UDP return a nil segment and no error.
func DecodeTransport(protocol uint8, b []byte) (Segment, error) {
	switch protocol {
	case ProtocolTCP:
		t, err := DecodeTCP(b)
		if err != nil {
			return nil, err
		}
		return t, nil
	case ProtocolUDP:
		u, err := DecodeUDP(b)
		if err != nil {
			return nil, err
		}
		return u, nil
	default:
		return nil, nil
	}
}

// TCP is a decoded TCP header and its payload.
type TCP struct {
	SrcPort    uint16
	DstPort    uint16
	Seq        uint32
	Ack        uint32
	DataOffset uint8  // in 32-bit words
	Flags      uint16 // 9 bits
	Window     uint16
	Checksum   uint16
	Urgent     uint16
	payload    []byte
}

func (t *TCP) Ports() (uint16, uint16) { return t.SrcPort, t.DstPort }
func (t *TCP) Payload() []byte         { return t.payload }
func (*TCP) segment()                  {}

func (t *TCP) FIN() bool { return t.Flags&TCPFlagFIN != 0 }
func (t *TCP) SYN() bool { return t.Flags&TCPFlagSYN != 0 }
func (t *TCP) RST() bool { return t.Flags&TCPFlagRST != 0 }
func (t *TCP) PSH() bool { return t.Flags&TCPFlagPSH != 0 }
func (t *TCP) ACK() bool { return t.Flags&TCPFlagACK != 0 }

// DecodeTCP parses a TCP header. The payload starts DataOffset words in and
// is empty if that lies beyond b.
func DecodeTCP(b []byte) (*TCP, error) {
	if len(b) < tcpMinHeaderLen {
		return nil, wire.Truncated("tcp", tcpMinHeaderLen, len(b))
	}

	offFlags := binary.BigEndian.Uint16(b[12:14])
	t := &TCP{
		SrcPort:    binary.BigEndian.Uint16(b[0:2]),
		DstPort:    binary.BigEndian.Uint16(b[2:4]),
		Seq:        binary.BigEndian.Uint32(b[4:8]),
		Ack:        binary.BigEndian.Uint32(b[8:12]),
		DataOffset: uint8(offFlags >> 12),
		Flags:      offFlags & 0x01ff,
		Window:     binary.BigEndian.Uint16(b[14:16]),
		Checksum:   binary.BigEndian.Uint16(b[16:18]),
		Urgent:     binary.BigEndian.Uint16(b[18:20]),
	}

	start := int(t.DataOffset) * 4
	if start < len(b) {
		t.payload = b[start:]
	} else {
		t.payload = []byte{}
	}
	return t, nil
}

func (t *TCP) String() string {
	var flags []string
	for _, f := range []struct {
		bit  uint16
		name string
	}{
		{TCPFlagSYN, "SYN"}, {TCPFlagACK, "ACK"}, {TCPFlagFIN, "FIN"},
		{TCPFlagPSH, "PSH"}, {TCPFlagRST, "RST"}, {TCPFlagURG, "URG"},
	} {
		if t.Flags&f.bit != 0 {
			flags = append(flags, f.name)
		}
	}
	return fmt.Sprintf("%d --> %d [%s] Seq.num=%d Ack.num=%d window=%d len=%d",
		t.SrcPort, t.DstPort, strings.Join(flags, ", "), t.Seq, t.Ack, t.Window, len(t.payload))
}

// UDP is a decoded UDP header and its payload, clamped to the captured bytes.
type UDP struct {
	SrcPort  uint16
	DstPort  uint16
	Length   uint16 // as declared, header included
	Checksum uint16
	payload  []byte
}

func (u *UDP) Ports() (uint16, uint16) { return u.SrcPort, u.DstPort }
func (u *UDP) Payload() []byte         { return u.payload }
func (*UDP) segment()                  {}

// NewUDP builds a UDP segment without going through the wire format.
func NewUDP(src, dst uint16, payload []byte) *UDP {
	return &UDP{SrcPort: src, DstPort: dst, Length: uint16(udpHeaderLen + len(payload)), payload: payload}
}

// DecodeUDP parses a UDP header. A declared length larger than the captured
// bytes shrinks the payload instead of failing.
func DecodeUDP(b []byte) (*UDP, error) {
	if len(b) < udpHeaderLen {
		return nil, wire.Truncated("udp", udpHeaderLen, len(b))
	}

	u := &UDP{
		SrcPort:  binary.BigEndian.Uint16(b[0:2]),
		DstPort:  binary.BigEndian.Uint16(b[2:4]),
		Length:   binary.BigEndian.Uint16(b[4:6]),
		Checksum: binary.BigEndian.Uint16(b[6:8]),
	}

	end := int(u.Length)
	if end > len(b) {
		end = len(b)
	}
	if end > udpHeaderLen {
		u.payload = b[udpHeaderLen:end]
	} else {
		u.payload = []byte{}
	}
	return u, nil
}

// HasPort reports whether either port equals p.
func (u *UDP) HasPort(p uint16) bool {
	return u.SrcPort == p || u.DstPort == p
}
