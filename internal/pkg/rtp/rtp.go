// Package rtp decodes and encodes RTP fixed headers.
//
// Timestamp and SSRC are read with bit 31 cleared, so values at or above
// 2^31 come back reduced by 2^31. Captures filtered by older tooling depend
// on that reading.
package rtp

import (
	"encoding/binary"
	"fmt"

	"github.com/endorses/voipfilter/internal/pkg/wire"
	pionrtp "github.com/pion/rtp"
)

const (
	headerLen = 12
	csrcLen   = 4

	// Version is the only RTP version accepted.
	Version = 2

	signMask = 0x7fffffff
)

// Static payload types (RFC 3551) plus the Speex type used by the codec
// selection in SDP.
const (
	PayloadTypePCMU  uint8 = 0
	PayloadTypeGSM   uint8 = 3
	PayloadTypePCMA  uint8 = 8
	PayloadTypeG729  uint8 = 18
	PayloadTypeSpeex uint8 = 110
)

// Packet is a decoded RTP packet.
type Packet struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CSRCCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Payload        []byte
}

// Decode parses an RTP packet. The CSRC list is consumed; header
// extensions and padding are left in Payload.
func Decode(b []byte) (*Packet, error) {
	if len(b) < headerLen {
		return nil, wire.Truncated("rtp", headerLen, len(b))
	}

	p := &Packet{
		Version:        (b[0] >> 6) & 0x03,
		Padding:        (b[0]>>5)&0x01 == 1,
		Extension:      (b[0]>>4)&0x01 == 1,
		CSRCCount:      b[0] & 0x0f,
		Marker:         (b[1]>>7)&0x01 == 1,
		PayloadType:    b[1] & 0x7f,
		SequenceNumber: binary.BigEndian.Uint16(b[2:4]),
		Timestamp:      binary.BigEndian.Uint32(b[4:8]) & signMask,
		SSRC:           binary.BigEndian.Uint32(b[8:12]) & signMask,
	}
	if p.Version != Version {
		return nil, wire.Errorf(wire.KindBadRTPVersion, "rtp", "%d, expected %d", p.Version, Version)
	}

	end := headerLen + int(p.CSRCCount)*csrcLen
	if len(b) < end {
		return nil, wire.Truncated("rtp", end, len(b))
	}
	if p.CSRCCount > 0 {
		p.CSRC = make([]uint32, p.CSRCCount)
		for i := range p.CSRC {
			off := headerLen + i*csrcLen
			p.CSRC[i] = binary.BigEndian.Uint32(b[off : off+csrcLen])
		}
	}
	p.Payload = b[end:]
	return p, nil
}

// Encode builds a packet with a bare 12-byte header: version 2, no
// padding, no extension and no CSRC list.
func Encode(marker bool, payloadType uint8, seq uint16, timestamp, ssrc uint32, payload []byte) ([]byte, error) {
	pkt := &pionrtp.Packet{
		Header: pionrtp.Header{
			Version:        Version,
			Marker:         marker,
			PayloadType:    payloadType & 0x7f,
			SequenceNumber: seq,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	b, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RTP packet: %w", err)
	}
	return b, nil
}

// Encode re-encodes p's fixed header fields and payload. The CSRC list
// is not written.
func (p *Packet) Encode() ([]byte, error) {
	return Encode(p.Marker, p.PayloadType, p.SequenceNumber, p.Timestamp, p.SSRC, p.Payload)
}

// PayloadTypeName names the codecs the SDP codec selection knows about.
func PayloadTypeName(pt uint8) string {
	switch pt {
	case PayloadTypePCMU:
		return "G711uLaw"
	case PayloadTypePCMA:
		return "G711ALaw"
	case PayloadTypeG729:
		return "G729"
	case PayloadTypeSpeex:
		return "Speex"
	case PayloadTypeGSM:
		return "GSM"
	default:
		return "unknown"
	}
}

// MediaType classifies a payload type per the RFC 3551 static table.
func MediaType(pt uint8) string {
	switch {
	case pt <= 18:
		if pt == 1 || pt == 2 {
			return "unknown"
		}
		return "audio"
	case pt == 25, pt == 26, pt == 28, pt >= 31 && pt <= 34:
		return "video"
	case pt >= 96 && pt <= 127:
		return "dynamic"
	default:
		return "unknown"
	}
}
