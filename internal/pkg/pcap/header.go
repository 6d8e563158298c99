// Package pcap reads and writes the classic libpcap capture container:
// a 24-byte global header followed by 16-byte record headers, each
// trailed by the captured frame bytes.
package pcap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/endorses/voipfilter/internal/pkg/constants"
	"github.com/endorses/voipfilter/internal/pkg/wire"
	"github.com/google/gopacket/layers"
)

const (
	// Magic is the magic number as read big-endian from a big-endian file.
	Magic uint32 = 0xa1b2c3d4
	// MagicSwapped is the same magic seen through the other byte order,
	// i.e. the file was written little-endian.
	MagicSwapped uint32 = 0xd4c3b2a1

	// Version is 2.4 packed as major<<16 | minor.
	Version        uint32 = 0x00020004
	VersionSwapped uint32 = 0x02000400

	GlobalHeaderLen = 24
	RecordHeaderLen = 16

	// OutputSnapLen is the snapshot length declared in emitted captures.
	OutputSnapLen uint32 = constants.OutputSnapLen
)

// Link types recognised by the decoders.
const (
	LinkTypeEthernet = uint32(layers.LinkTypeEthernet)
	LinkTypeLinuxSLL = uint32(layers.LinkTypeLinuxSLL)
)

// GlobalHeader is the file header of a capture source. Magic is the magic
// as it was read big-endian from disk; the other integer fields hold host
// values. Swapped records whether the on-disk fields were byte-swapped
// relative to big-endian.
type GlobalHeader struct {
	Magic        uint32
	VersionMajor uint16
	VersionMinor uint16
	ThisZone     int32
	SigFigs      uint32
	SnapLen      uint32
	LinkType     uint32
	Swapped      bool
}

// byteOrder returns the order the fields are stored in.
func byteOrder(swapped bool) binary.ByteOrder {
	if swapped {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// ReadGlobalHeader reads and validates the 24-byte global header.
// An empty stream yields io.EOF; a partial header yields wire.ErrTruncated.
func ReadGlobalHeader(r io.Reader) (*GlobalHeader, error) {
	var buf [GlobalHeaderLen]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, wire.Truncated("pcap", GlobalHeaderLen, n)
		}
		return nil, fmt.Errorf("failed to read global header: %w", err)
	}
	return ParseGlobalHeader(buf[:])
}

// ParseGlobalHeader decodes a global header from b.
func ParseGlobalHeader(b []byte) (*GlobalHeader, error) {
	if len(b) < GlobalHeaderLen {
		return nil, wire.Truncated("pcap", GlobalHeaderLen, len(b))
	}

	magic := binary.BigEndian.Uint32(b[0:4])
	h := &GlobalHeader{Magic: magic}
	switch magic {
	case Magic:
		h.Swapped = false
	case MagicSwapped:
		h.Swapped = true
	default:
		return nil, wire.Errorf(wire.KindBadMagic, "pcap",
			"0x%08x, expected 0x%08x or 0x%08x", magic, Magic, MagicSwapped)
	}

	rawVersion := binary.BigEndian.Uint32(b[4:8])
	if (!h.Swapped && rawVersion != Version) || (h.Swapped && rawVersion != VersionSwapped) {
		return nil, wire.Errorf(wire.KindBadVersion, "pcap",
			"0x%08x, expected 2.4", rawVersion)
	}

	order := byteOrder(h.Swapped)
	h.VersionMajor = order.Uint16(b[4:6])
	h.VersionMinor = order.Uint16(b[6:8])
	h.ThisZone = int32(order.Uint32(b[8:12]))
	h.SigFigs = order.Uint32(b[12:16])
	h.SnapLen = order.Uint32(b[16:20])
	h.LinkType = order.Uint32(b[20:24])
	return h, nil
}

// Version renders the format version as "major.minor".
func (h *GlobalHeader) Version() string {
	return fmt.Sprintf("%d.%d", h.VersionMajor, h.VersionMinor)
}

// LinkTypeName returns a readable name for the header's link type.
func (h *GlobalHeader) LinkTypeName() string {
	if h.LinkType > 0xff {
		return fmt.Sprintf("LinkType(%d)", h.LinkType)
	}
	return layers.LinkType(h.LinkType).String()
}

// Bytes re-serialises the header in its own byte order.
func (h *GlobalHeader) Bytes() []byte {
	return EncodeGlobalHeader(h.Magic, h.ThisZone, h.SigFigs, h.SnapLen, h.LinkType)
}

// EncodeGlobalHeader serialises a version 2.4 global header. The byte order
// of every field follows magic: MagicSwapped produces a little-endian header.
func EncodeGlobalHeader(magic uint32, zone int32, sigfigs, snaplen, linkType uint32) []byte {
	swapped := magic == MagicSwapped
	order := byteOrder(swapped)

	b := make([]byte, GlobalHeaderLen)
	// Magic is emitted verbatim; read big-endian it identifies the order.
	binary.BigEndian.PutUint32(b[0:4], magic)
	order.PutUint16(b[4:6], 2)
	order.PutUint16(b[6:8], 4)
	order.PutUint32(b[8:12], uint32(zone))
	order.PutUint32(b[12:16], sigfigs)
	order.PutUint32(b[16:20], snaplen)
	order.PutUint32(b[20:24], linkType)
	return b
}

// OutputGlobalHeader is the header written ahead of filtered output:
// swapped magic, Linux cooked link type, whatever the sources were.
func OutputGlobalHeader() []byte {
	return EncodeGlobalHeader(MagicSwapped, 0, 0, OutputSnapLen, LinkTypeLinuxSLL)
}
