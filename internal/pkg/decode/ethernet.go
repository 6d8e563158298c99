package decode

import (
	"encoding/binary"
	"net"

	"github.com/endorses/voipfilter/internal/pkg/wire"
	"github.com/google/gopacket/layers"
)

const (
	ethernetHeaderLen = 14
	vlanTagLen        = 4

	// EtherTypeVLAN is the 802.1Q tag protocol identifier.
	EtherTypeVLAN = uint16(layers.EthernetTypeDot1Q)
)

// Ethernet is an Ethernet II frame with at most one 802.1Q tag.
type Ethernet struct {
	Dst       [6]byte
	Src       [6]byte
	VLAN      *uint16 // nil when untagged
	EtherType uint16
	payload   []byte
}

// Protocol is the EtherType after any VLAN tag.
func (e *Ethernet) Protocol() uint16 { return e.EtherType }

// Payload is the frame body following the header.
func (e *Ethernet) Payload() []byte { return e.payload }

func (*Ethernet) linkFrame() {}

func (e *Ethernet) DstMAC() net.HardwareAddr { return net.HardwareAddr(e.Dst[:]) }
func (e *Ethernet) SrcMAC() net.HardwareAddr { return net.HardwareAddr(e.Src[:]) }

// DecodeEthernet parses a 14-byte Ethernet header, or 18 bytes when a VLAN
// tag is present.
func DecodeEthernet(b []byte) (*Ethernet, error) {
	if len(b) < ethernetHeaderLen {
		return nil, wire.Truncated("ethernet", ethernetHeaderLen, len(b))
	}

	e := &Ethernet{}
	copy(e.Dst[:], b[0:6])
	copy(e.Src[:], b[6:12])
	e.EtherType = binary.BigEndian.Uint16(b[12:14])
	offset := ethernetHeaderLen

	if e.EtherType == EtherTypeVLAN {
		if len(b) < ethernetHeaderLen+vlanTagLen {
			return nil, wire.Truncated("ethernet", ethernetHeaderLen+vlanTagLen, len(b))
		}
		tag := binary.BigEndian.Uint16(b[14:16])
		e.VLAN = &tag
		e.EtherType = binary.BigEndian.Uint16(b[16:18])
		offset += vlanTagLen
	}

	e.payload = b[offset:]
	return e, nil
}
