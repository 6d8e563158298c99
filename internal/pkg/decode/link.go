// Package decode turns raw capture bytes into link, network and transport
// headers. Each decoder takes the bytes of its layer and returns the parsed
// header with the remaining bytes attached as payload.
package decode

import (
	"github.com/endorses/voipfilter/internal/pkg/pcap"
	"github.com/endorses/voipfilter/internal/pkg/wire"
	"github.com/google/gopacket/layers"
)

// EtherTypeIPv4 is the protocol identifier carried by IPv4 frames.
const EtherTypeIPv4 = uint16(layers.EthernetTypeIPv4)

// LinkFrame is the outermost frame of a capture record. It is implemented
// only by *Ethernet and *LinuxCooked.
type LinkFrame interface {
	// Protocol is the ethertype of the encapsulated payload.
	Protocol() uint16
	Payload() []byte
	linkFrame()
}

// DecodeLink decodes b according to the link type declared in the source's
// global header.
func DecodeLink(linkType uint32, b []byte) (LinkFrame, error) {
	switch linkType {
	case pcap.LinkTypeEthernet:
		e, err := DecodeEthernet(b)
		if err != nil {
			return nil, err
		}
		return e, nil
	case pcap.LinkTypeLinuxSLL:
		l, err := DecodeLinuxCooked(b)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, wire.Errorf(wire.KindUnsupportedLinkType, "link", "%d (%s)",
			linkType, layers.LinkType(linkType&0xff).String())
	}
}

// EtherTypeName returns gopacket's name for an ethertype, for log output.
func EtherTypeName(t uint16) string {
	return layers.EthernetType(t).String()
}
