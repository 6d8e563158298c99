// Package testpkt builds capture fixtures for tests: IPv4/UDP datagrams,
// fragments, link frames and whole capture streams, serialised with
// gopacket.
package testpkt

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	ClientIP = net.IPv4(192, 168, 1, 100)
	ServerIP = net.IPv4(192, 168, 1, 101)

	clientMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x1f, 0x3c, 0x4e}
	serverMAC = net.HardwareAddr{0x00, 0x0c, 0x29, 0x1f, 0x3c, 0x4f}
)

// BaseTime is the timestamp of the first record in Capture.
var BaseTime = time.Unix(1700000000, 0)

func serialize(l ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, l...); err != nil {
		panic(fmt.Sprintf("testpkt: serialize: %v", err))
	}
	return append([]byte(nil), buf.Bytes()...)
}

func ipv4(id uint16, proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Id:       id,
		Protocol: proto,
		SrcIP:    ClientIP,
		DstIP:    ServerIP,
	}
}

// UDPPayload returns a UDP header followed by payload, with no IP header.
func UDPPayload(srcPort, dstPort uint16, payload []byte) []byte {
	ip := ipv4(0, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(udp, gopacket.Payload(payload))
}

// UDP returns an unfragmented IPv4 datagram carrying a UDP segment.
func UDP(id, srcPort, dstPort uint16, payload []byte) []byte {
	ip := ipv4(id, layers.IPProtocolUDP)
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(ip, udp, gopacket.Payload(payload))
}

// TCP returns an unfragmented IPv4 datagram carrying a PSH/ACK TCP segment.
func TCP(id, srcPort, dstPort uint16, payload []byte) []byte {
	ip := ipv4(id, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     1000,
		Ack:     2000,
		PSH:     true,
		ACK:     true,
		Window:  65535,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	return serialize(ip, tcp, gopacket.Payload(payload))
}

// Fragment returns one IPv4 fragment of a datagram with the given id.
// offset is in bytes and must be a multiple of 8.
func Fragment(id uint16, proto layers.IPProtocol, offset int, more bool, payload []byte) []byte {
	ip := ipv4(id, proto)
	ip.FragOffset = uint16(offset / 8)
	if more {
		ip.Flags = layers.IPv4MoreFragments
	}
	return serialize(ip, gopacket.Payload(payload))
}

// Fragments splits transport (a UDP or TCP segment, header included) into
// IPv4 fragments of at most size payload bytes. size must be a multiple of 8.
func Fragments(id uint16, proto layers.IPProtocol, transport []byte, size int) [][]byte {
	var out [][]byte
	for off := 0; off < len(transport); off += size {
		end := off + size
		if end > len(transport) {
			end = len(transport)
		}
		out = append(out, Fragment(id, proto, off, end < len(transport), transport[off:end]))
	}
	return out
}

// Ethernet wraps an IPv4 datagram in an Ethernet II frame. gopacket pads
// frames shorter than 60 bytes.
func Ethernet(datagram []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       serverMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	return serialize(eth, gopacket.Payload(datagram))
}

// EthernetVLAN wraps an IPv4 datagram in an 802.1Q tagged frame.
func EthernetVLAN(vlan uint16, datagram []byte) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       clientMAC,
		DstMAC:       serverMAC,
		EthernetType: layers.EthernetTypeDot1Q,
	}
	tag := &layers.Dot1Q{VLANIdentifier: vlan, Type: layers.EthernetTypeIPv4}
	return serialize(eth, tag, gopacket.Payload(datagram))
}

// LinuxCooked wraps a frame payload of the given ethertype in an SLL header.
func LinuxCooked(etherType layers.EthernetType, payload []byte) []byte {
	hdr := make([]byte, 16)
	hdr[1] = 4 // outgoing
	hdr[3] = 1 // ARPHRD_ETHER
	hdr[5] = 6
	copy(hdr[6:12], clientMAC)
	hdr[14] = byte(etherType >> 8)
	hdr[15] = byte(etherType)
	return append(hdr, payload...)
}

// Capture writes frames as a little-endian capture stream, one second apart.
func Capture(linkType layers.LinkType, frames ...[]byte) []byte {
	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65536, linkType); err != nil {
		panic(err)
	}
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     BaseTime.Add(time.Duration(i) * time.Second),
			CaptureLength: len(f),
			Length:        len(f),
		}
		if err := w.WritePacket(ci, f); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

// SIPMessage assembles a SIP message from a first line, header lines and an
// optional body. Content-Length is appended when body is non-empty.
func SIPMessage(firstLine string, headers []string, body string) []byte {
	var b bytes.Buffer
	b.WriteString(firstLine + "\r\n")
	for _, h := range headers {
		b.WriteString(h + "\r\n")
	}
	if body != "" {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.Bytes()
}

// Invite returns an INVITE for callID. A non-zero rtpPort adds an SDP body
// announcing audio on that port.
func Invite(callID string, rtpPort int) []byte {
	headers := []string{
		"Via: SIP/2.0/UDP 192.168.1.100:5060;branch=z9hG4bK776asdhds",
		"From: Alice <sip:alice@example.com>;tag=1928301774",
		"To: Bob <sip:bob@example.com>",
		"Call-ID: " + callID,
		"CSeq: 314159 INVITE",
		"Contact: <sip:alice@192.168.1.100:5060>",
	}
	body := ""
	if rtpPort != 0 {
		headers = append(headers, "Content-Type: application/sdp")
		body = SDP("192.168.1.100", rtpPort, "a=rtpmap:0 PCMU/8000")
	}
	return SIPMessage("INVITE sip:bob@example.com SIP/2.0", headers, body)
}

// SDP returns a minimal session description.
func SDP(addr string, port int, rtpmaps ...string) string {
	var b bytes.Buffer
	b.WriteString("v=0\r\n")
	fmt.Fprintf(&b, "o=alice 2890844526 2890844526 IN IP4 %s\r\n", addr)
	b.WriteString("s=-\r\n")
	fmt.Fprintf(&b, "c=IN IP4 %s\r\n", addr)
	b.WriteString("t=0 0\r\n")
	fmt.Fprintf(&b, "m=audio %d RTP/AVP 0 8 18\r\n", port)
	for _, a := range rtpmaps {
		b.WriteString(a + "\r\n")
	}
	return b.String()
}
