// Package capture groups decoded IPv4 datagrams back into whole transport
// payloads. Fragments are grouped by IP identification and concatenated
// in fragment-offset order once the terminal fragment is present.
//
// Offsets only order the pieces; they are not used to place bytes. A group
// with a missing middle fragment, or a duplicated one, completes anyway and
// yields a corrupted payload. Groups that never see their terminal fragment
// are kept until the Reassembler is dropped.
package capture

import (
	"container/list"

	"github.com/endorses/voipfilter/internal/pkg/decode"
	"github.com/endorses/voipfilter/internal/pkg/pcap"
)

// Packet is a decoded IPv4 datagram together with the capture record it
// came from.
type Packet struct {
	Record *pcap.Record
	IP     *decode.IPv4
}

// Datagram is a transport payload ready for decoding.
type Datagram struct {
	// Protocol is taken from the highest-offset fragment.
	Protocol uint8
	Payload  []byte
	// Packets are the contributing packets in ascending fragment offset.
	Packets []Packet
	// Reassembled is set when Packets holds more than the direct packet.
	Reassembled bool
}

// fragmentGroup holds the fragments seen so far for one identification
// value, kept sorted by offset.
type fragmentGroup struct {
	members list.List
}

// Reassembler is not safe for concurrent use; one pipeline run owns one.
type Reassembler struct {
	groups map[uint16]*fragmentGroup
}

// NewReassembler returns a reassembler with no pending groups.
func NewReassembler() *Reassembler {
	return &Reassembler{groups: make(map[uint16]*fragmentGroup)}
}

// Add submits one packet. It returns the datagram and true when p is
// unfragmented or completes a group; otherwise p is retained and Add
// returns false.
func (r *Reassembler) Add(p Packet) (Datagram, bool) {
	if !p.IP.MoreFragments() && p.IP.FragOffset == 0 {
		return Datagram{
			Protocol: p.IP.Protocol,
			Payload:  p.IP.Payload,
			Packets:  []Packet{p},
		}, true
	}

	g, ok := r.groups[p.IP.ID]
	if !ok {
		g = &fragmentGroup{}
		r.groups[p.IP.ID] = g
	}
	g.insert(p)

	last := g.members.Back().Value.(Packet)
	if last.IP.MoreFragments() || g.members.Len() < 2 {
		return Datagram{}, false
	}

	d := g.build()
	delete(r.groups, p.IP.ID)
	return d, true
}

// Pending is the number of incomplete fragment groups.
func (r *Reassembler) Pending() int {
	return len(r.groups)
}

// insert places p after every member whose offset is not greater, so equal
// offsets keep arrival order.
func (g *fragmentGroup) insert(p Packet) {
	for e := g.members.Back(); e != nil; e = e.Prev() {
		if e.Value.(Packet).IP.FragOffset <= p.IP.FragOffset {
			g.members.InsertAfter(p, e)
			return
		}
	}
	g.members.PushFront(p)
}

func (g *fragmentGroup) build() Datagram {
	var size int
	for e := g.members.Front(); e != nil; e = e.Next() {
		size += len(e.Value.(Packet).IP.Payload)
	}

	d := Datagram{
		Payload:     make([]byte, 0, size),
		Packets:     make([]Packet, 0, g.members.Len()),
		Reassembled: true,
	}
	for e := g.members.Front(); e != nil; e = e.Next() {
		p := e.Value.(Packet)
		d.Payload = append(d.Payload, p.IP.Payload...)
		d.Packets = append(d.Packets, p)
		d.Protocol = p.IP.Protocol
	}
	return d
}
