package voip

import (
	"sort"
	"strings"

	"github.com/endorses/voipfilter/internal/pkg/constants"
	"github.com/endorses/voipfilter/internal/pkg/decode"
	"github.com/endorses/voipfilter/internal/pkg/sip"
)

// DefaultSIPPort is the UDP port signalling is expected on.
const DefaultSIPPort uint16 = constants.DefaultSIPPort

// MatchReason says why a datagram did or did not match.
type MatchReason int

const (
	ReasonNone MatchReason = iota
	// ReasonSignalling: a SIP message whose Call-ID, From or To contains
	// the filter.
	ReasonSignalling
	// ReasonMedia: a datagram on a port learned from a matched SDP body.
	ReasonMedia
)

func (r MatchReason) String() string {
	switch r {
	case ReasonSignalling:
		return "sip"
	case ReasonMedia:
		return "media"
	default:
		return "none"
	}
}

// Decision is the outcome of inspecting one datagram.
type Decision struct {
	Matched bool
	Reason  MatchReason
	// SIP is set for signalling messages, matched or not.
	SIP *sip.Message
	// LearnedPort is the SDP audio port added by this datagram, or 0.
	LearnedPort uint16
}

// CallSession correlates SIP signalling with its RTP media by learning the
// audio ports announced in SDP bodies of matched calls. Learned ports are
// never forgotten. A CallSession is not safe for concurrent use.
type CallSession struct {
	filter  string
	sipPort uint16
	ports   map[uint16]struct{}
	last    Decision
}

// NewCallSession creates a session. An empty filter matches every call.
// A zero sipPort means DefaultSIPPort.
func NewCallSession(filter string, sipPort uint16) *CallSession {
	if sipPort == 0 {
		sipPort = DefaultSIPPort
	}
	return &CallSession{
		filter:  filter,
		sipPort: sipPort,
		ports:   make(map[uint16]struct{}),
	}
}

// Accept inspects u and reports whether it belongs to the filtered call.
func (s *CallSession) Accept(u *decode.UDP) bool {
	return s.Inspect(u).Matched
}

// Inspect is Accept with the reasoning attached.
func (s *CallSession) Inspect(u *decode.UDP) Decision {
	var d Decision
	switch {
	case u.HasPort(s.sipPort):
		d = s.inspectSignalling(string(u.Payload()))
	case s.learned(u.SrcPort) || s.learned(u.DstPort):
		d = Decision{Matched: true, Reason: ReasonMedia}
	}
	s.last = d
	return d
}

func (s *CallSession) inspectSignalling(text string) Decision {
	if !sip.IsSignalling(text) {
		return Decision{}
	}

	msg := sip.Parse(text)
	d := Decision{SIP: msg}
	if !s.matchesFilter(msg) {
		return d
	}
	d.Matched = true
	d.Reason = ReasonSignalling

	if msg.ContentType == sip.ContentTypeSDP {
		if port := msg.MediaPort(); port != 0 {
			if !s.learned(port) {
				d.LearnedPort = port
			}
			s.ports[port] = struct{}{}
		}
	}
	return d
}

func (s *CallSession) matchesFilter(msg *sip.Message) bool {
	if s.filter == "" {
		return true
	}
	return strings.Contains(msg.CallID, s.filter) ||
		strings.Contains(msg.From, s.filter) ||
		strings.Contains(msg.To, s.filter)
}

func (s *CallSession) learned(port uint16) bool {
	_, ok := s.ports[port]
	return ok
}

// Matched is the decision for the most recent datagram.
func (s *CallSession) Matched() bool {
	return s.last.Matched
}

// Last returns the full decision for the most recent datagram.
func (s *CallSession) Last() Decision {
	return s.last
}

// MediaPorts returns the learned ports in ascending order.
func (s *CallSession) MediaPorts() []uint16 {
	ports := make([]uint16, 0, len(s.ports))
	for p := range s.ports {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}

// SIPPort is the signalling port the session watches.
func (s *CallSession) SIPPort() uint16 {
	return s.sipPort
}
