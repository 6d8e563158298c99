package voip

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/endorses/voipfilter/internal/pkg/capture"
	"github.com/endorses/voipfilter/internal/pkg/decode"
	"github.com/endorses/voipfilter/internal/pkg/logger"
	"github.com/endorses/voipfilter/internal/pkg/pcap"
	"github.com/endorses/voipfilter/internal/pkg/rtp"
	"github.com/endorses/voipfilter/internal/pkg/voip/monitoring"
	"github.com/endorses/voipfilter/internal/pkg/wire"
)

// Source is one capture stream. Name is used in logs, metrics and errors.
type Source struct {
	Name   string
	Reader io.Reader
}

// Config configures a Pipeline.
type Config struct {
	// Filter selects calls by substring of Call-ID, From or To. Empty
	// matches every call.
	Filter string
	// SIPPort defaults to DefaultSIPPort.
	SIPPort uint16
	// ContinueOnError skips a source that fails to decode instead of
	// aborting the run. Output write errors always abort.
	ContinueOnError bool

	// Metrics defaults to a fresh monitoring.NewMetrics().
	Metrics *monitoring.Metrics
	// Logger defaults to logger.Get().
	Logger *slog.Logger
}

// Stats summarises a run.
type Stats struct {
	Sources          int `yaml:"sources" json:"sources"`
	SkippedSources   int `yaml:"skipped_sources" json:"skipped_sources"`
	Records          int `yaml:"records" json:"records"`
	NonIPv4          int `yaml:"non_ipv4" json:"non_ipv4"`
	Datagrams        int `yaml:"datagrams" json:"datagrams"`
	Reassembled      int `yaml:"reassembled" json:"reassembled"`
	SIPMessages      int `yaml:"sip_messages" json:"sip_messages"`
	Matched          int `yaml:"matched" json:"matched"`
	RTPPackets       int `yaml:"rtp_packets" json:"rtp_packets"`
	Emitted          int `yaml:"emitted" json:"emitted"`
	LearnedPorts     int `yaml:"learned_ports" json:"learned_ports"`
	PendingFragments int `yaml:"pending_fragments" json:"pending_fragments"`
}

// Pipeline filters capture sources down to the records of matching calls.
// Sources are drained one after another on the calling goroutine. A single
// CallSession spans the whole run, so media ports learned in one source
// match in the next; fragment reassembly starts afresh with every source.
type Pipeline struct {
	cfg     Config
	session *CallSession
	metrics *monitoring.Metrics
	log     *slog.Logger
	sll     []byte

	stats Stats
}

// NewPipeline fills in Config defaults and creates the run's call session.
func NewPipeline(cfg Config) *Pipeline {
	if cfg.Metrics == nil {
		cfg.Metrics = monitoring.NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	return &Pipeline{
		cfg:     cfg,
		session: NewCallSession(cfg.Filter, cfg.SIPPort),
		metrics: cfg.Metrics,
		log:     cfg.Logger.With("component", "pipeline"),
		sll:     decode.EncodeLinuxCooked(decode.EtherTypeIPv4),
	}
}

// Session exposes the run's call session.
func (p *Pipeline) Session() *CallSession {
	return p.session
}

// writeError marks failures of the output sink, which no source can
// recover from.
type writeError struct {
	err error
}

func (e *writeError) Error() string { return e.err.Error() }
func (e *writeError) Unwrap() error { return e.err }

// Run drains sources in order and writes matching records to sink. The
// output global header is written before the first matching record; a run
// without matches writes nothing.
func (p *Pipeline) Run(sources []Source, sink io.Writer) (Stats, error) {
	w := pcap.NewWriter(sink)

	for _, src := range sources {
		start := time.Now()
		err := p.runSource(src, w)
		if err == nil {
			p.stats.Sources++
			p.metrics.SourceDone(time.Since(start), "ok")
			continue
		}

		p.metrics.SourceDone(time.Since(start), "error")
		p.metrics.SourceError(errorKind(err))

		var we *writeError
		if errors.As(err, &we) || !p.cfg.ContinueOnError {
			p.finish()
			if flushErr := w.Flush(); flushErr != nil {
				p.log.Warn("Failed to flush output", "error", flushErr)
			}
			return p.stats, fmt.Errorf("source %s: %w", src.Name, err)
		}

		p.stats.SkippedSources++
		p.log.Warn("Skipping rest of source after decode error",
			"source", src.Name,
			"error", err)
	}

	p.finish()
	if err := w.Flush(); err != nil {
		return p.stats, fmt.Errorf("failed to flush output: %w", err)
	}
	p.log.Info("Filter run complete",
		"sources", p.stats.Sources,
		"records", p.stats.Records,
		"emitted", p.stats.Emitted,
		"media_ports", p.session.MediaPorts())
	return p.stats, nil
}

func (p *Pipeline) finish() {
	p.stats.LearnedPorts = len(p.session.ports)
	p.metrics.SetMediaPorts(p.stats.LearnedPorts)
}

func (p *Pipeline) runSource(src Source, w *pcap.Writer) error {
	log := p.log.With("source", src.Name)
	r := pcap.NewReader(src.Reader)

	// IP identifications repeat across captures, so groups never carry
	// over into the next source.
	reasm := capture.NewReassembler()
	defer func() {
		pending := reasm.Pending()
		if pending == 0 {
			return
		}
		p.stats.PendingFragments += pending
		p.metrics.FragmentGroupsAbandoned(pending)
		log.Debug("Dropping incomplete fragment groups at end of source",
			"groups", pending)
	}()

	h, err := r.Header()
	if errors.Is(err, io.EOF) {
		log.Info("Source is empty")
		return nil
	}
	if err != nil {
		return err
	}
	if h.LinkType != pcap.LinkTypeEthernet && h.LinkType != pcap.LinkTypeLinuxSLL {
		return wire.Errorf(wire.KindUnsupportedLinkType, "pcap", "%s", h.LinkTypeName())
	}
	log.Info("Reading source",
		"link_type", h.LinkTypeName(),
		"version", h.Version(),
		"swapped", h.Swapped,
		"snaplen", h.SnapLen)

	emittedBefore := p.stats.Emitted
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", r.Count()+1, err)
		}
		p.stats.Records++
		p.metrics.RecordRead(src.Name)

		if err := p.process(rec, reasm, w); err != nil {
			return fmt.Errorf("record %d: %w", r.Count(), err)
		}
	}

	log.Info("Finished source",
		"records", r.Count(),
		"emitted", p.stats.Emitted-emittedBefore,
		"pending_fragment_groups", reasm.Pending())
	return nil
}

// process takes one record through link, IPv4, reassembly, transport and
// the call session, emitting the contributing records on a match. The
// output is flushed after every emitted group so that a downstream reader
// of a pipe sees matches as they happen.
func (p *Pipeline) process(rec *pcap.Record, reasm *capture.Reassembler, w *pcap.Writer) error {
	frame, err := decode.DecodeLink(rec.LinkType, rec.Data)
	if err != nil {
		return err
	}
	if frame.Protocol() != decode.EtherTypeIPv4 {
		p.stats.NonIPv4++
		p.metrics.NonIPv4()
		return nil
	}

	ip, err := decode.DecodeIPv4(frame.Payload())
	if err != nil {
		return err
	}

	dg, ok := reasm.Add(capture.Packet{Record: rec, IP: ip})
	if !ok {
		return nil
	}
	p.stats.Datagrams++
	p.metrics.Datagram(dg.Reassembled)
	if dg.Reassembled {
		p.stats.Reassembled++
		p.log.Debug("Reassembled fragmented datagram",
			"id", ip.ID,
			"fragments", len(dg.Packets),
			"bytes", len(dg.Payload))
	}

	seg, err := decode.DecodeTransport(dg.Protocol, dg.Payload)
	if err != nil {
		return err
	}
	udp, isUDP := seg.(*decode.UDP)
	if !isUDP {
		return nil
	}

	d := p.session.Inspect(udp)
	if d.SIP != nil {
		p.stats.SIPMessages++
		p.metrics.SIPMessage(d.SIP.Method)
	}
	if d.LearnedPort != 0 {
		p.log.Debug("Learned media port",
			"port", d.LearnedPort,
			"call_id", d.SIP.CallID,
			"codec", rtp.PayloadTypeName(d.SIP.MediaCodec()))
	}
	if !d.Matched {
		return nil
	}
	p.stats.Matched++
	p.metrics.Matched(d.Reason.String())
	if d.Reason == ReasonMedia {
		// Media ports also carry RTCP and whatever else shares them.
		if pkt, err := rtp.Decode(udp.Payload()); err == nil {
			p.stats.RTPPackets++
			p.metrics.RTPPacket(rtp.PayloadTypeName(pkt.PayloadType))
		}
	}

	for _, pkt := range dg.Packets {
		before := w.BytesWritten()
		if err := w.WriteRecord(pkt.Record, p.sll, pkt.IP.Raw); err != nil {
			return &writeError{err: err}
		}
		p.stats.Emitted++
		p.metrics.RecordEmitted(int(w.BytesWritten() - before))
	}
	if err := w.Flush(); err != nil {
		return &writeError{err: fmt.Errorf("failed to flush output: %w", err)}
	}
	return nil
}

func errorKind(err error) string {
	var fe *wire.FormatError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	var we *writeError
	if errors.As(err, &we) {
		return "write"
	}
	return "io"
}
