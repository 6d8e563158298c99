package pcap

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/endorses/voipfilter/internal/pkg/wire"
)

// Record is one captured frame. Swapped and LinkType are inherited from the
// global header of the source the record was read from.
type Record struct {
	TsSec       uint32
	TsFrac      uint32
	CapturedLen uint32
	OriginalLen uint32
	Data        []byte

	Swapped  bool
	LinkType uint32
}

// Timestamp interprets TsFrac as microseconds.
func (r *Record) Timestamp() time.Time {
	return time.Unix(int64(r.TsSec), int64(r.TsFrac)*int64(time.Microsecond)).UTC()
}

// ReadRecord reads one record header and its captured bytes. Running out of
// input exactly at a record boundary returns io.EOF; anywhere else it is
// wire.ErrTruncated.
func ReadRecord(r io.Reader, h *GlobalHeader) (*Record, error) {
	var buf [RecordHeaderLen]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, wire.Truncated("pcap", RecordHeaderLen, n)
		}
		return nil, fmt.Errorf("failed to read record header: %w", err)
	}

	order := byteOrder(h.Swapped)
	rec := &Record{
		TsSec:       order.Uint32(buf[0:4]),
		TsFrac:      order.Uint32(buf[4:8]),
		CapturedLen: order.Uint32(buf[8:12]),
		OriginalLen: order.Uint32(buf[12:16]),
		Swapped:     h.Swapped,
		LinkType:    h.LinkType,
	}

	// CapturedLen is untrusted; grow the buffer only as bytes arrive.
	var data bytes.Buffer
	got, err := io.Copy(&data, io.LimitReader(r, int64(rec.CapturedLen)))
	if err != nil {
		return nil, fmt.Errorf("failed to read record data: %w", err)
	}
	if got != int64(rec.CapturedLen) {
		return nil, wire.Truncated("pcap", int(rec.CapturedLen), int(got))
	}
	rec.Data = data.Bytes()
	return rec, nil
}

// EncodeRecordHeader serialises a record header. swapped selects
// little-endian fields.
func EncodeRecordHeader(swapped bool, sec, frac, inclLen, origLen uint32) []byte {
	order := byteOrder(swapped)
	b := make([]byte, RecordHeaderLen)
	order.PutUint32(b[0:4], sec)
	order.PutUint32(b[4:8], frac)
	order.PutUint32(b[8:12], inclLen)
	order.PutUint32(b[12:16], origLen)
	return b
}

// HeaderBytes re-serialises the record's own header.
func (r *Record) HeaderBytes() []byte {
	return EncodeRecordHeader(r.Swapped, r.TsSec, r.TsFrac, r.CapturedLen, r.OriginalLen)
}
