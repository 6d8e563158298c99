package pcap

import (
	"io"
)

// Reader iterates over the records of one capture source. The global
// header is read on first use.
type Reader struct {
	r      io.Reader
	header *GlobalHeader
	count  int
}

// NewReader wraps r. Nothing is read until Header or Next is called.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Header returns the source's global header, reading it if needed.
func (r *Reader) Header() (*GlobalHeader, error) {
	if r.header != nil {
		return r.header, nil
	}
	h, err := ReadGlobalHeader(r.r)
	if err != nil {
		return nil, err
	}
	r.header = h
	return h, nil
}

// Next returns the next record, or io.EOF once the source is exhausted at a
// record boundary.
func (r *Reader) Next() (*Record, error) {
	h, err := r.Header()
	if err != nil {
		return nil, err
	}
	rec, err := ReadRecord(r.r, h)
	if err != nil {
		return nil, err
	}
	r.count++
	return rec, nil
}

// Count is the number of records returned so far.
func (r *Reader) Count() int {
	return r.count
}
