package pcap

import (
	"bufio"
	"fmt"
	"io"
)

// Writer emits a capture stream. The global header (see OutputGlobalHeader)
// is written once, lazily, ahead of the first record; nothing at all is
// written if no record ever is.
type Writer struct {
	w             *bufio.Writer
	headerWritten bool
	count         int
	bytesWritten  int64
}

// NewWriter buffers writes to w. Call Flush when done.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteRecord writes one record carrying the concatenation of parts. The
// header keeps src's timestamp and src's byte order, even though the global
// header always declares the swapped order.
func (w *Writer) WriteRecord(src *Record, parts ...[]byte) error {
	if !w.headerWritten {
		if err := w.write(OutputGlobalHeader()); err != nil {
			return fmt.Errorf("failed to write PCAP header: %w", err)
		}
		w.headerWritten = true
	}

	var length int
	for _, p := range parts {
		length += len(p)
	}

	hdr := EncodeRecordHeader(src.Swapped, src.TsSec, src.TsFrac, uint32(length), uint32(length))
	if err := w.write(hdr); err != nil {
		return fmt.Errorf("failed to write record header: %w", err)
	}
	for _, p := range parts {
		if err := w.write(p); err != nil {
			return fmt.Errorf("failed to write record data: %w", err)
		}
	}

	w.count++
	return nil
}

func (w *Writer) write(b []byte) error {
	n, err := w.w.Write(b)
	w.bytesWritten += int64(n)
	return err
}

// Flush pushes buffered bytes to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Count is the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// BytesWritten includes the global header.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// HeaderWritten reports whether the global header has gone out yet.
func (w *Writer) HeaderWritten() bool {
	return w.headerWritten
}
