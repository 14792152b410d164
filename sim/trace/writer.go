package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Writer streams records to w as a sequence of msgpack-encoded values.
// Two runs with the same seed and scenario produce byte-identical streams.
type Writer struct {
	buf *bufio.Writer
	enc *msgpack.Encoder
	n   int
	err error
}

// NewWriter creates a Writer on w. Call Close to flush.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := msgpack.NewEncoder(buf)
	enc.UseCompactInts(true)
	return &Writer{buf: buf, enc: enc}
}

// Emit encodes one record. The first encoding error is kept and returned by
// Close; later records are discarded.
func (w *Writer) Emit(rec Record) {
	if w.err != nil {
		return
	}
	if err := w.enc.Encode(&rec); err != nil {
		w.err = fmt.Errorf("encoding record %d: %w", w.n, err)
		return
	}
	w.n++
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.n }

// Close flushes buffered output and reports the first error seen.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	return w.buf.Flush()
}

// ReadAll decodes every record of a stream produced by Writer.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := msgpack.NewDecoder(bufio.NewReader(r))
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decoding record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
