package demux

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"unicode/utf8"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const (
	// DefaultMaxPending is the default cap on bytes retained without a record boundary
	DefaultMaxPending = 64 * 1024

	maxFragmentLen = 64 // bytes of a rejected candidate kept in ParseError
)

var (
	// ErrIncomplete is returned by Next when the pending bytes do not hold a
	// complete candidate record. The bytes are retained for the next Push.
	ErrIncomplete = errors.New("incomplete record")

	// ErrPendingOverflow is returned when the pending buffer grows past the cap
	// without a record boundary. The buffer is discarded.
	ErrPendingOverflow = errors.New("pending buffer overflow")

	// ErrMalformed is wrapped by ParseError when a candidate is not a valid JSON object
	ErrMalformed = errors.New("malformed record")

	// ErrInvalidEncoding is wrapped by ParseError when a candidate is not valid UTF-8
	ErrInvalidEncoding = errors.New("invalid UTF-8 sequence")

	// ErrMissingField is wrapped by ParseError when a candidate lacks x, y or z
	ErrMissingField = errors.New("missing field")

	// ErrDuplicateField is wrapped by ParseError when a candidate repeats a field
	ErrDuplicateField = errors.New("duplicate field")
)

// ParseError reports a candidate record that was consumed but rejected.
// It is transient: the stream stays usable and the next candidate is tried.
type ParseError struct {
	Fragment string // Leading bytes of the rejected candidate
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing record %q: %s", e.Fragment, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Stats holds demuxer counters.
type Stats struct {
	Records     uint64 // Records successfully decoded
	ParseErrors uint64 // Candidates rejected
	Discarded   uint64 // Bytes dropped while resynchronizing, on overflow included
	Overflows   uint64 // Times the pending buffer was discarded
}

// WithMaxPending sets the maximum number of bytes retained without a record boundary
func WithMaxPending(n int) func(d *Demuxer) {
	return func(d *Demuxer) {
		if n > 0 {
			d.maxPending = n
		}
	}
}

// Demuxer recovers telemetry records from an unframed byte stream, where
// records are JSON objects delimited only by their braces. Bytes that cannot
// belong to a well-formed record are dropped rather than repaired.
//
// A Demuxer is not safe for concurrent use.
type Demuxer struct {
	buf        []byte
	maxPending int
	stats      Stats
}

// New creates a Demuxer with an empty pending buffer.
func New(options ...func(d *Demuxer)) *Demuxer {
	d := Demuxer{
		maxPending: DefaultMaxPending,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// Push appends the bytes of one read to the pending buffer.
func (d *Demuxer) Push(chunk []byte) {
	d.buf = append(d.buf, chunk...)
}

// Next runs one extraction cycle over the pending bytes. It returns a record,
// a *ParseError for a rejected candidate, ErrIncomplete when more bytes are
// needed, or ErrPendingOverflow.
//
// The cycle depends on the number of '{' in the pending bytes:
//   - none: everything is a partial tail and is retained;
//   - one: bytes before it are dropped and the candidate runs to the next '}';
//   - more: the bytes are scanned '}'-delimited segment by segment and
//     segments without a record start are dropped. Within a segment the
//     last '{' starts the candidate, since a record never nests braces.
func (d *Demuxer) Next() (telemetry.Record, error) {
	for {
		switch bytes.Count(d.buf, []byte{'{'}) {
		case 0:
			return d.incomplete()

		case 1:
			d.discard(bytes.IndexByte(d.buf, '{'))

			end := bytes.IndexByte(d.buf, '}')
			if end < 0 {
				return d.incomplete()
			}
			return d.extract(end + 1)

		default:
			end := bytes.IndexByte(d.buf, '}')
			if end < 0 {
				// only the newest record start can still complete
				d.discard(bytes.LastIndexByte(d.buf, '{'))
				return d.incomplete()
			}

			start := bytes.LastIndexByte(d.buf[:end], '{')
			if start < 0 {
				d.discard(end + 1)
				continue
			}

			d.discard(start)
			return d.extract(end - start + 1)
		}
	}
}

// Records returns a lazy sequence over the records extractable from the
// pending bytes. Rejected candidates are yielded as *ParseError and the
// sequence continues; it ends when more bytes are needed, or after yielding
// ErrPendingOverflow.
func (d *Demuxer) Records() iter.Seq2[telemetry.Record, error] {
	return func(yield func(telemetry.Record, error) bool) {
		for {
			rec, err := d.Next()
			switch {
			case err == nil:
				if !yield(rec, nil) {
					return
				}

			case errors.Is(err, ErrIncomplete):
				return

			default:
				if !yield(telemetry.Record{}, err) || errors.Is(err, ErrPendingOverflow) {
					return
				}
			}
		}
	}
}

// Feed pushes chunk and returns every record it completes. Parse failures are
// skipped; only ErrPendingOverflow is returned.
func (d *Demuxer) Feed(chunk []byte) ([]telemetry.Record, error) {
	d.Push(chunk)

	var records []telemetry.Record
	for rec, err := range d.Records() {
		if err != nil {
			if errors.Is(err, ErrPendingOverflow) {
				return records, err
			}
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Pending returns the number of retained bytes.
func (d *Demuxer) Pending() int {
	return len(d.buf)
}

// Stats returns a copy of the demuxer counters.
func (d *Demuxer) Stats() Stats {
	return d.stats
}

// Reset drops all pending bytes.
func (d *Demuxer) Reset() {
	d.buf = d.buf[:0]
}

func (d *Demuxer) incomplete() (telemetry.Record, error) {
	if len(d.buf) > d.maxPending {
		d.stats.Discarded += uint64(len(d.buf))
		d.stats.Overflows++
		d.buf = d.buf[:0]
		return telemetry.Record{}, ErrPendingOverflow
	}
	return telemetry.Record{}, ErrIncomplete
}

// extract parses the first n pending bytes as a candidate and consumes them.
func (d *Demuxer) extract(n int) (telemetry.Record, error) {
	rec, err := parse(d.buf[:n])
	d.consume(n)

	if err != nil {
		d.stats.ParseErrors++
		return telemetry.Record{}, err
	}

	d.stats.Records++
	return rec, nil
}

func (d *Demuxer) discard(n int) {
	if n <= 0 {
		return
	}
	d.stats.Discarded += uint64(n)
	d.consume(n)
}

func (d *Demuxer) consume(n int) {
	d.buf = d.buf[:copy(d.buf, d.buf[n:])]
}

// wireRecord holds the fields of a record. Keys match exactly: "X" is not
// "x". Keys other than x, y, z and s are ignored.
type wireRecord struct {
	X *float64
	Y *float64
	Z *float64
	S *json.Number
}

func parse(candidate []byte) (telemetry.Record, error) {
	if !utf8.Valid(candidate) {
		return telemetry.Record{}, newParseError(candidate, ErrInvalidEncoding)
	}

	w, err := decodeWireRecord(candidate)
	if err != nil {
		return telemetry.Record{}, newParseError(candidate, err)
	}

	switch {
	case w.X == nil:
		return telemetry.Record{}, newParseError(candidate, fmt.Errorf("%w: x", ErrMissingField))
	case w.Y == nil:
		return telemetry.Record{}, newParseError(candidate, fmt.Errorf("%w: y", ErrMissingField))
	case w.Z == nil:
		return telemetry.Record{}, newParseError(candidate, fmt.Errorf("%w: z", ErrMissingField))
	}

	rec := telemetry.Record{X: *w.X, Y: *w.Y, Z: *w.Z}

	// a sequence number that is not a uint64 (negative, fractional, too
	// large) is dropped, the angles are still good
	if w.S != nil {
		if seq, err := strconv.ParseUint(w.S.String(), 10, 64); err == nil {
			rec.Seq = seq
		}
	}

	return rec, nil
}

// decodeWireRecord walks the object key by key so that keys match case
// sensitively and a repeated key is rejected instead of overwriting.
func decodeWireRecord(candidate []byte) (w wireRecord, err error) {
	dec := json.NewDecoder(bytes.NewReader(candidate))
	dec.UseNumber()

	malformed := func(err error) error {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	tok, err := dec.Token()
	if err != nil {
		return w, malformed(err)
	}
	if tok != json.Delim('{') {
		return w, malformed(errors.New("not an object"))
	}

	fields := map[string]any{"x": &w.X, "y": &w.Y, "z": &w.Z, "s": &w.S}
	seen := make(map[string]struct{}, len(fields))

	for dec.More() {
		if tok, err = dec.Token(); err != nil {
			return w, malformed(err)
		}
		key, ok := tok.(string)
		if !ok {
			return w, malformed(fmt.Errorf("unexpected token %v", tok))
		}

		dst, known := fields[key]
		if !known {
			var skip json.RawMessage
			if err = dec.Decode(&skip); err != nil {
				return w, malformed(err)
			}
			continue
		}

		if _, dup := seen[key]; dup {
			return w, fmt.Errorf("%w: %s", ErrDuplicateField, key)
		}
		seen[key] = struct{}{}

		if err = dec.Decode(dst); err != nil {
			return w, malformed(err)
		}
	}

	if _, err = dec.Token(); err != nil {
		return w, malformed(err)
	}
	return w, nil
}

func newParseError(candidate []byte, err error) *ParseError {
	if len(candidate) > maxFragmentLen {
		candidate = candidate[:maxFragmentLen]
	}
	return &ParseError{Fragment: string(candidate), Err: err}
}
