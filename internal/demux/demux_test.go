package demux

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

func encode(records []telemetry.Record) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(fmt.Sprintf(`{"x":%g,"y":%g,"z":%g}`, r.X, r.Y, r.Z))
	}
	return sb.String()
}

func sampleRecords(n int) []telemetry.Record {
	records := make([]telemetry.Record, n)
	for i := range records {
		records[i] = telemetry.Record{
			X: float64(i) + 0.25,
			Y: -float64(i) * 1.5,
			Z: float64(i%360) * 2,
		}
	}
	return records
}

func assertRecords(t *testing.T, expected, got []telemetry.Record) {
	t.Helper()

	if len(got) != len(expected) {
		t.Fatalf("Expected %d records, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i].X != expected[i].X || got[i].Y != expected[i].Y || got[i].Z != expected[i].Z {
			t.Errorf("Record %d: expected (%g, %g, %g), got (%g, %g, %g)", i,
				expected[i].X, expected[i].Y, expected[i].Z, got[i].X, got[i].Y, got[i].Z)
		}
	}
}

func feedChunks(t *testing.T, d *Demuxer, chunks []string) []telemetry.Record {
	t.Helper()

	var records []telemetry.Record
	for i, chunk := range chunks {
		recs, err := d.Feed([]byte(chunk))
		if err != nil {
			t.Fatalf("Failed to feed chunk %d: %v", i, err)
		}
		records = append(records, recs...)
	}
	return records
}

func TestDemuxer_WholeStream(t *testing.T) {
	expected := sampleRecords(50)

	got := feedChunks(t, New(), []string{encode(expected)})
	assertRecords(t, expected, got)
}

func TestDemuxer_ChunkBoundaryEquivalence(t *testing.T) {
	expected := sampleRecords(40)
	stream := encode(expected)

	whole := feedChunks(t, New(), []string{stream})
	assertRecords(t, expected, whole)

	rng := rand.New(rand.NewSource(1))
	for run := 0; run < 200; run++ {
		var chunks []string
		for rest := stream; len(rest) > 0; {
			n := 1 + rng.Intn(48)
			if n > len(rest) {
				n = len(rest)
			}
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		d := New()
		got := feedChunks(t, d, chunks)
		assertRecords(t, whole, got)

		if d.Pending() != 0 {
			t.Errorf("Run %d: expected empty pending buffer, got %d bytes", run, d.Pending())
		}
	}
}

func TestDemuxer_EverySplitPoint(t *testing.T) {
	expected := sampleRecords(3)
	stream := encode(expected)

	for i := 1; i < len(stream); i++ {
		got := feedChunks(t, New(), []string{stream[:i], stream[i:]})
		if len(got) != len(expected) {
			t.Fatalf("Split at %d: expected %d records, got %d", i, len(expected), len(got))
		}
		assertRecords(t, expected, got)
	}
}

func TestDemuxer_ByteAtATime(t *testing.T) {
	expected := sampleRecords(5)
	stream := encode(expected)

	chunks := make([]string, len(stream))
	for i := range stream {
		chunks[i] = stream[i : i+1]
	}

	assertRecords(t, expected, feedChunks(t, New(), chunks))
}

func TestDemuxer_ConcatenatedRecords(t *testing.T) {
	got := feedChunks(t, New(), []string{`{"x":1,"y":2,"z":3}{"x":4,"y":5,"z":6}`})

	var found bool
	for _, r := range got {
		if r.X == 4 && r.Y == 5 && r.Z == 6 {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected the second record (4, 5, 6) among %+v", got)
	}
}

func TestDemuxer_TruncatedRecord(t *testing.T) {
	d := New()

	got := feedChunks(t, d, []string{`{"x":1,"y":2,`})
	if len(got) != 0 {
		t.Fatalf("Expected no records from a truncated chunk, got %d", len(got))
	}
	if d.Pending() == 0 {
		t.Fatal("Expected truncated record to be retained")
	}

	got = feedChunks(t, d, []string{`"z":3}`})
	assertRecords(t, []telemetry.Record{{X: 1, Y: 2, Z: 3}}, got)
}

func TestDemuxer_InvalidJSONDoesNotStopStream(t *testing.T) {
	d := New()

	got := feedChunks(t, d, []string{`{"x":}`})
	if len(got) != 0 {
		t.Fatalf("Expected no records from invalid JSON, got %d", len(got))
	}

	got = feedChunks(t, d, []string{`{"x":7,"y":8,"z":9}`})
	assertRecords(t, []telemetry.Record{{X: 7, Y: 8, Z: 9}}, got)

	stats := d.Stats()
	if stats.ParseErrors != 1 {
		t.Errorf("Expected 1 parse error, got %d", stats.ParseErrors)
	}
	if stats.Records != 1 {
		t.Errorf("Expected 1 record, got %d", stats.Records)
	}
}

func TestDemuxer_ParseErrors(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected error
	}{
		{"malformed", `{"x":}`, ErrMalformed},
		{"missing x", `{"y":2,"z":3}`, ErrMissingField},
		{"missing y", `{"x":1,"z":3}`, ErrMissingField},
		{"missing z", `{"x":1,"y":2}`, ErrMissingField},
		{"wrong type", `{"x":"1","y":2,"z":3}`, ErrMalformed},
		{"upper case keys", `{"X":1,"Y":2,"Z":3}`, ErrMissingField},
		{"duplicate key", `{"x":1,"y":2,"z":3,"x":9}`, ErrDuplicateField},
		{"invalid utf-8", "{\"x\":1,\"y\":2,\"z\":3,\"n\":\"\xff\xfe\"}", ErrInvalidEncoding},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := New()
			d.Push([]byte(tc.input))

			_, err := d.Next()

			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Expected *ParseError, got %v", err)
			}
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
			if d.Pending() != 0 {
				t.Errorf("Expected rejected candidate to be consumed, %d bytes pending", d.Pending())
			}

			if _, err = d.Next(); !errors.Is(err, ErrIncomplete) {
				t.Errorf("Expected ErrIncomplete after the rejected candidate, got %v", err)
			}
		})
	}
}

func TestDemuxer_Resync(t *testing.T) {
	testCases := []struct {
		name     string
		chunks   []string
		expected []telemetry.Record
		pending  int
	}{
		{
			name:     "garbage before record",
			chunks:   []string{`not json{"x":1,"y":2,"z":3}`},
			expected: []telemetry.Record{{X: 1, Y: 2, Z: 3}},
		},
		{
			name:     "garbage retained until a record arrives",
			chunks:   []string{`not json`, `{"x":1,"y":2,"z":3}`},
			expected: []telemetry.Record{{X: 1, Y: 2, Z: 3}},
		},
		{
			name:     "tail of a lost record",
			chunks:   []string{`1,"z":3}{"x":4,"y":5,"z":6}{"x":7`},
			expected: []telemetry.Record{{X: 4, Y: 5, Z: 6}},
			pending:  len(`{"x":7`),
		},
		{
			name:     "unterminated record followed by a good one",
			chunks:   []string{`{"x":1,"y{"x":4,"y":5,"z":6}`},
			expected: []telemetry.Record{{X: 4, Y: 5, Z: 6}},
		},
		{
			name:     "whitespace between records",
			chunks:   []string{"{\"x\":1,\"y\":2,\"z\":3}\r\n {\"x\":4,\"y\":5,\"z\":6}\n"},
			expected: []telemetry.Record{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
			pending:  1,
		},
		{
			name:     "malformed record between good ones",
			chunks:   []string{`{"x":1,"y":2,"z":3}{"x":}{"x":4,"y":5,"z":6}`},
			expected: []telemetry.Record{{X: 1, Y: 2, Z: 3}, {X: 4, Y: 5, Z: 6}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := New()

			got := feedChunks(t, d, tc.chunks)
			assertRecords(t, tc.expected, got)

			if d.Pending() != tc.pending {
				t.Errorf("Expected %d pending bytes, got %d", tc.pending, d.Pending())
			}
		})
	}
}

func TestDemuxer_SequenceNumber(t *testing.T) {
	got := feedChunks(t, New(), []string{`{"x":1.5,"y":-2.25,"z":3,"s":42}`})
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].Seq != 42 {
		t.Errorf("Expected seq 42, got %d", got[0].Seq)
	}
	if got[0].Roll() != 1.5 || got[0].Pitch() != -2.25 || got[0].Yaw() != 3 {
		t.Errorf("Unexpected angles: %+v", got[0])
	}
}

func TestDemuxer_InvalidSequenceNumberDropped(t *testing.T) {
	testCases := []struct {
		name string
		seq  string
		want uint64
	}{
		{"max", "18446744073709551615", 18446744073709551615},
		{"negative", "-1", 0},
		{"fraction", "7.5", 0},
		{"exponent", "1e30", 0},
		{"above uint64", "18446744073709551616", 0},
		{"null", "null", 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := feedChunks(t, New(), []string{`{"x":1,"y":2,"z":3,"s":` + tc.seq + `}`})
			if len(got) != 1 {
				t.Fatalf("Expected 1 record, got %d", len(got))
			}
			if got[0].Seq != tc.want {
				t.Errorf("Expected seq %d, got %d", tc.want, got[0].Seq)
			}
		})
	}
}

func TestDemuxer_UnknownKeysIgnored(t *testing.T) {
	got := feedChunks(t, New(), []string{`{"t":[1,2],"n":"imu","x":1,"y":2,"z":3,"X":9}`})
	assertRecords(t, []telemetry.Record{{X: 1, Y: 2, Z: 3}}, got)
}

func TestDemuxer_Overflow(t *testing.T) {
	d := New(WithMaxPending(16))

	_, err := d.Feed([]byte(strings.Repeat("a", 32)))
	if !errors.Is(err, ErrPendingOverflow) {
		t.Fatalf("Expected ErrPendingOverflow, got %v", err)
	}
	if d.Pending() != 0 {
		t.Errorf("Expected pending buffer to be discarded, got %d bytes", d.Pending())
	}

	stats := d.Stats()
	if stats.Overflows != 1 || stats.Discarded != 32 {
		t.Errorf("Expected 1 overflow and 32 discarded bytes, got %+v", stats)
	}

	got := feedChunks(t, d, []string{`{"x":1,"y":2,"z":3}`})
	assertRecords(t, []telemetry.Record{{X: 1, Y: 2, Z: 3}}, got)
}

func TestDemuxer_RecordsStopsEarly(t *testing.T) {
	d := New()
	d.Push([]byte(encode(sampleRecords(3))))

	for range d.Records() {
		break
	}

	var rest []telemetry.Record
	for rec, err := range d.Records() {
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		rest = append(rest, rec)
	}
	assertRecords(t, sampleRecords(3)[1:], rest)
}
