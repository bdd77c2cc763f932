package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const DefaultInterval = 10 * time.Millisecond

// corruptFragment is a record cut short, as left behind by a lost packet.
var corruptFragment = []byte(`{"x":12.5,"y":`)

// WithInterval sets the time between records
func WithInterval(d time.Duration) func(s *Streamer) {
	return func(s *Streamer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithLimit stops the streamer after n records. Zero streams until cancelled.
func WithLimit(n uint64) func(s *Streamer) {
	return func(s *Streamer) {
		s.limit = n
	}
}

// WithFragmentation makes writes ignore record boundaries: encoded records
// are buffered and written in randomly sized pieces, so one write may carry
// part of a record or several records.
func WithFragmentation(enabled bool) func(s *Streamer) {
	return func(s *Streamer) {
		s.fragment = enabled
	}
}

// WithCorruption injects a truncated record before a real one with the given
// probability.
func WithCorruption(p float64) func(s *Streamer) {
	return func(s *Streamer) {
		s.corruption = p
	}
}

// WithSource sets the motion source
func WithSource(src *Source) func(s *Streamer) {
	return func(s *Streamer) {
		s.source = src
	}
}

// WithSplitSeed makes fragment boundaries and corruption reproducible
func WithSplitSeed(seed uint64) func(s *Streamer) {
	return func(s *Streamer) {
		s.rng = rand.New(rand.NewPCG(seed, ^seed))
	}
}

// WithLogger sets the logger for the streamer
func WithLogger(logger *slog.Logger) func(s *Streamer) {
	return func(s *Streamer) {
		s.logger = logger.With(slog.String("component", "imusim"))
	}
}

// Streamer plays the role of the sensor: it fuses simulated IMU readings and
// writes one wire record per interval to the viewer connection.
type Streamer struct {
	source     *Source
	filter     *Filter
	interval   time.Duration
	limit      uint64
	fragment   bool
	corruption float64
	rng        *rand.Rand

	pending []byte
	sent    atomic.Uint64
	written atomic.Uint64

	logger *slog.Logger
}

// NewStreamer creates a Streamer.
func NewStreamer(options ...func(s *Streamer)) *Streamer {
	s := Streamer{
		filter:   NewFilter(),
		interval: DefaultInterval,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	if s.source == nil {
		s.source = NewSource()
	}

	return &s
}

// Dial connects to the viewer at addr and streams until ctx is cancelled,
// the limit is reached or the connection fails.
func (s *Streamer) Dial(ctx context.Context, addr string) error {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}

	s.logger.Info("connected", slog.String("addr", conn.RemoteAddr().String()))
	return s.Run(ctx, conn)
}

// Run streams records to w and closes it when done. Cancelling ctx is a
// normal stop.
func (s *Streamer) Run(ctx context.Context, w io.WriteCloser) (err error) {
	defer func() {
		if cErr := w.Close(); cErr != nil && err == nil && !errors.Is(cErr, net.ErrClosed) {
			err = cErr
		}
		s.logger.Info("streamer stopped",
			slog.String("records", humanize.Comma(int64(s.sent.Load()))),
			slog.String("written", humanize.Bytes(s.written.Load())))
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for s.limit == 0 || s.sent.Load() < s.limit {
		select {
		case <-ctx.Done():
			return s.flush(w)
		case <-ticker.C:
		}

		if err = s.emit(w, s.nextRecord()); err != nil {
			return err
		}
	}

	return s.flush(w)
}

func (s *Streamer) nextRecord() telemetry.Record {
	roll, pitch, yaw := s.filter.Update(s.source.Next(s.interval), s.interval)

	return telemetry.Record{
		X:   roll,
		Y:   pitch,
		Z:   yaw,
		Seq: s.sent.Load() + 1,
	}
}

func (s *Streamer) emit(w io.Writer, r telemetry.Record) error {
	if s.corruption > 0 && s.rng.Float64() < s.corruption {
		s.pending = append(s.pending, corruptFragment...)
	}
	s.pending = AppendRecord(s.pending, r)
	s.sent.Add(1)

	if !s.fragment {
		return s.flush(w)
	}

	// write a random prefix of up to two records' worth, keep the rest
	n := 1 + s.rng.IntN(2*len(s.pending))
	if n >= len(s.pending) {
		return s.flush(w)
	}
	if err := s.write(w, s.pending[:n]); err != nil {
		return err
	}
	s.pending = s.pending[:copy(s.pending, s.pending[n:])]
	return nil
}

func (s *Streamer) flush(w io.Writer) error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.write(w, s.pending)
	s.pending = s.pending[:0]
	return err
}

func (s *Streamer) write(w io.Writer, p []byte) error {
	n, err := w.Write(p)
	s.written.Add(uint64(n))
	if err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	return nil
}

// Sent returns the number of records produced.
func (s *Streamer) Sent() uint64 {
	return s.sent.Load()
}
