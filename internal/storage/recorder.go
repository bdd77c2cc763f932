package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const (
	DefaultMaxBatchSize  = 100
	DefaultFlushInterval = time.Second
	DefaultQueueSize     = 4096
)

var ErrRecorderStarted = errors.New("recorder already started")

// WithMaxBatchSize sets the maximum number of records stored within a single
// database transaction. Sizes above MaxBatchSize are clamped.
func WithMaxBatchSize(size int) func(*Recorder) {
	return func(r *Recorder) {
		if size > 0 {
			r.maxBatchSize = min(size, MaxBatchSize)
		}
	}
}

// WithFlushInterval sets how often buffered records are written.
func WithFlushInterval(d time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// WithQueueSize sets the capacity of the incoming record queue.
func WithQueueSize(n int) func(*Recorder) {
	return func(r *Recorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

// WithProvider makes the recorder sample the provider every interval in
// addition to records passed to Record. A sample is stored only when its
// timestamp changed since the previous one.
func WithProvider(provider telemetry.Provider, interval time.Duration) func(*Recorder) {
	return func(r *Recorder) {
		r.provider = provider
		r.sampleInterval = interval
	}
}

// WithRecorderLogger sets the logger for the recorder
func WithRecorderLogger(logger *slog.Logger) func(*Recorder) {
	return func(r *Recorder) {
		r.logger = logger.With(slog.String("component", "recorder"))
	}
}

// Recorder persists telemetry for one session in the background. Record
// never blocks: when the queue is full the record is dropped and counted.
type Recorder struct {
	store     Store
	sessionID uuid.UUID

	maxBatchSize   int
	flushInterval  time.Duration
	queueSize      int
	provider       telemetry.Provider
	sampleInterval time.Duration

	records chan *telemetry.Telemetry
	stop    chan struct{}
	done    chan struct{}

	started   atomic.Bool
	closed    atomic.Bool
	closeOnce sync.Once

	stored  atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	logger *slog.Logger
}

// NewRecorder creates a Recorder writing into the given session.
func NewRecorder(store Store, sessionID uuid.UUID, options ...func(*Recorder)) *Recorder {
	r := Recorder{
		store:         store,
		sessionID:     sessionID,
		maxBatchSize:  DefaultMaxBatchSize,
		flushInterval: DefaultFlushInterval,
		queueSize:     DefaultQueueSize,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	r.records = make(chan *telemetry.Telemetry, r.queueSize)
	return &r
}

// Start launches the writer goroutine. Database writes use a context detached
// from ctx cancellation so the final flush on Close still completes.
func (r *Recorder) Start(ctx context.Context) error {
	if !r.started.CompareAndSwap(false, true) {
		return ErrRecorderStarted
	}

	go r.run(context.WithoutCancel(ctx))
	return nil
}

// Record queues t for storage. It reports whether the record was accepted.
func (r *Recorder) Record(t *telemetry.Telemetry) bool {
	if t == nil {
		return false
	}
	if r.closed.Load() {
		r.dropped.Add(1)
		return false
	}

	select {
	case r.records <- t:
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// RecordSink adapts Record to a decoded-record callback.
func (r *Recorder) RecordSink(rec telemetry.Record) {
	r.Record(telemetry.FromRecord(rec))
}

// Close stops accepting records, flushes what is queued and waits for the
// writer to finish.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.stop)
	})

	if r.started.Load() {
		<-r.done
	}

	if n := r.failed.Load(); n > 0 {
		return fmt.Errorf("%s records could not be stored", humanize.Comma(int64(n)))
	}
	return nil
}

// Stored returns the number of records written to the database.
func (r *Recorder) Stored() uint64 {
	return r.stored.Load()
}

// Dropped returns the number of records rejected because the queue was full
// or the recorder was closed.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	var sampleC <-chan time.Time
	if r.provider != nil && r.sampleInterval > 0 {
		sampler := time.NewTicker(r.sampleInterval)
		defer sampler.Stop()
		sampleC = sampler.C
	}

	batch := make([]*telemetry.Telemetry, 0, r.maxBatchSize)
	var lastSample time.Time

	for {
		select {
		case t := <-r.records:
			batch = append(batch, t)
			if len(batch) >= r.maxBatchSize {
				batch = r.flush(ctx, batch)
			}

		case <-ticker.C:
			batch = r.flush(ctx, batch)

		case <-sampleC:
			t := r.provider.Get()
			if t == nil || t.Timestamp.IsZero() || t.Timestamp.Equal(lastSample) {
				continue
			}
			lastSample = t.Timestamp
			batch = append(batch, t)

		case <-r.stop:
			r.flush(ctx, r.drain(batch))

			r.logger.Info("recorder stopped",
				slog.String("session", r.sessionID.String()),
				slog.String("stored", humanize.Comma(int64(r.stored.Load()))),
				slog.String("dropped", humanize.Comma(int64(r.dropped.Load()))))
			return
		}
	}
}

// drain appends every queued record to batch without blocking.
func (r *Recorder) drain(batch []*telemetry.Telemetry) []*telemetry.Telemetry {
	for {
		select {
		case t := <-r.records:
			batch = append(batch, t)
		default:
			return batch
		}
	}
}

// flush stores batch in chunks of at most maxBatchSize records and returns
// the emptied batch for reuse.
func (r *Recorder) flush(ctx context.Context, batch []*telemetry.Telemetry) []*telemetry.Telemetry {
	if len(batch) == 0 {
		return batch
	}

	for chunk := range slices.Chunk(batch, r.maxBatchSize) {
		if err := r.store.StoreTelemetry(ctx, r.sessionID, chunk); err != nil {
			r.failed.Add(uint64(len(chunk)))
			r.logger.Error("storing telemetry", slog.Any("error", err), slog.Int("records", len(chunk)))
			continue
		}
		r.stored.Add(uint64(len(chunk)))
	}

	clear(batch)
	return batch[:0]
}
