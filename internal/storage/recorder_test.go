package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

func TestRecorder_FlushesOnClose(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess, err := store.CreateSession(ctx, "peer", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	rec := NewRecorder(store, sess.ID, WithMaxBatchSize(16), WithFlushInterval(time.Hour))
	if err = rec.Start(ctx); err != nil {
		t.Fatalf("Failed to start recorder: %v", err)
	}
	if err = rec.Start(ctx); err != ErrRecorderStarted {
		t.Errorf("Expected ErrRecorderStarted, got %v", err)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for _, tm := range makeTelemetry(base, 250) {
		if !rec.Record(tm) {
			t.Fatal("Expected record to be accepted")
		}
	}

	if err = rec.Close(); err != nil {
		t.Fatalf("Failed to close recorder: %v", err)
	}
	if n := rec.Stored(); n != 250 {
		t.Errorf("Expected 250 stored records, got %d", n)
	}
	if rec.Record(makeTelemetry(base, 1)[0]) {
		t.Error("Expected records after close to be rejected")
	}

	if got := readAll(t, store, sess.ID); len(got) != 250 {
		t.Errorf("Expected 250 records read back, got %d", len(got))
	}
}

func TestRecorder_RecordSink(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess, err := store.CreateSession(ctx, "peer", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	rec := NewRecorder(store, sess.ID, WithFlushInterval(5*time.Millisecond))
	if err = rec.Start(ctx); err != nil {
		t.Fatalf("Failed to start recorder: %v", err)
	}

	rec.RecordSink(telemetry.Record{X: 1.5, Y: -2.5, Z: 30, Seq: 7, ReceivedAt: time.Now()})

	deadline := time.Now().Add(2 * time.Second)
	for rec.Stored() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the interval flush")
		}
		time.Sleep(time.Millisecond)
	}

	if err = rec.Close(); err != nil {
		t.Fatalf("Failed to close recorder: %v", err)
	}

	got := readAll(t, store, sess.ID)
	if len(got) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(got))
	}
	if got[0].Seq != 7 || *got[0].Roll != 1.5 || *got[0].Pitch != -2.5 || *got[0].Yaw != 30 {
		t.Errorf("Unexpected record: seq=%d roll=%f pitch=%f yaw=%f", got[0].Seq, *got[0].Roll, *got[0].Pitch, *got[0].Yaw)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	rec := NewRecorder(newTestStore(t), uuid.New(), WithQueueSize(2))

	base := time.Now()
	batch := makeTelemetry(base, 3)
	if !rec.Record(batch[0]) || !rec.Record(batch[1]) {
		t.Fatal("Expected the first records to be queued")
	}
	if rec.Record(batch[2]) {
		t.Error("Expected a full queue to drop the record")
	}
	if n := rec.Dropped(); n != 1 {
		t.Errorf("Expected 1 dropped record, got %d", n)
	}

	// never started: Close must not wait for a writer
	if err := rec.Close(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

type countingProvider struct {
	calls atomic.Int64
	state *telemetry.State
}

func (p *countingProvider) Get() *telemetry.Telemetry {
	p.calls.Add(1)
	return p.state.Get()
}

func TestRecorder_SamplesProvider(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	sess, err := store.CreateSession(ctx, "peer", nil)
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	provider := &countingProvider{state: telemetry.NewState()}
	rec := NewRecorder(store, sess.ID, WithProvider(provider, time.Millisecond), WithFlushInterval(time.Hour))
	if err = rec.Start(ctx); err != nil {
		t.Fatalf("Failed to start recorder: %v", err)
	}

	// nothing published yet: samples are skipped
	for provider.calls.Load() < 5 {
		time.Sleep(time.Millisecond)
	}

	provider.state.Publish(10, 20, 30)
	start := provider.calls.Load()
	for provider.calls.Load() < start+5 {
		time.Sleep(time.Millisecond)
	}

	if err = rec.Close(); err != nil {
		t.Fatalf("Failed to close recorder: %v", err)
	}

	got := readAll(t, store, sess.ID)
	if len(got) != 1 {
		t.Fatalf("Expected the unchanged snapshot to be stored once, got %d", len(got))
	}
	if *got[0].Roll != 10 || *got[0].Pitch != 20 || *got[0].Yaw != 30 {
		t.Errorf("Unexpected sample: %f %f %f", *got[0].Roll, *got[0].Pitch, *got[0].Yaw)
	}
}

func TestRecorder_ClampsBatchSize(t *testing.T) {
	rec := NewRecorder(newTestStore(t), uuid.New(), WithMaxBatchSize(1_000_000))
	if rec.maxBatchSize != MaxBatchSize {
		t.Errorf("Expected batch size clamped to %d, got %d", MaxBatchSize, rec.maxBatchSize)
	}
}
