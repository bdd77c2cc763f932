package telemetry

import (
	"sync/atomic"
	"time"
)

// Orientation is an immutable snapshot of the latest published attitude.
type Orientation struct {
	Roll      float64   // Roll angle in degrees
	Pitch     float64   // Pitch angle in degrees
	Yaw       float64   // Yaw angle in degrees
	Seq       uint64    // Sample number of the record that produced it
	UpdatedAt time.Time // Zero until the first publish
}

// State holds the latest orientation shared between the ingestion goroutine
// (single writer) and the render loop (reader).
//
// Every publish swaps in a freshly allocated snapshot, so a reader always
// observes all three angles of one completed publish. Reads never block.
type State struct {
	current   atomic.Pointer[Orientation]
	publishes atomic.Uint64
}

// NewState creates a State with the (0, 0, 0) orientation.
func NewState() *State {
	s := &State{}
	s.current.Store(&Orientation{})
	return s
}

// Publish replaces the current snapshot.
func (s *State) Publish(roll, pitch, yaw float64) {
	s.store(&Orientation{
		Roll:      roll,
		Pitch:     pitch,
		Yaw:       yaw,
		UpdatedAt: time.Now(),
	})
}

// PublishRecord replaces the current snapshot with the angles of r.
func (s *State) PublishRecord(r Record) {
	updatedAt := r.ReceivedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	s.store(&Orientation{
		Roll:      r.X,
		Pitch:     r.Y,
		Yaw:       r.Z,
		Seq:       r.Seq,
		UpdatedAt: updatedAt,
	})
}

func (s *State) store(o *Orientation) {
	s.current.Store(o)
	s.publishes.Add(1)
}

// Read returns the latest published snapshot.
func (s *State) Read() Orientation {
	if o := s.current.Load(); o != nil {
		return *o
	}
	return Orientation{}
}

// Publishes returns the number of snapshots published so far.
func (s *State) Publishes() uint64 {
	return s.publishes.Load()
}

// Get implements Provider.
func (s *State) Get() *Telemetry {
	o := s.Read()

	return &Telemetry{
		Timestamp: o.UpdatedAt,
		Seq:       o.Seq,
		Roll:      &o.Roll,
		Pitch:     &o.Pitch,
		Yaw:       &o.Yaw,
	}
}
