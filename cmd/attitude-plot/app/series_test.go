package app

import (
	"testing"
	"time"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

func ptr(v float64) *float64 { return &v }

func TestAttitudeSeries_Update(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	s := NewAttitudeSeries()
	if !s.Empty() {
		t.Fatal("New series should be empty")
	}

	s.Update(&telemetry.Telemetry{Timestamp: base.Add(time.Second), Roll: ptr(10), Pitch: ptr(-5), Yaw: ptr(90)})
	s.Update(&telemetry.Telemetry{Timestamp: base, Roll: ptr(-20), Pitch: ptr(3)})
	s.Update(nil)

	if s.Count != 2 {
		t.Errorf("Count = %d, want 2", s.Count)
	}
	if !s.TimestampStart.Equal(base) || !s.TimestampEnd.Equal(base.Add(time.Second)) {
		t.Errorf("Time range = %v..%v", s.TimestampStart, s.TimestampEnd)
	}
	if s.Duration() != time.Second {
		t.Errorf("Duration = %v, want 1s", s.Duration())
	}
	if got := len(s.Samples[AxisYaw]); got != 1 {
		t.Errorf("Yaw samples = %d, want 1", got)
	}
	if b := s.Bounds[AxisRoll]; b.Min != -20 || b.Max != 10 {
		t.Errorf("Roll bounds = %+v, want -20..10", b)
	}
}

func TestBounds_Range(t *testing.T) {
	tests := []struct {
		name   string
		bounds Bounds
		lo, hi float64
	}{
		{"symmetric", Bounds{Min: -12, Max: 7}, -20, 10},
		{"positive", Bounds{Min: 3, Max: 359}, 0, 360},
		{"exact", Bounds{Min: -10, Max: 20}, -10, 20},
		{"flat", Bounds{Min: 0, Max: 0}, -10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := tt.bounds.Range(10)
			if lo != tt.lo || hi != tt.hi {
				t.Errorf("Range() = %v, %v, want %v, %v", lo, hi, tt.lo, tt.hi)
			}
		})
	}
}
