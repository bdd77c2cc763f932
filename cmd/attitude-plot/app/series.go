package app

import (
	"math"
	"time"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

// Axis identifies one of the plotted angles.
type Axis int

const (
	AxisRoll Axis = iota
	AxisPitch
	AxisYaw
)

var axes = [...]Axis{AxisRoll, AxisPitch, AxisYaw}

func (a Axis) String() string {
	switch a {
	case AxisRoll:
		return "roll"
	case AxisPitch:
		return "pitch"
	case AxisYaw:
		return "yaw"
	default:
		return "unknown"
	}
}

// Sample is a single point of one axis.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// Bounds is the value range of a series.
type Bounds struct {
	Min, Max float64
}

// Range returns b widened outwards to multiples of step. A flat series gets
// one step on each side.
func (b Bounds) Range(step float64) (lo, hi float64) {
	lo = math.Floor(b.Min/step) * step
	hi = math.Ceil(b.Max/step) * step
	if lo == hi {
		lo -= step
		hi += step
	}
	return lo, hi
}

// AttitudeSeries accumulates stored telemetry into per-axis samples.
type AttitudeSeries struct {
	Count                        int
	TimestampStart, TimestampEnd time.Time
	Samples                      [len(axes)][]Sample
	Bounds                       [len(axes)]Bounds
}

func NewAttitudeSeries() *AttitudeSeries {
	s := &AttitudeSeries{}
	for i := range s.Bounds {
		s.Bounds[i] = Bounds{Min: math.MaxFloat64, Max: -math.MaxFloat64}
	}
	return s
}

func (s *AttitudeSeries) Update(t *telemetry.Telemetry) {
	if t == nil {
		return
	}
	s.Count++

	if s.TimestampStart.IsZero() || s.TimestampStart.After(t.Timestamp) {
		s.TimestampStart = t.Timestamp
	}
	if s.TimestampEnd.IsZero() || s.TimestampEnd.Before(t.Timestamp) {
		s.TimestampEnd = t.Timestamp
	}

	for _, axis := range axes {
		var v *float64
		switch axis {
		case AxisRoll:
			v = t.Roll
		case AxisPitch:
			v = t.Pitch
		case AxisYaw:
			v = t.Yaw
		}
		if v == nil {
			continue
		}

		s.Samples[axis] = append(s.Samples[axis], Sample{Timestamp: t.Timestamp, Value: *v})
		s.Bounds[axis].Min = min(s.Bounds[axis].Min, *v)
		s.Bounds[axis].Max = max(s.Bounds[axis].Max, *v)
	}
}

// Duration is the time covered by the series.
func (s *AttitudeSeries) Duration() time.Duration {
	return s.TimestampEnd.Sub(s.TimestampStart)
}

// Empty reports whether no samples were accumulated.
func (s *AttitudeSeries) Empty() bool {
	return s.Count == 0
}
