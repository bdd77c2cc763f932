package app

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/attitude-monitor/internal/storage"
	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

func sineTelemetry(n int) []*telemetry.Telemetry {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]*telemetry.Telemetry, n)
	for i := range out {
		phase := float64(i) / 10
		out[i] = &telemetry.Telemetry{
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
			Seq:       uint64(i + 1),
			Roll:      ptr(30 * math.Sin(phase)),
			Pitch:     ptr(15 * math.Cos(phase)),
			Yaw:       ptr(math.Mod(float64(i)*3, 360)),
		}
	}
	return out
}

func sineSeries(n int) *AttitudeSeries {
	s := NewAttitudeSeries()
	for _, t := range sineTelemetry(n) {
		s.Update(t)
	}
	return s
}

func countColor(img *image.RGBA, area image.Rectangle, c color.RGBA) int {
	n := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			if img.RGBAAt(x, y) == c {
				n++
			}
		}
	}
	return n
}

func TestChartRenderer_Render(t *testing.T) {
	r, err := NewChartRenderer(RenderConfig{Width: 400, Height: 300, Location: time.UTC})
	if err != nil {
		t.Fatalf("NewChartRenderer() error = %v", err)
	}

	session := &storage.Session{ID: uuid.New(), Peer: "127.0.0.1:5000"}
	img, err := r.Render(session, sineSeries(300))
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if got := img.Bounds(); got != image.Rect(0, 0, 400, 300) {
		t.Fatalf("Bounds = %v", got)
	}
	if got := img.RGBAAt(1, 1); got != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Errorf("Background = %v, want white", got)
	}

	for _, axis := range axes {
		area := r.panelArea(axis)
		if n := countColor(img, area, axisColors[axis]); n < area.Dx()/2 {
			t.Errorf("%s panel has %d plotted pixels", axis, n)
		}
		for _, other := range axes {
			if other == axis {
				continue
			}
			if n := countColor(img, area, axisColors[other]); n != 0 {
				t.Errorf("%s panel has %d pixels of %s", axis, n, other)
			}
		}
	}
}

func TestChartRenderer_Errors(t *testing.T) {
	if _, err := NewChartRenderer(RenderConfig{Width: 50, Height: 50}); err == nil {
		t.Error("Expected error for a tiny chart")
	}

	r, err := NewChartRenderer(RenderConfig{})
	if err != nil {
		t.Fatalf("NewChartRenderer() error = %v", err)
	}
	if _, err = r.Render(nil, NewAttitudeSeries()); !errors.Is(err, ErrNoData) {
		t.Errorf("Render() error = %v, want %v", err, ErrNoData)
	}
}

func TestCalculateNiceTimeStep(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     time.Duration
	}{
		{5 * time.Second, time.Second},
		{time.Minute, 10 * time.Second},
		{10 * time.Minute, 5 * time.Minute},
		{24 * time.Hour, 2 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.duration.String(), func(t *testing.T) {
			if got := calculateNiceTimeStep(tt.duration); got != tt.want {
				t.Errorf("calculateNiceTimeStep(%v) = %v, want %v", tt.duration, got, tt.want)
			}
		})
	}
}
