package render

import (
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roman-kulish/attitude-monitor/internal/display"
	"github.com/roman-kulish/attitude-monitor/internal/shutdown"
	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

type fakeSurface struct {
	events     chan display.Event
	presented  atomic.Uint64
	closed     atomic.Bool
	presentErr error

	last display.FrameSlot
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{events: make(chan display.Event, 4)}
}

func (s *fakeSurface) Present(frame *image.RGBA) error {
	if s.presentErr != nil {
		return s.presentErr
	}
	s.last.Store(frame)
	s.presented.Add(1)
	return nil
}

func (s *fakeSurface) Events() <-chan display.Event { return s.events }
func (s *fakeSurface) Run() error                   { return nil }
func (s *fakeSurface) Close() error                 { s.closed.Store(true); return nil }

func runLoop(t *testing.T, l *Loop) <-chan error {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- l.Run() }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Render loop did not stop")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLoop_StopsOnShutdown(t *testing.T) {
	c := shutdown.New()
	surface := newFakeSurface()
	l := NewLoop(telemetry.NewState(), c, surface, newTestRenderer(t), WithFPS(200))

	done := runLoop(t, l)
	waitFor(t, "first frame", func() bool { return surface.presented.Load() > 0 })

	c.RequestShutdown("test")
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !surface.closed.Load() {
		t.Error("Expected the surface to be closed")
	}

	presented := surface.presented.Load()
	time.Sleep(20 * time.Millisecond)
	if surface.presented.Load() != presented {
		t.Error("Expected no frames after shutdown")
	}
}

func TestLoop_NoFramesWhenAlreadyShuttingDown(t *testing.T) {
	c := shutdown.New()
	c.RequestShutdown("early")
	surface := newFakeSurface()

	if err := NewLoop(telemetry.NewState(), c, surface, newTestRenderer(t)).Run(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := surface.presented.Load(); n != 0 {
		t.Errorf("Expected no frames, got %d", n)
	}
	if !surface.closed.Load() {
		t.Error("Expected the surface to be closed")
	}
}

func TestLoop_Events(t *testing.T) {
	c := shutdown.New()
	surface := newFakeSurface()
	l := NewLoop(telemetry.NewState(), c, surface, newTestRenderer(t), WithFPS(200))

	if l.YawMode() {
		t.Fatal("Expected yaw mode to be off by default")
	}

	done := runLoop(t, l)

	surface.events <- display.EventToggleYaw
	waitFor(t, "yaw mode", l.YawMode)

	surface.events <- display.EventToggleYaw
	waitFor(t, "yaw mode off", func() bool { return !l.YawMode() })

	surface.events <- display.EventQuit
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !c.IsShuttingDown() {
		t.Error("Expected quit to request shutdown")
	}
	if r := c.Reason(); r != "quit requested" {
		t.Errorf("Expected reason %q, got %q", "quit requested", r)
	}
}

func TestLoop_DrawsLatestOrientation(t *testing.T) {
	c := shutdown.New()
	state := telemetry.NewState()
	surface := newFakeSurface()
	l := NewLoop(state, c, surface, newTestRenderer(t), WithFPS(200), WithYawMode(true))

	done := runLoop(t, l)

	state.Publish(0, 0, 90)
	start := surface.presented.Load()
	waitFor(t, "frames after publish", func() bool { return surface.presented.Load() > start+2 })

	c.RequestShutdown("test")
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// yawed 90 degrees the blue side faces the camera
	frame := surface.last.Load()

	if got := frame.RGBAAt(160, 120); got.B != 255 || got.R != 0 || got.G != 0 {
		t.Errorf("Expected the blue side at the centre, got %v", got)
	}
}

func TestLoop_PresentError(t *testing.T) {
	c := shutdown.New()
	surface := newFakeSurface()
	surface.presentErr = errors.New("gone")

	err := NewLoop(telemetry.NewState(), c, surface, newTestRenderer(t)).Run()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !c.IsShuttingDown() {
		t.Error("Expected a present failure to request shutdown")
	}
	if !surface.closed.Load() {
		t.Error("Expected the surface to be closed")
	}
}
