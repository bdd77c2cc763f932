package render

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/attitude-monitor/internal/display"
	"github.com/roman-kulish/attitude-monitor/internal/shutdown"
	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const DefaultFPS = 60

var ErrAlreadyRunning = errors.New("render loop is already running")

// OrientationReader is the read side of the orientation state
type OrientationReader interface {
	Read() telemetry.Orientation
}

// WithFPS sets the target frame rate
func WithFPS(fps int) func(l *Loop) {
	return func(l *Loop) {
		if fps > 0 {
			l.fps = fps
		}
	}
}

// WithYawMode sets the initial yaw mode
func WithYawMode(enabled bool) func(l *Loop) {
	return func(l *Loop) {
		l.yawMode.Store(enabled)
	}
}

// WithLogger sets the logger for the loop
func WithLogger(logger *slog.Logger) func(l *Loop) {
	return func(l *Loop) {
		l.logger = logger.With(slog.String("component", "render"))
	}
}

// Loop paces frame production: every tick it handles queued input, samples
// the latest orientation, draws it and presents the frame to the surface.
type Loop struct {
	state       OrientationReader
	coordinator *shutdown.Coordinator
	surface     display.Surface
	renderer    *Renderer

	fps     int
	yawMode atomic.Bool
	running atomic.Bool
	frames  atomic.Uint64

	// redrawn every tick; surfaces copy what they keep
	buf *image.RGBA

	logger *slog.Logger
}

// NewLoop creates a render Loop.
func NewLoop(state OrientationReader, coordinator *shutdown.Coordinator, surface display.Surface, renderer *Renderer, options ...func(l *Loop)) *Loop {
	l := Loop{
		state:       state,
		coordinator: coordinator,
		surface:     surface,
		renderer:    renderer,
		fps:         DefaultFPS,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&l)
	}

	l.buf = renderer.NewFrame()

	return &l
}

// Run produces frames until shutdown is requested, then closes the surface.
// A Quit event requests shutdown. Errors drawing or presenting a frame also
// request shutdown and are returned.
func (l *Loop) Run() error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	defer func() {
		if err := l.surface.Close(); err != nil {
			l.logger.Error("closing surface", slog.Any("error", err))
		}
	}()

	ticker := time.NewTicker(time.Second / time.Duration(l.fps))
	defer ticker.Stop()

	l.logger.Info("render loop started", slog.Int("fps", l.fps), slog.Bool("yawMode", l.yawMode.Load()))

	for {
		if l.coordinator.IsShuttingDown() {
			l.logger.Info("render loop stopped", slog.Uint64("frames", l.frames.Load()))
			return nil
		}

		l.pollEvents()
		if l.coordinator.IsShuttingDown() {
			continue
		}

		if err := l.frame(); err != nil {
			l.coordinator.RequestShutdown("render failure")
			return err
		}

		select {
		case <-ticker.C:
		case <-l.coordinator.Done():
		}
	}
}

func (l *Loop) frame() error {
	frame := l.buf

	if err := l.renderer.Draw(frame, l.state.Read(), l.yawMode.Load()); err != nil {
		return fmt.Errorf("drawing frame: %w", err)
	}
	if err := l.surface.Present(frame); err != nil {
		return fmt.Errorf("presenting frame: %w", err)
	}

	l.frames.Add(1)
	return nil
}

// pollEvents drains queued input without blocking.
func (l *Loop) pollEvents() {
	events := l.surface.Events()
	for {
		select {
		case ev := <-events:
			switch ev {
			case display.EventToggleYaw:
				enabled := !l.yawMode.Load()
				l.yawMode.Store(enabled)
				l.logger.Debug("yaw mode toggled", slog.Bool("yawMode", enabled))
			case display.EventQuit:
				l.coordinator.RequestShutdown("quit requested")
			}
		default:
			return
		}
	}
}

// YawMode reports whether yaw rotation is currently applied.
func (l *Loop) YawMode() bool {
	return l.yawMode.Load()
}

// Frames returns the number of frames presented so far.
func (l *Loop) Frames() uint64 {
	return l.frames.Load()
}
