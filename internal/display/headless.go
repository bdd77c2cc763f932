package display

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const headlessQueueSize = 16

// WithSnapshots writes every n-th presented frame as a PNG file into dir
func WithSnapshots(dir string, every int) func(h *Headless) {
	return func(h *Headless) {
		h.snapshotDir = dir
		h.snapshotEvery = every
	}
}

// WithHeadlessLogger sets the logger for the headless surface
func WithHeadlessLogger(logger *slog.Logger) func(h *Headless) {
	return func(h *Headless) {
		h.logger = logger.With(slog.String("component", "display"))
	}
}

// Headless is a Surface without a window. It keeps the last frame and can
// dump periodic snapshots to disk.
type Headless struct {
	events chan Event
	closed chan struct{}
	once   sync.Once

	snapshotDir   string
	snapshotEvery int

	last      FrameSlot
	presented atomic.Uint64

	logger *slog.Logger
}

// NewHeadless creates a Headless surface.
func NewHeadless(options ...func(h *Headless)) *Headless {
	h := Headless{
		events: make(chan Event, headlessQueueSize),
		closed: make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&h)
	}

	return &h
}

func (h *Headless) Present(frame *image.RGBA) error {
	n := h.presented.Add(1)

	h.last.Store(frame)

	if h.snapshotDir == "" || h.snapshotEvery <= 0 || n%uint64(h.snapshotEvery) != 0 {
		return nil
	}

	path := filepath.Join(h.snapshotDir, fmt.Sprintf("frame_%06d.png", n))
	if err := writePNG(path, frame); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	h.logger.Debug("snapshot written", slog.String("path", path))
	return nil
}

func (h *Headless) Events() <-chan Event {
	return h.events
}

// Send queues an input event as if it came from a user. It reports whether
// the event was queued.
func (h *Headless) Send(ev Event) bool {
	return Enqueue(h.events, ev)
}

func (h *Headless) Run() error {
	<-h.closed
	return nil
}

func (h *Headless) Close() error {
	h.once.Do(func() {
		close(h.closed)
	})
	return nil
}

// Presented returns the number of frames presented so far.
func (h *Headless) Presented() uint64 {
	return h.presented.Load()
}

// LastFrame returns a copy of the most recently presented frame, or nil.
func (h *Headless) LastFrame() *image.RGBA {
	last := h.last.Load()
	if last == nil {
		return nil
	}

	frame := image.NewRGBA(last.Bounds())
	copy(frame.Pix, last.Pix)
	return frame
}

func writePNG(path string, img image.Image) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return png.Encode(out, img)
}
