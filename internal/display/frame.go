package display

import (
	"image"
	"image/draw"
	"sync"
)

// FrameSlot hands the latest frame from the render loop to a consumer running
// on another goroutine, such as a toolkit painter.
//
// Store copies the frame, so the caller may draw into its buffer again as
// soon as Store returns. Load returns an image the slot never writes again:
// once loaded, a frame is retired and the next Store fills a new one. A frame
// that was stored but never loaded is overwritten in place.
type FrameSlot struct {
	mu     sync.Mutex
	latest *image.RGBA
	loaded bool
}

// Store copies frame into the slot.
func (s *FrameSlot) Store(frame *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == nil || s.loaded || s.latest.Rect != frame.Rect {
		s.latest = image.NewRGBA(frame.Rect)
		s.loaded = false
	}
	draw.Draw(s.latest, s.latest.Rect, frame, frame.Rect.Min, draw.Src)
}

// Load returns the most recently stored frame, or nil before the first Store.
// The returned image must be treated as read-only.
func (s *FrameSlot) Load() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil {
		s.loaded = true
	}
	return s.latest
}
