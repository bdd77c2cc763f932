package display

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func solidFrame(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestHeadless_PresentKeepsCopy(t *testing.T) {
	h := NewHeadless()

	if h.LastFrame() != nil {
		t.Fatal("Expected no frame before the first present")
	}

	frame := solidFrame(color.RGBA{R: 255, A: 255})
	if err := h.Present(frame); err != nil {
		t.Fatalf("Failed to present: %v", err)
	}

	frame.Pix[0] = 0 // caller reuses its buffer

	last := h.LastFrame()
	if last == nil {
		t.Fatal("Expected a frame after present")
	}
	if last.Pix[0] != 255 {
		t.Errorf("Expected stored frame to be independent of the caller buffer")
	}
	if n := h.Presented(); n != 1 {
		t.Errorf("Expected 1 presented frame, got %d", n)
	}
}

func TestHeadless_Snapshots(t *testing.T) {
	dir := t.TempDir()
	h := NewHeadless(WithSnapshots(dir, 2))

	for i := 0; i < 5; i++ {
		if err := h.Present(solidFrame(color.RGBA{B: 255, A: 255})); err != nil {
			t.Fatalf("Failed to present frame %d: %v", i, err)
		}
	}

	matches, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		t.Fatalf("Failed to list snapshots: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(matches))
	}
	if _, err = os.Stat(filepath.Join(dir, "frame_000004.png")); err != nil {
		t.Errorf("Expected snapshot of frame 4: %v", err)
	}
}

func TestHeadless_EventsAndClose(t *testing.T) {
	h := NewHeadless()

	if !h.Send(EventToggleYaw) {
		t.Fatal("Expected event to be queued")
	}

	select {
	case ev := <-h.Events():
		if ev != EventToggleYaw {
			t.Errorf("Expected %s, got %s", EventToggleYaw, ev)
		}
	default:
		t.Fatal("Expected a queued event")
	}

	for i := 0; i < headlessQueueSize; i++ {
		h.Send(EventQuit)
	}
	if h.Send(EventQuit) {
		t.Error("Expected a full queue to drop the event")
	}

	done := make(chan error, 1)
	go func() { done <- h.Run() }()

	_ = h.Close()
	_ = h.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Unexpected error from Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Close")
	}
}
