package display

import (
	"image"
)

const (
	// EventToggleYaw switches yaw rotation and its overlay line on or off
	EventToggleYaw Event = iota + 1

	// EventQuit asks the application to stop
	EventQuit
)

// Event is an input action produced by a surface.
type Event int

func (e Event) String() string {
	switch e {
	case EventToggleYaw:
		return "toggle-yaw"
	case EventQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Surface is where rendered frames are shown.
type Surface interface {
	// Present shows frame. The surface does not keep a reference to frame
	// after Present returns, so the caller may draw into it again.
	Present(frame *image.RGBA) error

	// Events returns the input queue. Consumers poll it without blocking.
	Events() <-chan Event

	// Run blocks until the surface is closed. Surfaces backed by a UI toolkit
	// must be run on the main goroutine.
	Run() error

	// Close releases the surface and makes Run return. It is safe to call
	// Close multiple times.
	Close() error
}

// Enqueue adds ev to events, dropping it when the queue is full so input
// handling never blocks.
func Enqueue(events chan Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	default:
		return false
	}
}
