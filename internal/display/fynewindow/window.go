// Package fynewindow shows rendered frames in a Fyne desktop window. It is the
// only package linking the GL toolkit; everything else renders to
// display.Surface.
package fynewindow

import (
	"image"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"

	"github.com/roman-kulish/attitude-monitor/internal/display"
)

const queueSize = 16

var _ display.Surface = (*Window)(nil)

// Window is a display.Surface backed by a Fyne window. Escape and closing the
// window produce EventQuit; the Z key produces EventToggleYaw.
type Window struct {
	fyneApp fyne.App
	window  fyne.Window
	raster  *canvas.Raster

	// frames crosses from the render goroutine to the Fyne painter
	frames display.FrameSlot
	blank  *image.RGBA

	events    chan display.Event
	closeOnce sync.Once
}

// New creates the application window. Run must be called from the main
// goroutine.
func New(title string, width, height int) *Window {
	fyneApp := app.New()
	window := fyneApp.NewWindow(title)
	window.Resize(fyne.NewSize(float32(width), float32(height)))

	w := &Window{
		fyneApp: fyneApp,
		window:  window,
		blank:   image.NewRGBA(image.Rect(0, 0, width, height)),
		events:  make(chan display.Event, queueSize),
	}

	w.raster = canvas.NewRaster(w.paint)
	w.raster.ScaleMode = canvas.ImageScaleFastest

	window.SetContent(w.raster)
	window.Canvas().SetOnTypedKey(w.onTypedKey)
	window.SetCloseIntercept(func() {
		display.Enqueue(w.events, display.EventQuit)
	})

	return w
}

// paint runs on the Fyne painter. The frame it returns is retired from the
// slot, so the render loop never draws into it again.
func (w *Window) paint(int, int) image.Image {
	if frame := w.frames.Load(); frame != nil {
		return frame
	}
	return w.blank
}

func (w *Window) onTypedKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyEscape:
		display.Enqueue(w.events, display.EventQuit)
	case fyne.KeyZ:
		display.Enqueue(w.events, display.EventToggleYaw)
	}
}

func (w *Window) Present(frame *image.RGBA) error {
	w.frames.Store(frame)
	w.raster.Refresh()
	return nil
}

func (w *Window) Events() <-chan display.Event {
	return w.events
}

func (w *Window) Run() error {
	w.window.Show()
	w.fyneApp.Run()
	return nil
}

func (w *Window) Close() error {
	w.closeOnce.Do(func() {
		w.fyneApp.Quit()
	})
	return nil
}
