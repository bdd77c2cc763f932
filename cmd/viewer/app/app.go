package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roman-kulish/attitude-monitor/internal/display"
	"github.com/roman-kulish/attitude-monitor/internal/ingest"
	"github.com/roman-kulish/attitude-monitor/internal/render"
	"github.com/roman-kulish/attitude-monitor/internal/shutdown"
	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

// ErrNoWindow is returned when a windowed run has no window to open.
var ErrNoWindow = errors.New("no window support, set render.headless")

// WindowFactory opens the desktop window frames are shown in.
type WindowFactory func(title string, width, height int) display.Surface

// Run starts the viewer and blocks until it shuts down. It must be called
// from the main goroutine: the display event loop runs on it while ingestion
// and rendering run on their own goroutines.
//
// Listening and display setup failures are returned. A sensor disconnect or
// a quit request is a normal exit.
func Run(ctx context.Context, config *Config, logger *slog.Logger, newWindow WindowFactory) error {
	if !config.Render.Headless && newWindow == nil {
		return ErrNoWindow
	}

	coordinator := shutdown.New(shutdown.WithLogger(logger))
	coordinator.Watch(ctx)

	state := telemetry.NewState()

	renderer, err := render.NewRenderer(render.RenderConfig{
		Width:  config.Render.Width,
		Height: config.Render.Height,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	rec, err := newRecording(state, config, logger)
	if err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	defer func() {
		if cErr := rec.Close(context.WithoutCancel(ctx)); cErr != nil {
			logger.Error(fmt.Sprintf("closing recording: %s", cErr.Error()))
		}
	}()

	server := ingest.NewServer(state, coordinator,
		ingest.WithLogger(logger),
		ingest.WithReadTimeout(config.Ingest.ReadTimeout.Duration()),
		ingest.WithReadBufferSize(config.Ingest.ReadBufferSize),
		ingest.WithMaxPending(config.Ingest.MaxPending),
		ingest.WithShutdownOnDisconnect(*config.Ingest.ShutdownOnDisconnect),
		ingest.WithOnConnect(rec.onConnect(ctx)),
		ingest.WithSink(sink(rec, config.Ingest.LogRecords, logger)),
	)

	ln, err := ingest.Listen(ctx, config.Listener.Address())
	if err != nil {
		return err
	}

	surface := createSurface(&config.Render, newWindow, logger)
	loop := render.NewLoop(state, coordinator, surface, renderer,
		render.WithFPS(config.Render.FPS),
		render.WithYawMode(config.Render.YawMode),
		render.WithLogger(logger),
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := server.ServeListener(ln); err != nil {
			logger.Error(err.Error())
			coordinator.RequestShutdown("ingestion failed")
		}
	}()

	go func() {
		defer wg.Done()
		if err := loop.Run(); err != nil {
			logger.Error(err.Error())
		}
	}()

	err = surface.Run()
	coordinator.RequestShutdown("display closed")
	wg.Wait()

	logger.Info("viewer stopped",
		slog.String("reason", coordinator.Reason()),
		slog.Uint64("frames", loop.Frames()),
		slog.Uint64("records", server.Stats().Records))

	if err != nil {
		return fmt.Errorf("running display: %w", err)
	}
	return nil
}

func createSurface(config *RenderConfig, newWindow WindowFactory, logger *slog.Logger) display.Surface {
	if !config.Headless {
		return newWindow(config.Title, config.Width, config.Height)
	}

	options := []func(*display.Headless){display.WithHeadlessLogger(logger)}
	if config.SnapshotEvery > 0 {
		options = append(options, display.WithSnapshots(config.SnapshotDirectory, config.SnapshotEvery))
	}
	return display.NewHeadless(options...)
}

func sink(rec *recording, logRecords bool, logger *slog.Logger) func(telemetry.Record) {
	return func(r telemetry.Record) {
		if logRecords {
			logger.Debug("record",
				slog.Uint64("seq", r.Seq),
				slog.Float64("roll", r.Roll()),
				slog.Float64("pitch", r.Pitch()),
				slog.Float64("yaw", r.Yaw()))
		}
		rec.record(r)
	}
}
