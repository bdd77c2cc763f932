package app

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/attitude-monitor/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.ListSessions {
		return listSessions(ctx, store, os.Stdout)
	}
	return plotSession(ctx, store, config, logger)
}

func listSessions(ctx context.Context, store *storage.SqliteStore, w io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}

	for _, s := range sessions {
		duration := "open"
		if s.EndTime != nil {
			duration = s.Duration().Round(time.Millisecond).String()
		}
		if _, err = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.StartTime.Local().Format(time.DateTime), duration, s.Peer); err != nil {
			return err
		}
	}
	return nil
}

func readSeries(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) (*storage.Session, *AttitudeSeries, error) {
	var opts []storage.ReaderOption
	var filters []any
	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(config.MinTimestamp.UTC(), config.MaxTimestamp.UTC()))

		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(config.MinTimestamp.UTC()))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(config.MaxTimestamp.UTC()))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))
	}

	logger.Info("reader configuration", filters...)

	reader, err := store.ReadTelemetry(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, nil, err
	}
	defer reader.Close()

	series := NewAttitudeSeries()
	for reader.Next(ctx) {
		series.Update(reader.Current())
	}
	if err = reader.Error(); err != nil {
		return nil, nil, err
	}

	logger.Info("finished reading telemetry",
		slog.Group("stats",
			slog.String("records", humanize.Comma(int64(series.Count))),
			slog.String("minTimestamp", series.TimestampStart.Local().Format(time.DateTime)),
			slog.String("maxTimestamp", series.TimestampEnd.Local().Format(time.DateTime)),
			slog.String("roll", formatBounds(series, AxisRoll)),
			slog.String("pitch", formatBounds(series, AxisPitch)),
			slog.String("yaw", formatBounds(series, AxisYaw)),
		))

	return reader.Session(), series, nil
}

func plotSession(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	session, series, err := readSeries(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := NewChartRenderer(RenderConfig{
		Width:    config.Width,
		Height:   config.Height,
		Location: config.TimeZone,
	})
	if err != nil {
		return fmt.Errorf("creating chart renderer: %w", err)
	}

	logger.Info("rendering chart",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", config.Width),
			slog.Int("height", config.Height),
		))

	img, err := renderer.Render(session, series)
	if err != nil {
		return fmt.Errorf("rendering chart: %w", err)
	}

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}

	if err = encodeImage(out, img, config.Format); err != nil {
		_ = out.Close()
		return fmt.Errorf("encoding image: %w", err)
	}
	return out.Close()
}

func encodeImage(w io.Writer, img image.Image, format ImageFormat) error {
	switch format {
	case ImageJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{
			Quality: 98,
		})
	default:
		return png.Encode(w, img)
	}
}

func formatBounds(series *AttitudeSeries, axis Axis) string {
	if len(series.Samples[axis]) == 0 {
		return "n/a"
	}
	b := series.Bounds[axis]
	return fmt.Sprintf("%0.2f..%0.2f", b.Min, b.Max)
}
