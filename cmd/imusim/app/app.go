package app

import (
	"context"
	"log/slog"

	"github.com/roman-kulish/attitude-monitor/internal/sim"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	logger.Info("starting IMU simulator",
		slog.String("addr", config.Address),
		slog.Duration("interval", config.Interval),
		slog.Uint64("limit", config.Limit),
		slog.Bool("fragment", config.Fragment),
		slog.Float64("corruption", config.Corruption))

	return newStreamer(config, logger).Dial(ctx, config.Address)
}

func newStreamer(config *Config, logger *slog.Logger) *sim.Streamer {
	sourceOpts := []func(*sim.Source){
		sim.WithNoise(config.AccelNoise, config.GyroNoise),
	}
	streamerOpts := []func(*sim.Streamer){
		sim.WithInterval(config.Interval),
		sim.WithLimit(config.Limit),
		sim.WithFragmentation(config.Fragment),
		sim.WithCorruption(config.Corruption),
		sim.WithLogger(logger.With(slog.String("component", "streamer"))),
	}

	if config.Seed != 0 {
		sourceOpts = append(sourceOpts, sim.WithSeed(config.Seed))
		streamerOpts = append(streamerOpts, sim.WithSplitSeed(config.Seed))
	}

	streamerOpts = append(streamerOpts, sim.WithSource(sim.NewSource(sourceOpts...)))
	return sim.NewStreamer(streamerOpts...)
}

