package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/attitude-monitor/cmd/viewer/app"
	"github.com/roman-kulish/attitude-monitor/internal/config"
	"github.com/roman-kulish/attitude-monitor/internal/display"
	"github.com/roman-kulish/attitude-monitor/internal/display/fynewindow"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath string
	flag.StringVar(&configPath, "c", "", "Path to the configuration file (defaults are used when empty)")
	flag.Parse()

	var cfg *app.Config
	var err error
	if configPath == "" {
		cfg, err = app.ParseConfig(nil)
	} else {
		cfg, err = app.LoadConfig(configPath)
	}
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	level, err := config.ParseLogLevel(cfg.Settings.LogLevel)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, cfg, logger, newWindow); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}

func newWindow(title string, width, height int) display.Surface {
	return fynewindow.New(title, width, height)
}
