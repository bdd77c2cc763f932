package config

import (
	"fmt"
	"log/slog"
	"strings"
)

// ParseLogLevel converts a level name (debug, info, warn, error) into a slog.Level.
// An empty name is info.
func ParseLogLevel(name string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(name) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': %w", name, err)
	}
	return level, nil
}
