package app

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/attitude-monitor/internal/config"
	"github.com/roman-kulish/attitude-monitor/internal/sim"
)

const defaultAddress = "127.0.0.1:30000"

type Config struct {
	Address      string
	Interval     time.Duration
	Limit        uint64
	Fragment     bool
	Corruption   float64
	Seed         uint64
	AccelNoise   float64
	GyroNoise    float64
	LogLevel     slog.Level
	LogLevelName string
}

func NewConfig() *Config {
	return &Config{
		Address:      defaultAddress,
		Interval:     sim.DefaultInterval,
		LogLevelName: "info",
	}
}

func NewConfigFromCLI() (*Config, error) {
	return ParseArgs(flag.NewFlagSet(os.Args[0], flag.ContinueOnError), os.Args[1:])
}

// ParseArgs reads the command line flags in args into a Config.
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	fs.StringVar(&c.Address, "addr", defaultAddress, "Viewer address to stream to")
	fs.DurationVar(&c.Interval, "i", sim.DefaultInterval, "Time between records")
	fs.Uint64Var(&c.Limit, "n", 0, "Number of records to send, 0 streams until interrupted")
	fs.BoolVar(&c.Fragment, "fragment", false, "Split records across writes at random positions")
	fs.Float64Var(&c.Corruption, "corrupt", 0, "Probability of emitting a truncated record before each record [0, 1]")
	fs.Uint64Var(&c.Seed, "seed", 0, "Seed for noise and fragmentation, 0 picks a random seed")
	fs.Float64Var(&c.AccelNoise, "accel-noise", 0, "Accelerometer noise standard deviation in g")
	fs.Float64Var(&c.GyroNoise, "gyro-noise", 0, "Gyro noise standard deviation in deg/s")
	fs.StringVar(&c.LogLevelName, "l", "info", "Log level. [debug, info, warn, error]")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	switch {
	case c.Address == "":
		err = errors.New("address is required")
	case c.Interval <= 0:
		err = fmt.Errorf("invalid interval: %s", c.Interval)
	case c.Corruption < 0 || c.Corruption > 1:
		err = fmt.Errorf("invalid corruption probability: %v", c.Corruption)
	case c.AccelNoise < 0 || c.GyroNoise < 0:
		err = errors.New("noise must not be negative")
	}
	if err == nil {
		c.LogLevel, err = config.ParseLogLevel(c.LogLevelName)
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}
	return c, nil
}
