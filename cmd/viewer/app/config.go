package app

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/attitude-monitor/internal/config"
	"github.com/roman-kulish/attitude-monitor/internal/demux"
	"github.com/roman-kulish/attitude-monitor/internal/ingest"
	"github.com/roman-kulish/attitude-monitor/internal/render"
	"github.com/roman-kulish/attitude-monitor/internal/storage"
)

const (
	defaultHost   = "0.0.0.0"
	defaultPort   = 30000
	defaultTitle  = "Press Esc to quit, z toggles yaw mode"
	defaultWidth  = 960
	defaultHeight = 540
	storageDir    = "data"
)

var (
	ErrInvalidPort       = errors.New("invalid listener port")
	ErrInvalidFrameSize  = errors.New("invalid frame size")
	ErrInvalidFPS        = errors.New("invalid frame rate")
	ErrInvalidBufferSize = errors.New("invalid buffer size")
	ErrInvalidBatchSize  = errors.New("invalid batch size")
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Listener ListenerConfig `yaml:"listener"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Render   RenderConfig   `yaml:"render"`
	Storage  StorageConfig  `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// ListenerConfig is where the sensor connects to
type ListenerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// IngestConfig tunes the connection read loop
type IngestConfig struct {
	ReadTimeout          config.Duration `yaml:"readTimeout"`
	ReadBufferSize       int             `yaml:"readBufferSize"`
	MaxPending           int             `yaml:"maxPending"`
	ShutdownOnDisconnect *bool           `yaml:"shutdownOnDisconnect"`
	LogRecords           bool            `yaml:"logRecords"`
}

// RenderConfig represents the view settings
type RenderConfig struct {
	Title             string `yaml:"title"`
	Width             int    `yaml:"width"`
	Height            int    `yaml:"height"`
	FPS               int    `yaml:"fps"`
	YawMode           bool   `yaml:"yawMode"`
	Headless          bool   `yaml:"headless"`
	SnapshotDirectory string `yaml:"snapshotDirectory"`
	SnapshotEvery     int    `yaml:"snapshotEvery"`
}

// StorageConfig represents session recording settings
type StorageConfig struct {
	Enabled        bool            `yaml:"enabled"`
	DataDirectory  string          `yaml:"dataDirectory"`
	MaxBatchSize   int             `yaml:"maxBatchSize"`
	QueueSize      int             `yaml:"queueSize"`
	FlushInterval  config.Duration `yaml:"flushInterval"`
	SampleInterval config.Duration `yaml:"sampleInterval"`
}

// LoadConfig reads, defaults and validates the YAML configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig decodes YAML configuration, fills defaults and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	c.setDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Listener.Host == "" {
		c.Listener.Host = defaultHost
	}
	if c.Listener.Port == 0 {
		c.Listener.Port = defaultPort
	}

	if c.Ingest.ReadTimeout == 0 {
		c.Ingest.ReadTimeout = config.NewDuration(ingest.DefaultReadTimeout)
	}
	if c.Ingest.ReadBufferSize == 0 {
		c.Ingest.ReadBufferSize = ingest.DefaultReadBufferSize
	}
	if c.Ingest.MaxPending == 0 {
		c.Ingest.MaxPending = demux.DefaultMaxPending
	}
	if c.Ingest.ShutdownOnDisconnect == nil {
		enabled := true
		c.Ingest.ShutdownOnDisconnect = &enabled
	}

	if c.Render.Title == "" {
		c.Render.Title = defaultTitle
	}
	if c.Render.Width == 0 {
		c.Render.Width = defaultWidth
	}
	if c.Render.Height == 0 {
		c.Render.Height = defaultHeight
	}
	if c.Render.FPS == 0 {
		c.Render.FPS = render.DefaultFPS
	}

	if c.Storage.DataDirectory == "" {
		c.Storage.DataDirectory = storageDir
	}
	if c.Storage.MaxBatchSize == 0 {
		c.Storage.MaxBatchSize = storage.DefaultMaxBatchSize
	}
	if c.Storage.QueueSize == 0 {
		c.Storage.QueueSize = storage.DefaultQueueSize
	}
	if c.Storage.FlushInterval == 0 {
		c.Storage.FlushInterval = config.NewDuration(storage.DefaultFlushInterval)
	}
}

// Validate checks every configuration section.
func (c *Config) Validate() error {
	if _, err := config.ParseLogLevel(c.Settings.LogLevel); err != nil {
		return fmt.Errorf("settings: %w", err)
	}

	return errors.Join(
		c.Listener.Validate(),
		c.Ingest.Validate(),
		c.Render.Validate(),
		c.Storage.Validate(),
	)
}

func (c *ListenerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("listener: %w: %d", ErrInvalidPort, c.Port)
	}
	return nil
}

// Address returns the host:port to listen on.
func (c *ListenerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *IngestConfig) Validate() error {
	if err := c.ReadTimeout.Validate(); err != nil {
		return fmt.Errorf("ingest: readTimeout: %w", err)
	}
	if c.ReadBufferSize < 0 {
		return fmt.Errorf("ingest: readBufferSize: %w: %d", ErrInvalidBufferSize, c.ReadBufferSize)
	}
	if c.MaxPending < 0 {
		return fmt.Errorf("ingest: maxPending: %w: %d", ErrInvalidBufferSize, c.MaxPending)
	}
	return nil
}

func (c *RenderConfig) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("render: %w: %dx%d", ErrInvalidFrameSize, c.Width, c.Height)
	}
	if c.FPS < 0 || c.FPS > 1000 {
		return fmt.Errorf("render: %w: %d", ErrInvalidFPS, c.FPS)
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("render: snapshotEvery must not be negative: %d", c.SnapshotEvery)
	}
	if c.SnapshotEvery > 0 && c.SnapshotDirectory == "" {
		return errors.New("render: snapshotEvery requires snapshotDirectory")
	}
	return nil
}

func (c *StorageConfig) Validate() error {
	if c.MaxBatchSize < 0 || c.MaxBatchSize > storage.MaxBatchSize {
		return fmt.Errorf("storage: %w: %d (max %d)", ErrInvalidBatchSize, c.MaxBatchSize, storage.MaxBatchSize)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("storage: queueSize: %w: %d", ErrInvalidBufferSize, c.QueueSize)
	}
	if err := c.FlushInterval.Validate(); err != nil {
		return fmt.Errorf("storage: flushInterval: %w", err)
	}
	if err := c.SampleInterval.Validate(); err != nil {
		return fmt.Errorf("storage: sampleInterval: %w", err)
	}
	return nil
}
