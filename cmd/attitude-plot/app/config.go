package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

type Config struct {
	DBPath       string
	SessionID    uuid.UUID
	ListSessions bool
	OutputFile   string
	Format       ImageFormat
	MinTimestamp *time.Time
	MaxTimestamp *time.Time
	Width        int
	Height       int
	TimeZone     *time.Location
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Format:   ImagePNG,
		Width:    defaultChartWidth,
		Height:   defaultChartHeight,
		TimeZone: time.Local,
	}
}

func NewConfigFromCLI() (*Config, error) {
	return ParseArgs(flag.NewFlagSet(os.Args[0], flag.ContinueOnError), os.Args[1:])
}

// ParseArgs reads the command line flags in args into a Config.
func ParseArgs(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var sessionID, imageFormat, from, to, timeZone string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&sessionID, "s", "", "Session ID")
	fs.BoolVar(&c.ListSessions, "list", false, "List the sessions stored in the database and exit")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, without extension")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&from, "from", "", "Plot records received at or after this RFC 3339 time")
	fs.StringVar(&to, "to", "", "Plot records received at or before this RFC 3339 time")
	fs.IntVar(&c.Width, "width", defaultChartWidth, "Chart width in pixels")
	fs.IntVar(&c.Height, "height", defaultChartHeight, "Chart height in pixels")
	fs.StringVar(&timeZone, "tz", "", "Time zone for the time scale, e.g. Europe/London (default local)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	var err error
	switch {
	case c.DBPath == "":
		err = errors.New("db path is required")
	case c.ListSessions:
		return c, nil
	case sessionID == "":
		err = errors.New("session id is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.Width <= 0 || c.Height <= 0:
		err = fmt.Errorf("invalid chart size %dx%d", c.Width, c.Height)
	}
	if err == nil {
		if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			err = fmt.Errorf("invalid image format: %s", imageFormat)
		}
	}
	if err == nil {
		if c.SessionID, err = uuid.Parse(sessionID); err != nil {
			err = fmt.Errorf("invalid session id: %w", err)
		}
	}
	if err == nil {
		c.MinTimestamp, err = parseTimestamp("from", from)
	}
	if err == nil {
		c.MaxTimestamp, err = parseTimestamp("to", to)
	}
	if err == nil && timeZone != "" {
		if c.TimeZone, err = time.LoadLocation(timeZone); err != nil {
			err = fmt.Errorf("invalid time zone: %w", err)
		}
	}

	if err != nil {
		fs.Usage()
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}

func parseTimestamp(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("invalid -%s time: %w", name, err)
	}
	return &t, nil
}
