package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/roman-kulish/attitude-monitor/internal/render"
	"github.com/roman-kulish/attitude-monitor/internal/storage"
)

const (
	dpi            = 72.0
	fontSize       = 12.0
	tickMarkLength = 5
	panelGap       = 10
	valueStep      = 10.0 // Degrees between value range boundaries

	defaultChartWidth  = 1600
	defaultChartHeight = 900

	// Default border sizes in pixels
	defaultTopBorder    = 30
	defaultLeftBorder   = 60
	defaultBottomBorder = 50
	defaultRightBorder  = 20

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

var ErrNoData = errors.New("no telemetry to plot")

var (
	frameColor = color.RGBA{R: 160, G: 160, B: 160, A: 255}
	zeroColor  = color.RGBA{R: 210, G: 210, B: 210, A: 255}
	axisColors = [len(axes)]color.RGBA{
		AxisRoll:  {R: 200, G: 30, B: 30, A: 255},
		AxisPitch: {R: 20, G: 140, B: 20, A: 255},
		AxisYaw:   {R: 30, G: 60, B: 200, A: 255},
	}
)

// BorderConfig defines the sizes of white space around the panels
type BorderConfig struct {
	Top    int // Space for the title
	Left   int // Space for value labels
	Bottom int // Space for time scale and information bar
	Right  int // Right padding
}

// RenderConfig holds all configuration options for the chart
type RenderConfig struct {
	Width, Height int // Image size in pixels

	// Time display configuration
	TimeFormat     string         // Format string for time scale labels
	DatetimeFormat string         // Format string for the information bar
	Location       *time.Location // Timezone for time display

	FontSize     float64 // Font size in points
	BorderConfig BorderConfig
}

// ChartRenderer draws roll, pitch and yaw of a recorded session as three
// stacked line charts sharing the time axis.
type ChartRenderer struct {
	config RenderConfig
	font   *truetype.Font
}

func NewChartRenderer(config RenderConfig) (*ChartRenderer, error) {
	if config.Width == 0 {
		config.Width = defaultChartWidth
	}
	if config.Height == 0 {
		config.Height = defaultChartHeight
	}
	if config.TimeFormat == "" {
		config.TimeFormat = defaultTimeFormat
	}
	if config.DatetimeFormat == "" {
		config.DatetimeFormat = defaultDatetimeFormat
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.FontSize == 0 {
		config.FontSize = fontSize
	}
	if config.BorderConfig.Top == 0 {
		config.BorderConfig.Top = defaultTopBorder
	}
	if config.BorderConfig.Left == 0 {
		config.BorderConfig.Left = defaultLeftBorder
	}
	if config.BorderConfig.Bottom == 0 {
		config.BorderConfig.Bottom = defaultBottomBorder
	}
	if config.BorderConfig.Right == 0 {
		config.BorderConfig.Right = defaultRightBorder
	}

	b := config.BorderConfig
	if config.Width-b.Left-b.Right <= 0 || config.Height-b.Top-b.Bottom <= 3*panelGap {
		return nil, fmt.Errorf("chart size %dx%d is too small", config.Width, config.Height)
	}

	parsedFont, err := render.ParseFont()
	if err != nil {
		return nil, err
	}

	return &ChartRenderer{config: config, font: parsedFont}, nil
}

// Render creates an image of the series with scales and an information bar.
func (r *ChartRenderer) Render(session *storage.Session, series *AttitudeSeries) (*image.RGBA, error) {
	if series == nil || series.Empty() {
		return nil, ErrNoData
	}

	img := image.NewRGBA(image.Rect(0, 0, r.config.Width, r.config.Height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	ann := newAnnotator(r.font, r.config)
	defer ann.Close()

	ann.context.SetClip(img.Bounds())
	ann.context.SetDst(img)

	for _, axis := range axes {
		area := r.panelArea(axis)
		lo, hi := series.Bounds[axis].Range(valueStep)
		if len(series.Samples[axis]) == 0 {
			lo, hi = -valueStep, valueStep
		}

		drawFrame(img, area)
		if lo < 0 && hi > 0 {
			drawHLine(img, area.Min.X+1, area.Max.X-1, valueY(area, lo, hi, 0), zeroColor)
		}
		r.plot(img, area, series, axis, lo, hi)

		if err := ann.drawValueScale(img, area, axis, lo, hi); err != nil {
			return nil, fmt.Errorf("drawing %s scale: %w", axis, err)
		}
	}

	if err := ann.drawTimeScale(img, r.plotArea(), series); err != nil {
		return nil, fmt.Errorf("drawing time scale: %w", err)
	}
	if err := ann.drawInfoBar(img, session, series); err != nil {
		return nil, fmt.Errorf("drawing info bar: %w", err)
	}

	return img, nil
}

// plotArea is the image area inside the borders shared by all panels.
func (r *ChartRenderer) plotArea() image.Rectangle {
	b := r.config.BorderConfig
	return image.Rect(b.Left, b.Top, r.config.Width-b.Right, r.config.Height-b.Bottom)
}

func (r *ChartRenderer) panelArea(axis Axis) image.Rectangle {
	area := r.plotArea()
	height := (area.Dy() - (len(axes)-1)*panelGap) / len(axes)
	top := area.Min.Y + int(axis)*(height+panelGap)
	return image.Rect(area.Min.X, top, area.Max.X, top+height)
}

// plot draws one axis as a polyline. Samples landing on the same pixel column
// are collapsed into a vertical segment spanning their extremes.
func (r *ChartRenderer) plot(img *image.RGBA, area image.Rectangle, series *AttitudeSeries, axis Axis, lo, hi float64) {
	samples := series.Samples[axis]
	if len(samples) == 0 {
		return
	}

	c := axisColors[axis]
	duration := series.Duration()
	width := area.Dx() - 1

	columnX := func(ts time.Time) int {
		if duration <= 0 {
			return area.Min.X
		}
		return area.Min.X + int(float64(width)*float64(ts.Sub(series.TimestampStart))/float64(duration))
	}

	prevX, prevY := -1, 0
	for _, sample := range samples {
		x := columnX(sample.Timestamp)
		y := valueY(area, lo, hi, sample.Value)
		if prevX >= 0 {
			drawLine(img, prevX, prevY, x, y, c)
		} else {
			img.SetRGBA(x, y, c)
		}
		prevX, prevY = x, y
	}
}

func valueY(area image.Rectangle, lo, hi, v float64) int {
	ratio := (v - lo) / (hi - lo)
	return area.Max.Y - 1 - int(ratio*float64(area.Dy()-1))
}

func drawFrame(img *image.RGBA, area image.Rectangle) {
	drawHLine(img, area.Min.X, area.Max.X-1, area.Min.Y, frameColor)
	drawHLine(img, area.Min.X, area.Max.X-1, area.Max.Y-1, frameColor)
	drawVLine(img, area.Min.X, area.Min.Y, area.Max.Y-1, frameColor)
	drawVLine(img, area.Max.X-1, area.Min.Y, area.Max.Y-1, frameColor)
}

func drawHLine(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func drawVLine(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

// drawLine connects two points, walking one pixel column at a time.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	if x0 == x1 {
		drawVLine(img, x0, y0, y1, c)
		return
	}
	if x0 > x1 {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}

	prevY := y0
	for x := x0; x <= x1; x++ {
		y := y0 + (y1-y0)*(x-x0)/(x1-x0)
		drawVLine(img, x, prevY, y, c)
		prevY = y
	}
}

// Internal annotator implementation
type annotator struct {
	context  *freetype.Context
	config   RenderConfig
	fontFace font.Face
}

func newAnnotator(parsedFont *truetype.Font, config RenderConfig) *annotator {
	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		config:  config,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    config.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}
}

func (a *annotator) Close() error {
	if a.fontFace != nil {
		return a.fontFace.Close()
	}
	return nil
}

func (a *annotator) drawValueScale(img *image.RGBA, area image.Rectangle, axis Axis, lo, hi float64) error {
	metrics := a.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	values := []float64{hi, lo}
	if lo < 0 && hi > 0 {
		values = append(values, 0)
	}

	for _, v := range values {
		y := valueY(area, lo, hi, v)
		for x := area.Min.X - tickMarkLength; x < area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := fmt.Sprintf("%.0f°", v)
		width := font.MeasureString(a.fontFace, label).Round()
		textY := y + fontHeight/2 - metrics.Descent.Round()
		textY = min(max(textY, area.Min.Y+fontHeight-metrics.Descent.Round()), area.Max.Y)

		pt := freetype.Pt(area.Min.X-tickMarkLength-3-width, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing value label: %w", err)
		}
	}

	a.context.SetSrc(image.NewUniform(axisColors[axis]))
	defer a.context.SetSrc(image.Black)

	pt := freetype.Pt(area.Min.X+5, area.Min.Y+3+metrics.Ascent.Round())
	if _, err := a.context.DrawString(axis.String(), pt); err != nil {
		return fmt.Errorf("drawing axis name: %w", err)
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, area image.Rectangle, series *AttitudeSeries) error {
	duration := series.Duration()
	if duration <= 0 {
		return nil
	}
	timeStep := calculateNiceTimeStep(duration)

	metrics := a.fontFace.Metrics()
	textY := area.Max.Y + tickMarkLength + 2 + metrics.Ascent.Round()

	first := series.TimestampStart.Truncate(timeStep)
	if first.Before(series.TimestampStart) {
		first = first.Add(timeStep)
	}

	width := area.Dx() - 1
	for ts := first; !ts.After(series.TimestampEnd); ts = ts.Add(timeStep) {
		x := area.Min.X + int(float64(width)*float64(ts.Sub(series.TimestampStart))/float64(duration))

		for y := area.Max.Y; y < area.Max.Y+tickMarkLength; y++ {
			img.Set(x, y, color.Black)
		}

		label := ts.In(a.config.Location).Format(a.config.TimeFormat)
		labelWidth := font.MeasureString(a.fontFace, label).Round()
		pt := freetype.Pt(x-labelWidth/2, textY)
		if _, err := a.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, session *storage.Session, series *AttitudeSeries) error {
	var sb strings.Builder

	if session != nil {
		sb.WriteString(fmt.Sprintf("Session: %s; Peer: %s; ", session.ID, session.Peer))
	}
	sb.WriteString(fmt.Sprintf("Records: %s; ", humanize.Comma(int64(series.Count))))
	sb.WriteString(fmt.Sprintf("Time: %s - %s (%s)",
		series.TimestampStart.In(a.config.Location).Format(a.config.DatetimeFormat),
		series.TimestampEnd.In(a.config.Location).Format(a.config.DatetimeFormat),
		series.Duration().Round(time.Millisecond)))

	metrics := a.fontFace.Metrics()
	textY := img.Bounds().Max.Y - 5 - metrics.Descent.Round()

	pt := freetype.Pt(a.config.BorderConfig.Left, textY)
	if _, err := a.context.DrawString(sb.String(), pt); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

func calculateNiceTimeStep(duration time.Duration) time.Duration {
	seconds := duration.Seconds()
	roughStep := seconds / 8 // Aim for about 8 time labels

	// Nice time intervals in seconds
	niceIntervals := []float64{
		1,    // 1 second
		2,    // 2 seconds
		5,    // 5 seconds
		10,   // 10 seconds
		15,   // 15 seconds
		30,   // 30 seconds
		60,   // 1 minute
		300,  // 5 minutes
		600,  // 10 minutes
		900,  // 15 minutes
		1800, // 30 minutes
		3600, // 1 hour
	}

	for _, interval := range niceIntervals {
		if roughStep <= interval {
			return time.Duration(interval) * time.Second
		}
	}

	return time.Hour * 2
}
