package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"slices"

	"github.com/golang/freetype"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const (
	dpi         = 72.0
	lineSpacing = 1.2
	textMargin  = 10

	defaultWidth          = 960
	defaultHeight         = 540
	defaultFieldOfView    = 45.0
	defaultCameraDistance = 7.0
	defaultFontSize       = 18.0
)

// RenderConfig holds the scene and overlay options
type RenderConfig struct {
	Width  int // Frame width in pixels
	Height int // Frame height in pixels

	FieldOfView    float64 // Vertical field of view in degrees
	CameraDistance float64 // Distance from the camera to the model origin

	FontSize   float64     // Overlay font size in points
	Background color.Color // Clear colour
	Foreground color.Color // Overlay text colour
}

// Renderer draws the board model and the orientation overlay into RGBA
// frames. It is not safe for concurrent use.
type Renderer struct {
	config RenderConfig
	model  []Face

	rasterizer *vector.Rasterizer
	context    *freetype.Context
	background *image.Uniform

	faces []projectedFace
}

type projectedFace struct {
	points [4][2]float32
	depth  float64
	color  color.RGBA
}

// NewRenderer creates a Renderer, filling zero config values with defaults.
func NewRenderer(config RenderConfig) (*Renderer, error) {
	if config.Width == 0 {
		config.Width = defaultWidth
	}
	if config.Height == 0 {
		config.Height = defaultHeight
	}
	if config.Width < 0 || config.Height < 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", config.Width, config.Height)
	}
	if config.FieldOfView == 0 {
		config.FieldOfView = defaultFieldOfView
	}
	if config.CameraDistance == 0 {
		config.CameraDistance = defaultCameraDistance
	}
	if config.FontSize == 0 {
		config.FontSize = defaultFontSize
	}
	if config.Background == nil {
		config.Background = color.Black
	}
	if config.Foreground == nil {
		config.Foreground = color.White
	}

	parsedFont, err := ParseFont()
	if err != nil {
		return nil, err
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(config.FontSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.NewUniform(config.Foreground))

	model := Slab()

	return &Renderer{
		config:     config,
		model:      model,
		rasterizer: vector.NewRasterizer(config.Width, config.Height),
		context:    ctx,
		background: image.NewUniform(config.Background),
		faces:      make([]projectedFace, 0, len(model)),
	}, nil
}

// Bounds returns the frame rectangle this renderer draws into.
func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.config.Width, r.config.Height)
}

// NewFrame allocates a frame of the configured size.
func (r *Renderer) NewFrame() *image.RGBA {
	return image.NewRGBA(r.Bounds())
}

// Draw renders the model rotated to o plus the overlay into dst.
func (r *Renderer) Draw(dst *image.RGBA, o telemetry.Orientation, yawMode bool) error {
	if dst.Bounds() != r.Bounds() {
		return fmt.Errorf("frame bounds %v do not match renderer bounds %v", dst.Bounds(), r.Bounds())
	}

	draw.Draw(dst, dst.Bounds(), r.background, image.Point{}, draw.Src)

	r.project(Transform(o, yawMode))
	for _, f := range r.faces {
		r.fill(dst, f)
	}

	if err := r.drawOverlay(dst, OverlayLines(o, yawMode)); err != nil {
		return fmt.Errorf("drawing overlay: %w", err)
	}

	return nil
}

// project rotates and projects the model, keeping front-facing faces sorted
// back to front.
func (r *Renderer) project(m Mat3) {
	r.faces = r.faces[:0]

	w, h := float64(r.config.Width), float64(r.config.Height)
	f := 1 / math.Tan(r.config.FieldOfView*math.Pi/360)
	aspect := w / h

	for _, face := range r.model {
		var eye [4]Vec3
		var pf projectedFace

		for i, v := range face.Vertices {
			p := m.Apply(v)
			p.Z -= r.config.CameraDistance
			eye[i] = p
			pf.depth += p.Z / 4

			// perspective divide, then NDC to pixels with Y pointing down
			ndcX := f / aspect * p.X / -p.Z
			ndcY := f * p.Y / -p.Z
			sx := (ndcX + 1) / 2 * w
			sy := (1 - ndcY) / 2 * h
			pf.points[i] = [2]float32{float32(sx), float32(sy)}
		}

		if !facesCamera(eye) {
			continue
		}

		pf.color = face.Color
		r.faces = append(r.faces, pf)
	}

	slices.SortFunc(r.faces, func(a, b projectedFace) int {
		switch {
		case a.depth < b.depth:
			return -1
		case a.depth > b.depth:
			return 1
		default:
			return 0
		}
	})
}

// facesCamera reports whether the outward normal of a counter-clockwise quad
// points towards the camera at the eye-space origin.
func facesCamera(v [4]Vec3) bool {
	ax, ay, az := v[1].X-v[0].X, v[1].Y-v[0].Y, v[1].Z-v[0].Z
	bx, by, bz := v[2].X-v[0].X, v[2].Y-v[0].Y, v[2].Z-v[0].Z
	nx := ay*bz - az*by
	ny := az*bx - ax*bz
	nz := ax*by - ay*bx

	return nx*v[0].X+ny*v[0].Y+nz*v[0].Z < 0
}

func (r *Renderer) fill(dst *image.RGBA, f projectedFace) {
	r.rasterizer.Reset(r.config.Width, r.config.Height)
	r.rasterizer.DrawOp = draw.Over

	r.rasterizer.MoveTo(f.points[0][0], f.points[0][1])
	for _, p := range f.points[1:] {
		r.rasterizer.LineTo(p[0], p[1])
	}
	r.rasterizer.ClosePath()

	r.rasterizer.Draw(dst, dst.Bounds(), image.NewUniform(f.color), image.Point{})
}

// drawOverlay writes lines in the bottom-left corner, last line lowest.
func (r *Renderer) drawOverlay(dst *image.RGBA, lines []string) error {
	r.context.SetClip(dst.Bounds())
	r.context.SetDst(dst)

	lineHeight := r.context.PointToFixed(r.config.FontSize * lineSpacing)
	pt := freetype.Pt(textMargin, r.config.Height-textMargin)
	pt.Y -= lineHeight * fixed.Int26_6(len(lines)-1)

	for _, line := range lines {
		if _, err := r.context.DrawString(line, pt); err != nil {
			return err
		}
		pt.Y += lineHeight
	}

	return nil
}
