package render

import (
	"image/color"
	"math"
)

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X, Y, Z float64
}

// Mat3 is a row-major 3x3 rotation matrix.
type Mat3 [3][3]float64

// Identity is the rotation that leaves every vertex in place.
var Identity = Mat3{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

// Mul returns m·n.
func (m Mat3) Mul(n Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m[i][0]*n[0][j] + m[i][1]*n[1][j] + m[i][2]*n[2][j]
		}
	}
	return out
}

// Apply returns m·v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// RotateX is a counter-clockwise rotation about the X axis, in degrees.
func RotateX(deg float64) Mat3 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Mat3{
		{1, 0, 0},
		{0, c, -s},
		{0, s, c},
	}
}

// RotateY is a counter-clockwise rotation about the Y axis, in degrees.
func RotateY(deg float64) Mat3 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Mat3{
		{c, 0, s},
		{0, 1, 0},
		{-s, 0, c},
	}
}

// RotateZ is a counter-clockwise rotation about the Z axis, in degrees.
func RotateZ(deg float64) Mat3 {
	s, c := math.Sincos(deg * math.Pi / 180)
	return Mat3{
		{c, -s, 0},
		{s, c, 0},
		{0, 0, 1},
	}
}

// Face is a planar quad of the model with its fill colour.
type Face struct {
	Vertices [4]Vec3
	Color    color.RGBA
}

// Slab returns the board model: a flat box 2 wide, 0.4 tall and 2 deep,
// centred on the origin, with one colour per face.
func Slab() []Face {
	const (
		hx = 1.0
		hy = 0.2
		hz = 1.0
	)

	return []Face{
		{ // top
			Vertices: [4]Vec3{{hx, hy, -hz}, {-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}},
			Color:    color.RGBA{G: 255, A: 255},
		},
		{ // bottom
			Vertices: [4]Vec3{{hx, -hy, hz}, {-hx, -hy, hz}, {-hx, -hy, -hz}, {hx, -hy, -hz}},
			Color:    color.RGBA{R: 255, G: 128, A: 255},
		},
		{ // front
			Vertices: [4]Vec3{{hx, hy, hz}, {-hx, hy, hz}, {-hx, -hy, hz}, {hx, -hy, hz}},
			Color:    color.RGBA{R: 255, A: 255},
		},
		{ // back
			Vertices: [4]Vec3{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}},
			Color:    color.RGBA{R: 255, G: 255, A: 255},
		},
		{ // left
			Vertices: [4]Vec3{{-hx, hy, hz}, {-hx, hy, -hz}, {-hx, -hy, -hz}, {-hx, -hy, hz}},
			Color:    color.RGBA{B: 255, A: 255},
		},
		{ // right
			Vertices: [4]Vec3{{hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}, {hx, -hy, -hz}},
			Color:    color.RGBA{R: 255, B: 255, A: 255},
		},
	}
}
