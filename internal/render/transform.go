package render

import (
	"fmt"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

// Transform maps an orientation to the model rotation. Yaw turns the board
// about the vertical axis and is applied only in yaw mode; roll turns it
// about X with the sign flipped; pitch turns it about Z. Vertices are
// pitched first, then rolled, then yawed.
func Transform(o telemetry.Orientation, yawMode bool) Mat3 {
	m := Identity
	if yawMode {
		m = m.Mul(RotateY(o.Yaw))
	}
	return m.Mul(RotateX(-o.Roll)).Mul(RotateZ(o.Pitch))
}

// OverlayLines returns the text shown over the model. Roll is displayed
// negated to match the on-screen rotation direction.
func OverlayLines(o telemetry.Orientation, yawMode bool) []string {
	roll := -o.Roll
	if roll == 0 {
		roll = 0 // no "-0.00"
	}

	lines := []string{fmt.Sprintf("pitch: %.2f, roll: %.2f", o.Pitch, roll)}
	if yawMode {
		lines = append(lines, fmt.Sprintf("yaw: %.2f", o.Yaw))
	}
	return lines
}
