package sim

import (
	"math"
	"time"
)

// DefaultGyroWeight is the share of the integrated gyro angle kept on every
// update; the rest comes from the accelerometer.
const DefaultGyroWeight = 0.96

// Reading is one raw IMU sample.
type Reading struct {
	Accel [3]float64 // Acceleration in g along X, Y and Z
	Gyro  [3]float64 // Angular rate in degrees per second about X, Y and Z
}

// Filter fuses gyro and accelerometer readings into roll, pitch and yaw.
// Roll and pitch use a complementary filter; yaw is gyro integration only and
// drifts.
type Filter struct {
	GyroWeight float64

	roll, pitch, yaw float64
}

// NewFilter creates a Filter with the default gyro weight.
func NewFilter() *Filter {
	return &Filter{GyroWeight: DefaultGyroWeight}
}

// Update integrates r over dt and returns the fused angles in degrees.
func (f *Filter) Update(r Reading, dt time.Duration) (roll, pitch, yaw float64) {
	secs := dt.Seconds()

	f.roll += r.Gyro[0] * secs
	f.pitch += r.Gyro[1] * secs
	f.yaw += r.Gyro[2] * secs

	ax, ay, az := r.Accel[0], r.Accel[1], r.Accel[2]
	accelRoll := math.Atan2(ay, az) * 180 / math.Pi
	accelPitch := math.Atan2(-ax, math.Sqrt(ay*ay+az*az)) * 180 / math.Pi

	w := f.GyroWeight
	f.roll = f.roll*w + accelRoll*(1-w)
	f.pitch = f.pitch*w + accelPitch*(1-w)

	return f.roll, f.pitch, f.yaw
}

// Angles returns the current fused angles in degrees.
func (f *Filter) Angles() (roll, pitch, yaw float64) {
	return f.roll, f.pitch, f.yaw
}
