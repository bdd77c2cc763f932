package sim

import (
	"math"
	"math/rand/v2"
	"time"
)

// Motion is the true attitude of the simulated board, in degrees.
type Motion struct {
	Roll, Pitch, Yaw float64
}

// WithNoise sets the standard deviation of the accelerometer (g) and gyro
// (deg/s) noise.
func WithNoise(accel, gyro float64) func(s *Source) {
	return func(s *Source) {
		s.accelNoise = accel
		s.gyroNoise = gyro
	}
}

// WithSeed makes the noise sequence reproducible
func WithSeed(seed uint64) func(s *Source) {
	return func(s *Source) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// Source generates IMU readings for a board swaying smoothly in roll and
// pitch while turning at a constant yaw rate. Time advances by the step passed
// to Next, not by the wall clock.
type Source struct {
	elapsed time.Duration

	accelNoise float64
	gyroNoise  float64
	rng        *rand.Rand
}

// NewSource creates a Source starting at t = 0.
func NewSource(options ...func(s *Source)) *Source {
	s := Source{
		rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// MotionAt returns the true attitude at t.
func MotionAt(t time.Duration) Motion {
	secs := t.Seconds()

	return Motion{
		Roll:  20 * math.Sin(secs),
		Pitch: 15 * math.Cos(secs*0.7),
		Yaw:   math.Mod(secs*30, 360),
	}
}

// Next advances time by dt and returns the reading at the new time.
func (s *Source) Next(dt time.Duration) Reading {
	s.elapsed += dt
	secs := s.elapsed.Seconds()

	m := MotionAt(s.elapsed)
	roll := m.Roll * math.Pi / 180
	pitch := m.Pitch * math.Pi / 180

	// gravity seen by a board at (roll, pitch), then the angle rates
	r := Reading{
		Accel: [3]float64{
			-math.Sin(pitch),
			math.Sin(roll) * math.Cos(pitch),
			math.Cos(roll) * math.Cos(pitch),
		},
		Gyro: [3]float64{
			20 * math.Cos(secs),
			-15 * 0.7 * math.Sin(secs*0.7),
			30,
		},
	}

	for i := range r.Accel {
		r.Accel[i] += s.rng.NormFloat64() * s.accelNoise
		r.Gyro[i] += s.rng.NormFloat64() * s.gyroNoise
	}

	return r
}

// Elapsed returns the simulated time.
func (s *Source) Elapsed() time.Duration {
	return s.elapsed
}
