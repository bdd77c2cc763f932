package telemetry

import (
	"time"
)

// Provider returns the most recent telemetry known to the caller.
type Provider interface {
	Get() *Telemetry
}

// Telemetry is the orientation reported by the sensor, as seen by consumers
// that persist or display it.
type Telemetry struct {
	Timestamp time.Time `json:"timestamp"`       // Time the record was received
	Seq       uint64    `json:"seq,omitempty"`   // Sample number reported by the sensor
	Roll      *float64  `json:"roll,omitempty"`  // Roll angle in degrees
	Pitch     *float64  `json:"pitch,omitempty"` // Pitch angle in degrees
	Yaw       *float64  `json:"yaw,omitempty"`   // Yaw angle in degrees
}

// Record is a single orientation sample decoded from the wire.
// X, Y and Z map to roll, pitch and yaw respectively.
type Record struct {
	X          float64   // Roll angle in degrees
	Y          float64   // Pitch angle in degrees
	Z          float64   // Yaw angle in degrees
	Seq        uint64    // Sample number ("s" on the wire), 0 when absent
	ReceivedAt time.Time // Local receive time, zero when unknown
}

// Roll returns the roll angle in degrees.
func (r Record) Roll() float64 { return r.X }

// Pitch returns the pitch angle in degrees.
func (r Record) Pitch() float64 { return r.Y }

// Yaw returns the yaw angle in degrees.
func (r Record) Yaw() float64 { return r.Z }

// FromRecord converts a decoded record into Telemetry.
func FromRecord(r Record) *Telemetry {
	roll, pitch, yaw := r.Roll(), r.Pitch(), r.Yaw()

	return &Telemetry{
		Timestamp: r.ReceivedAt,
		Seq:       r.Seq,
		Roll:      &roll,
		Pitch:     &pitch,
		Yaw:       &yaw,
	}
}
