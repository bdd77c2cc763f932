package sim

import (
	"fmt"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

// Encode renders r in the sensor wire format, six decimals per angle.
func Encode(r telemetry.Record) []byte {
	return AppendRecord(nil, r)
}

// AppendRecord appends the wire form of r to dst.
func AppendRecord(dst []byte, r telemetry.Record) []byte {
	return fmt.Appendf(dst, `{"x":%f,"y":%f,"z":%f,"s":%d}`, r.X, r.Y, r.Z, r.Seq)
}
