package storage

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Session describes one recorded sensor connection.
type Session struct {
	ID        uuid.UUID
	StartTime time.Time
	EndTime   *time.Time // nil while the session is still being recorded
	Peer      string     // Remote address of the sensor
	Config    *string    // Viewer configuration as JSON, if stored
}

// Duration returns the recorded time span, or zero for an open session.
func (s *Session) Duration() time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

type sessionData struct {
	ID        string
	StartTime time.Time
	EndTime   sql.NullTime
	Peer      string
	Config    sql.NullString
}

type telemetryData struct {
	ID        int64
	SessionID string
	Timestamp int64
	Seq       sql.NullInt64
	Roll      sql.NullFloat64
	Pitch     sql.NullFloat64
	Yaw       sql.NullFloat64
}
