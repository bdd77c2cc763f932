package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

func toTelemetryData(sessionID uuid.UUID, t *telemetry.Telemetry) *telemetryData {
	return &telemetryData{
		SessionID: sessionID.String(),
		Timestamp: t.Timestamp.UTC().UnixNano(),

		Seq: sql.NullInt64{
			Int64: int64(t.Seq),
			Valid: t.Seq > 0,
		},
		Roll: sql.NullFloat64{
			Float64: toSQLNullType[float64](t.Roll),
			Valid:   t.Roll != nil,
		},
		Pitch: sql.NullFloat64{
			Float64: toSQLNullType[float64](t.Pitch),
			Valid:   t.Pitch != nil,
		},
		Yaw: sql.NullFloat64{
			Float64: toSQLNullType[float64](t.Yaw),
			Valid:   t.Yaw != nil,
		},
	}
}

func fromTelemetryData(data *telemetryData) *telemetry.Telemetry {
	t := telemetry.Telemetry{
		Timestamp: time.Unix(0, data.Timestamp).UTC(),
	}

	if data.Seq.Valid {
		t.Seq = uint64(data.Seq.Int64)
	}
	if data.Roll.Valid {
		t.Roll = &data.Roll.Float64
	}
	if data.Pitch.Valid {
		t.Pitch = &data.Pitch.Float64
	}
	if data.Yaw.Valid {
		t.Yaw = &data.Yaw.Float64
	}

	return &t
}

func fromSessionData(data *sessionData) (*Session, error) {
	id, err := uuid.Parse(data.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing session ID: %w", err)
	}

	sess := Session{
		ID:        id,
		StartTime: data.StartTime,
		Peer:      data.Peer,
	}
	if data.EndTime.Valid {
		sess.EndTime = &data.EndTime.Time
	}
	if data.Config.Valid {
		sess.Config = &data.Config.String
	}

	return &sess, nil
}

func toSQLNullType[T float64 | int64, Y float64 | int | int64](f *Y) T {
	if f == nil {
		return 0
	}
	return T(*f)
}
