package storage

import (
	_ "embed"
)

const (
	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_telemetry_session_time ON telemetry (session_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_sessions_start_time ON sessions (start_time);`

	insertSessionSQL = `
INSERT INTO sessions (id,
                      start_time,
                      peer,
                      config)
VALUES (?, ?, ?, ?)`

	endSessionSQL = `
UPDATE sessions
SET end_time = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    end_time, 
    peer, 
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    start_time, 
    end_time, 
    peer, 
    config 
FROM sessions
ORDER BY start_time`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       timestamp,
                       seq,
                       roll,
                       pitch,
                       yaw)
VALUES `

	selectTelemetryPageSQL = `
SELECT 
    id, 
    timestamp, 
    seq, 
    roll, 
    pitch, 
    yaw
FROM telemetry
WHERE 
    session_id = ?
    AND timestamp BETWEEN ? AND ?
    AND id > ?
ORDER BY id
LIMIT ?`
)

//go:embed schema.sql
var initSchemaSQL string
