package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const defaultReaderBatchSize = 1000

// ReaderOption configures a TelemetryReader.
type ReaderOption func(*TelemetryReader)

// WithStartTime excludes records received before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *TelemetryReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes records received after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *TelemetryReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both WithStartTime
// and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *TelemetryReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// WithBatchSize sets how many records are fetched per query.
func WithBatchSize(n int) ReaderOption {
	return func(r *TelemetryReader) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// TelemetryReader iterates over the stored records of one session.
//
//	for reader.Next(ctx) {
//		t := reader.Current()
//	}
//	if err := reader.Error(); err != nil { ... }
type TelemetryReader struct {
	db   *sql.DB
	stmt *sql.Stmt

	sessionID uuid.UUID
	session   *Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	batchSize int

	page      []*telemetry.Telemetry
	pos       int
	lastID    int64
	exhausted bool
	current   *telemetry.Telemetry
	err       error
}

func newTelemetryReader(ctx context.Context, db *sql.DB, sessionID uuid.UUID, opts ...ReaderOption) (*TelemetryReader, error) {
	tr := &TelemetryReader{
		db:        db,
		sessionID: sessionID,
		batchSize: defaultReaderBatchSize,
	}
	for _, opt := range opts {
		opt(tr)
	}
	if err := tr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return tr, nil
}

func (tr *TelemetryReader) init(ctx context.Context) error {
	if tr.db == nil {
		return errors.New("database connection required")
	}
	if tr.sessionID == uuid.Nil {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: tr.loadSession},
		{msg: "initializing filters", fn: tr.initFilters},
		{msg: "preparing query", fn: tr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (tr *TelemetryReader) loadSession(ctx context.Context) (err error) {
	stmt, err := tr.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	err = stmt.QueryRowContext(ctx, tr.sessionID.String()).Scan(&data.ID, &data.StartTime, &data.EndTime, &data.Peer, &data.Config)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", tr.sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return fmt.Errorf("querying session: %w", err)
	}

	tr.session, err = fromSessionData(&data)
	return
}

func (tr *TelemetryReader) initFilters(context.Context) error {
	if tr.startTime != nil && tr.endTime != nil && tr.startTime.After(*tr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", tr.startTime, tr.endTime)
	}
	return nil
}

func (tr *TelemetryReader) initQuery(ctx context.Context) (err error) {
	tr.stmt, err = tr.db.PrepareContext(ctx, selectTelemetryPageSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	return nil
}

func (tr *TelemetryReader) timeBounds() (int64, int64) {
	from, to := int64(math.MinInt64), int64(math.MaxInt64)
	if tr.startTime != nil {
		from = tr.startTime.UTC().UnixNano()
	}
	if tr.endTime != nil {
		to = tr.endTime.UTC().UnixNano()
	}
	return from, to
}

// fetchPage loads the next page of records after the last seen row ID.
func (tr *TelemetryReader) fetchPage(ctx context.Context) (err error) {
	from, to := tr.timeBounds()

	rows, err := tr.stmt.QueryContext(ctx, tr.sessionID.String(), from, to, tr.lastID, tr.batchSize)
	if err != nil {
		return fmt.Errorf("querying telemetry: %w", err)
	}
	defer closeWithError(rows, &err)

	tr.page = tr.page[:0]
	tr.pos = 0

	for rows.Next() {
		var data telemetryData
		if err = rows.Scan(&data.ID, &data.Timestamp, &data.Seq, &data.Roll, &data.Pitch, &data.Yaw); err != nil {
			return fmt.Errorf("scanning telemetry: %w", err)
		}

		tr.page = append(tr.page, fromTelemetryData(&data))
		tr.lastID = data.ID
	}
	if err = rows.Err(); err != nil {
		return fmt.Errorf("iterating telemetry: %w", err)
	}

	tr.exhausted = len(tr.page) < tr.batchSize
	return nil
}

// Session returns metadata about the session this reader is accessing.
func (tr *TelemetryReader) Session() *Session {
	return tr.session
}

// Next advances the iterator and returns true if there is another record to
// read, false when the iteration is complete or an error occurred.
func (tr *TelemetryReader) Next(ctx context.Context) bool {
	if tr.err != nil || tr.stmt == nil {
		return false
	}

	if tr.pos >= len(tr.page) {
		if tr.exhausted {
			tr.current = nil
			return false
		}
		if err := ctx.Err(); err != nil {
			tr.err = err
			return false
		}
		if err := tr.fetchPage(ctx); err != nil {
			tr.err = err
			return false
		}
		if len(tr.page) == 0 {
			tr.current = nil
			return false
		}
	}

	tr.current = tr.page[tr.pos]
	tr.pos++
	return true
}

// Current returns the record at the current position.
func (tr *TelemetryReader) Current() *telemetry.Telemetry {
	return tr.current
}

// Error returns the error that stopped the iteration, if any.
func (tr *TelemetryReader) Error() error {
	return tr.err
}

// Close releases the prepared statement. The reader cannot be used after.
func (tr *TelemetryReader) Close() error {
	if tr.stmt == nil {
		return nil
	}

	err := tr.stmt.Close()
	tr.stmt = nil
	tr.page = nil
	tr.current = nil
	return err
}
