package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const (
	// maxSQLVariables is the default SQLITE_MAX_VARIABLE_NUMBER
	maxSQLVariables  = 32766
	telemetryColumns = 6

	// MaxBatchSize is the largest number of telemetry rows a single insert
	// statement can bind.
	MaxBatchSize = maxSQLVariables / telemetryColumns
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened and the schema initialized on first use.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, peer string, config any) (session *Session, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	id, err := uuid.NewRandom()
	if err != nil {
		err = fmt.Errorf("generating session ID: %w", err)
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	startTime := time.Now().UTC()
	if _, err = stmt.ExecContext(ctx, id.String(), startTime, peer, configData); err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	session = &Session{
		ID:        id,
		StartTime: startTime,
		Peer:      peer,
	}
	if configData.Valid {
		session.Config = &configData.String
	}
	return
}

func (s *SqliteStore) EndSession(ctx context.Context, id uuid.UUID) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	result, err := db.ExecContext(ctx, endSessionSQL, time.Now().UTC(), id.String())
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return nil
}

func (s *SqliteStore) Session(ctx context.Context, id uuid.UUID) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	err = stmt.QueryRowContext(ctx, id.String()).Scan(&data.ID, &data.StartTime, &data.EndTime, &data.Peer, &data.Config)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
		return
	}
	if err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return fromSessionData(&data)
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data sessionData
		if err = rows.Scan(&data.ID, &data.StartTime, &data.EndTime, &data.Peer, &data.Config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}

		var sess *Session
		if sess, err = fromSessionData(&data); err != nil {
			return
		}
		sessions = append(sessions, sess)
	}

	err = rows.Err()
	return
}

// ReadTelemetry creates a TelemetryReader over the records of a session in
// the order they were stored. Records are fetched in pages of the configured
// batch size.
//
// The returned reader must be closed after use. Each reader instance should
// only be used from a single goroutine.
func (s *SqliteStore) ReadTelemetry(ctx context.Context, sessionID uuid.UUID, opts ...ReaderOption) (*TelemetryReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newTelemetryReader(ctx, db, sessionID, opts...)
}

// StoreTelemetry inserts batch in a single transaction. Batches larger than
// MaxBatchSize are split into several multi-row inserts.
func (s *SqliteStore) StoreTelemetry(ctx context.Context, sessionID uuid.UUID, batch []*telemetry.Telemetry) (err error) {
	if len(batch) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for chunk := range slices.Chunk(batch, MaxBatchSize) {
		if err = insertTelemetry(ctx, tx, sessionID, chunk); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func insertTelemetry(ctx context.Context, tx *sql.Tx, sessionID uuid.UUID, batch []*telemetry.Telemetry) error {
	// Prepare values array
	values := make([]interface{}, 0, len(batch)*telemetryColumns)

	// Build batch insert query
	valuesPlaceholder := "(?, ?, ?, ?, ?, ?)"

	var sb strings.Builder

	sb.WriteString(insertTelemetrySQL)

	for i, t := range batch {
		data := toTelemetryData(sessionID, t)
		values = append(values,
			data.SessionID,
			data.Timestamp,
			data.Seq,
			data.Roll,
			data.Pitch,
			data.Yaw,
		)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), values...); err != nil {
		return fmt.Errorf("batch inserting telemetry: %w", err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
