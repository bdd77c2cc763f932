package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

// ErrSessionNotFound is returned when no session with the given ID exists.
var ErrSessionNotFound = errors.New("session not found")

// Store provides an interface for recording orientation telemetry by session.
type Store interface {
	// CreateSession starts a new recording session for the sensor at peer.
	// config is optional and can be a string, []byte or a JSON-serializable
	// value.
	CreateSession(ctx context.Context, peer string, config any) (*Session, error)

	// EndSession marks the session as finished.
	EndSession(ctx context.Context, id uuid.UUID) error

	// Session retrieves a session by its ID.
	Session(ctx context.Context, id uuid.UUID) (*Session, error)

	// Sessions returns all sessions ordered by start time.
	Sessions(ctx context.Context) ([]*Session, error)

	// StoreTelemetry saves a batch of records in a single transaction.
	StoreTelemetry(ctx context.Context, sessionID uuid.UUID, batch []*telemetry.Telemetry) error

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
