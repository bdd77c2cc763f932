package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/roman-kulish/attitude-monitor/internal/storage"
	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

// recording stores the telemetry of the sensor connection in a new session.
// A disabled or failing recording never affects ingestion.
type recording struct {
	state  *telemetry.State
	config *Config
	store  *storage.SqliteStore
	logger *slog.Logger

	// set on the ingestion goroutine before the first record
	recorder *storage.Recorder
	session  *storage.Session
}

func newRecording(state *telemetry.State, config *Config, logger *slog.Logger) (*recording, error) {
	r := recording{
		state:  state,
		config: config,
		logger: logger.With(slog.String("component", "recording")),
	}

	if !config.Storage.Enabled {
		return &r, nil
	}

	store, err := createStorage(&config.Storage)
	if err != nil {
		return nil, err
	}
	r.store = store

	return &r, nil
}

func (r *recording) onConnect(ctx context.Context) func(peer net.Addr) {
	return func(peer net.Addr) {
		if r.store == nil {
			return
		}

		session, err := r.store.CreateSession(ctx, peer.String(), r.config)
		if err != nil {
			r.logger.Error(fmt.Sprintf("creating session: %s", err.Error()))
			return
		}

		options := []func(*storage.Recorder){
			storage.WithMaxBatchSize(r.config.Storage.MaxBatchSize),
			storage.WithQueueSize(r.config.Storage.QueueSize),
			storage.WithFlushInterval(r.config.Storage.FlushInterval.Duration()),
			storage.WithRecorderLogger(r.logger),
		}
		if interval := r.config.Storage.SampleInterval.Duration(); interval > 0 {
			options = append(options, storage.WithProvider(r.state, interval))
		}

		recorder := storage.NewRecorder(r.store, session.ID, options...)
		if err = recorder.Start(ctx); err != nil {
			r.logger.Error(fmt.Sprintf("starting recorder: %s", err.Error()))
			return
		}

		r.session = session
		r.recorder = recorder
		r.logger.Info("recording session", slog.String("session", session.ID.String()), slog.String("peer", session.Peer))
	}
}

func (r *recording) record(rec telemetry.Record) {
	if r.recorder == nil || r.config.Storage.SampleInterval > 0 {
		return
	}
	r.recorder.RecordSink(rec)
}

// Close flushes the recorder, ends the session and closes the store.
func (r *recording) Close(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	var errs []error
	if r.recorder != nil {
		if err := r.recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing recorder: %w", err))
		}
		if err := r.store.EndSession(ctx, r.session.ID); err != nil {
			errs = append(errs, fmt.Errorf("ending session: %w", err))
		}
	}
	if err := r.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}

	return errors.Join(errs...)
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dbPath := config.DataDirectory
	if !filepath.IsAbs(dbPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dbPath = filepath.Join(wd, dbPath)
	}

	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory '%s': %w", dbPath, err)
	}

	dbPath = filepath.Join(dbPath, fmt.Sprintf("attitude_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
