package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/attitude-monitor/internal/demux"
	"github.com/roman-kulish/attitude-monitor/internal/shutdown"
	"github.com/roman-kulish/attitude-monitor/internal/telemetry"
)

const (
	// DefaultReadTimeout bounds a single read so the loop reaches its shutdown check point
	DefaultReadTimeout = 250 * time.Millisecond

	// DefaultReadBufferSize is the size of a single socket read
	DefaultReadBufferSize = 1024
)

var (
	// ErrConnection is returned when the connection fails for a reason other than a clean close
	ErrConnection = errors.New("connection error")

	// ErrProtocol is returned when the peer stream cannot be resynchronized
	ErrProtocol = errors.New("protocol error")

	// ErrAlreadyServing is returned when Serve is called while a connection is being served
	ErrAlreadyServing = errors.New("server is already serving a connection")
)

// Stats holds ingestion counters.
type Stats struct {
	BytesRead   uint64
	Records     uint64
	ParseErrors uint64
}

// WithLogger sets the logger for the server
func WithLogger(logger *slog.Logger) func(s *Server) {
	return func(s *Server) {
		s.logger = logger.With(slog.String("component", "ingest"))
	}
}

// WithReadTimeout sets the deadline of a single read. Zero disables it, in
// which case only a shutdown request unblocks a read.
func WithReadTimeout(timeout time.Duration) func(s *Server) {
	return func(s *Server) {
		s.readTimeout = timeout
	}
}

// WithReadBufferSize sets the size of a single socket read
func WithReadBufferSize(size int) func(s *Server) {
	return func(s *Server) {
		if size > 0 {
			s.readBufferSize = size
		}
	}
}

// WithMaxPending sets the demuxer cap on bytes retained without a record boundary
func WithMaxPending(n int) func(s *Server) {
	return func(s *Server) {
		s.maxPending = n
	}
}

// WithShutdownOnDisconnect sets whether losing the peer requests a process shutdown
func WithShutdownOnDisconnect(enabled bool) func(s *Server) {
	return func(s *Server) {
		s.shutdownOnDisconnect = enabled
	}
}

// WithSink sets a function receiving every accepted record after it is published.
// The sink runs on the ingestion goroutine and must not block.
func WithSink(sink func(telemetry.Record)) func(s *Server) {
	return func(s *Server) {
		s.sink = sink
	}
}

// WithOnConnect sets a function called with the peer address once the sensor
// connection is accepted, before the first read.
func WithOnConnect(fn func(peer net.Addr)) func(s *Server) {
	return func(s *Server) {
		s.onConnect = fn
	}
}

// Server accepts a single sensor connection and publishes every record it
// carries to the orientation state.
type Server struct {
	state       *telemetry.State
	coordinator *shutdown.Coordinator
	sink        func(telemetry.Record)
	onConnect   func(peer net.Addr)

	readTimeout          time.Duration
	readBufferSize       int
	maxPending           int
	shutdownOnDisconnect bool

	isServing   atomic.Bool
	bytesRead   atomic.Uint64
	records     atomic.Uint64
	parseErrors atomic.Uint64

	logger *slog.Logger
}

// NewServer creates a new Server with a discard logger
func NewServer(state *telemetry.State, coordinator *shutdown.Coordinator, options ...func(s *Server)) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	s := Server{
		state:                state,
		coordinator:          coordinator,
		readTimeout:          DefaultReadTimeout,
		readBufferSize:       DefaultReadBufferSize,
		maxPending:           demux.DefaultMaxPending,
		shutdownOnDisconnect: true,
		logger:               logger,
	}

	for _, option := range options {
		option(&s)
	}

	return &s
}

// Listen opens the TCP listener the sensor connects to.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	return ln, nil
}

// ServeListener accepts exactly one connection from ln, closes ln and serves
// the connection. A shutdown request while waiting unblocks the accept and
// returns nil.
func (s *Server) ServeListener(ln net.Listener) error {
	s.logger.Info("waiting for sensor connection", slog.String("address", ln.Addr().String()))

	accepted := make(chan struct{})
	go func() {
		select {
		case <-s.coordinator.Done():
			_ = ln.Close()
		case <-accepted:
		}
	}()

	conn, err := ln.Accept()
	close(accepted)
	_ = ln.Close() // single connection only

	if err != nil {
		if s.coordinator.IsShuttingDown() {
			return nil
		}
		return fmt.Errorf("accepting connection: %w", err)
	}

	return s.Serve(conn)
}

// Serve runs the ingestion loop over conn and closes it on return.
//
// The loop suspends only on the read. After every read it checks the shutdown
// signal; a shutdown request also closes conn so a parked read returns.
// A clean disconnect returns nil. When configured, any end of the connection
// other than shutdown requests a process shutdown.
func (s *Server) Serve(conn net.Conn) (err error) {
	if !s.isServing.CompareAndSwap(false, true) {
		_ = conn.Close()
		return ErrAlreadyServing
	}
	defer s.isServing.Store(false)

	logger := s.logger.With(slog.String("peer", conn.RemoteAddr().String()))
	logger.Info("sensor connected")

	if s.onConnect != nil {
		s.onConnect(conn.RemoteAddr())
	}

	stopped := make(chan struct{})
	defer close(stopped)

	go func() {
		select {
		case <-s.coordinator.Done():
			_ = conn.Close()
		case <-stopped:
		}
	}()

	defer func() {
		if cErr := conn.Close(); cErr != nil && !errors.Is(cErr, net.ErrClosed) {
			logger.Debug(fmt.Sprintf("closing connection: %s", cErr.Error()))
		}
		s.logSummary(logger)
	}()

	d := demux.New(demux.WithMaxPending(s.maxPending))
	buf := make([]byte, s.readBufferSize)

	for {
		if s.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		n, rErr := conn.Read(buf)
		if n > 0 {
			s.bytesRead.Add(uint64(n))
			d.Push(buf[:n])

			if pErr := s.drain(d, logger); pErr != nil {
				err = fmt.Errorf("%w: %w", ErrProtocol, pErr)
				break
			}
		}

		if s.coordinator.IsShuttingDown() {
			logger.Info("shutdown observed, closing connection")
			return nil
		}

		if rErr != nil {
			var netErr net.Error
			if errors.As(rErr, &netErr) && netErr.Timeout() {
				continue // check point only
			}

			if !errors.Is(rErr, io.EOF) {
				err = fmt.Errorf("%w: %w", ErrConnection, rErr)
			}
			break
		}
	}

	if err != nil {
		logger.Error(err.Error())
	} else {
		logger.Info("sensor disconnected")
	}

	if s.shutdownOnDisconnect {
		s.coordinator.RequestShutdown("sensor disconnected")
	}

	return err
}

// drain publishes every record the demuxer can extract. Parse failures are
// transient; only a pending overflow is returned.
func (s *Server) drain(d *demux.Demuxer, logger *slog.Logger) error {
	for rec, err := range d.Records() {
		if err != nil {
			if errors.Is(err, demux.ErrPendingOverflow) {
				return err
			}

			s.parseErrors.Add(1)
			logger.Debug(fmt.Sprintf("skipping record: %s", err.Error()))
			continue
		}

		rec.ReceivedAt = time.Now()
		s.state.PublishRecord(rec)
		s.records.Add(1)

		if s.sink != nil {
			s.sink(rec)
		}
	}

	return nil
}

// IsServing returns true while a connection is being served
func (s *Server) IsServing() bool {
	return s.isServing.Load()
}

// Stats returns the ingestion counters.
func (s *Server) Stats() Stats {
	return Stats{
		BytesRead:   s.bytesRead.Load(),
		Records:     s.records.Load(),
		ParseErrors: s.parseErrors.Load(),
	}
}

func (s *Server) logSummary(logger *slog.Logger) {
	stats := s.Stats()

	logger.Info("ingestion stopped",
		slog.Group("stats",
			slog.String("received", humanize.Bytes(stats.BytesRead)),
			slog.String("records", humanize.Comma(int64(stats.Records))),
			slog.String("parseErrors", humanize.Comma(int64(stats.ParseErrors))),
		))
}
