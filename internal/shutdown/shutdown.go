package shutdown

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Coordinator is a process-wide, write-once cancellation signal. Any number of
// triggers (OS signal, UI quit, peer disconnect) may request shutdown; every
// loop polls IsShuttingDown at its own check points.
type Coordinator struct {
	requested atomic.Bool
	once      sync.Once
	done      chan struct{}
	reason    atomic.Pointer[string]

	logger *slog.Logger
}

// WithLogger sets the logger used to report the shutdown request
func WithLogger(logger *slog.Logger) func(c *Coordinator) {
	return func(c *Coordinator) {
		c.logger = logger.With(slog.String("component", "shutdown"))
	}
}

// New creates a Coordinator in the running state.
func New(options ...func(c *Coordinator)) *Coordinator {
	c := Coordinator{
		done:   make(chan struct{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c
}

// RequestShutdown sets the signal. Only the first call has an effect, and its
// reason is the one reported by Reason.
func (c *Coordinator) RequestShutdown(reason string) {
	c.once.Do(func() {
		c.reason.Store(&reason)
		c.requested.Store(true)
		close(c.done)

		c.logger.Info("shutdown requested", slog.String("reason", reason))
	})
}

// IsShuttingDown reports whether shutdown has been requested. It never blocks.
func (c *Coordinator) IsShuttingDown() bool {
	return c.requested.Load()
}

// Done returns a channel closed once shutdown has been requested.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Reason returns the reason passed to the first RequestShutdown call, or an
// empty string while running.
func (c *Coordinator) Reason() string {
	if r := c.reason.Load(); r != nil {
		return *r
	}
	return ""
}

// Watch requests shutdown when ctx is done, typically a context returned by
// signal.NotifyContext. It returns immediately.
func (c *Coordinator) Watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			c.RequestShutdown("signal received")
		case <-c.done:
		}
	}()
}
