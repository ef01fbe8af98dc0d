// Package lifecycle owns the worker's root context and turns termination
// signals into a single shutdown notification followed by process exit.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/michaelbrown/codetutor/internal/protocol"
)

// Notifier delivers an out-of-band envelope to the host.
type Notifier interface {
	Send(v any) error
}

// Controller cancels its context and exits the process on SIGINT/SIGTERM.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	out    Notifier
	logger *slog.Logger
	exit   func(code int)

	signals chan os.Signal
	once    sync.Once
	done    chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithExit replaces os.Exit. Tests use it to observe termination.
func WithExit(fn func(code int)) Option {
	return func(c *Controller) { c.exit = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a Controller whose context derives from parent.
func New(parent context.Context, out Notifier, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		ctx:     ctx,
		cancel:  cancel,
		out:     out,
		logger:  slog.Default(),
		exit:    os.Exit,
		signals: make(chan os.Signal, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "lifecycle")
	return c
}

// Context is cancelled once a termination signal has been handled. The
// request loop checks it between requests.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// Start installs the platform's signal handlers. Signals the platform cannot
// deliver are reported to the host as a warning envelope.
func (c *Controller) Start() {
	signal.Notify(c.signals, watchedSignals()...)
	for _, name := range unsupportedSignals() {
		msg := "Could not register " + name + " handler: not supported on this platform"
		c.logger.Warn("signal handler not installed", "signal", name)
		if err := c.out.Send(protocol.Warning(msg)); err != nil {
			c.logger.Error("sending warning", "error", err)
		}
	}

	go func() {
		select {
		case sig := <-c.signals:
			c.Terminate(signalName(sig))
		case <-c.done:
		}
	}()
}

// Stop removes the signal handlers and cancels the context without exiting.
func (c *Controller) Stop() {
	signal.Stop(c.signals)
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// Terminate sends the shutdown envelope, cancels the context and exits with
// status 0. Only the first call has any effect.
func (c *Controller) Terminate(sig string) {
	c.once.Do(func() {
		c.logger.Info("shutting down", "signal", sig)
		if err := c.out.Send(protocol.Shutdown(sig)); err != nil {
			c.logger.Error("sending shutdown notice", "error", err)
		}
		close(c.done)
		c.cancel()
		c.exit(0)
	})
}
