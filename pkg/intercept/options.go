// Package intercept wraps SPI devices and output pins with observers that
// log or count what passes through them without changing any result.
package intercept

import (
	"log/slog"
	"sync/atomic"
)

// Options are the logging toggles of an intercept. A single Options value
// may be shared by several layers (a mock and the intercept around it), and
// a change made through any of them is seen by all.
type Options struct {
	log   atomic.Bool
	bytes atomic.Bool
}

// NewOptions returns options with logging on and the byte dump off.
func NewOptions() *Options {
	o := &Options{}
	o.log.Store(true)
	return o
}

// SetLog sets whether events are logged.
func (o *Options) SetLog(on bool) { o.log.Store(on) }

// SetBytes sets whether tx/rx bytes are dumped when logging is enabled.
func (o *Options) SetBytes(on bool) { o.bytes.Store(on) }

func (o *Options) Log() bool   { return o.log.Load() }
func (o *Options) Bytes() bool { return o.bytes.Load() }

type config struct {
	opts    *Options
	logger  *slog.Logger
	noLog   bool
	byteLog bool
}

// Option configures an intercept.
type Option func(*config)

// WithoutLog disables event logging.
func WithoutLog() Option {
	return func(c *config) { c.noLog = true }
}

// WithByteLog enables logging together with the tx/rx byte dump.
func WithByteLog() Option {
	return func(c *config) { c.byteLog = true }
}

// WithLogger sets the logger events are written to. Defaults to
// slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithOptions makes the intercept use opts instead of a private copy, so
// the caller can toggle logging later.
func WithOptions(opts *Options) Option {
	return func(c *config) { c.opts = opts }
}

func newConfig(name string, options []Option) config {
	var c config
	for _, opt := range options {
		opt(&c)
	}
	if c.opts == nil {
		c.opts = NewOptions()
	}
	if c.noLog {
		c.opts.SetLog(false)
	}
	if c.byteLog {
		c.opts.SetLog(true)
		c.opts.SetBytes(true)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("device", name)
	return c
}
