package mock

import (
	"log/slog"
	"time"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
)

type config struct {
	logger    *slog.Logger
	noLog     bool
	byteLog   bool
	generator Generator
	byteDelay time.Duration
	delay     time.Duration
}

// Option configures a mock at construction. Everything an Option sets can
// also be changed later through the control handle.
type Option func(*config)

// WithoutLog starts the mock with logging disabled.
func WithoutLog() Option {
	return func(c *config) { c.noLog = true }
}

// WithByteLog starts the mock with logging and the byte dump enabled.
func WithByteLog() Option {
	return func(c *config) { c.byteLog = true }
}

// WithLogger sets the logger of the intercept wrapping the mock.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithGenerator sets the response generator of a mock SPI device.
func WithGenerator(g Generator) Option {
	return func(c *config) { c.generator = g }
}

// WithByteDelay sets the per-byte delay of a mock SPI device.
func WithByteDelay(d time.Duration) Option {
	return func(c *config) { c.byteDelay = d }
}

// WithDelay sets the per-call delay of a mock pin.
func WithDelay(d time.Duration) Option {
	return func(c *config) { c.delay = d }
}

func newConfig(options []Option) config {
	var c config
	for _, opt := range options {
		opt(&c)
	}
	return c
}

func (c config) interceptOptions(opts *intercept.Options) []intercept.Option {
	out := []intercept.Option{intercept.WithOptions(opts)}
	if c.logger != nil {
		out = append(out, intercept.WithLogger(c.logger))
	}
	if c.noLog {
		out = append(out, intercept.WithoutLog())
	}
	if c.byteLog {
		out = append(out, intercept.WithByteLog())
	}
	return out
}
