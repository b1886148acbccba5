package scenario

import (
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/mock"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// Bench is a built scenario, ready to run.
type Bench struct {
	Name      string
	Transport spi.Device

	SPI        *intercept.SPI
	SPIControl *mock.SPIControl

	// CS and CSControl are nil for an auto-select bench.
	CS        *intercept.Pin
	CSControl *mock.PinControl

	Transfers [][]byte
}

type buildConfig struct {
	logger *slog.Logger
	wrap   func(name string, dev spi.Transferer) spi.Transferer
}

// BuildOption configures Build.
type BuildOption func(*buildConfig)

// WithLogger sets the logger of the mock intercepts.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(c *buildConfig) { c.logger = logger }
}

// WithWrap inserts a decorator, such as a capture recorder, between the
// logged mock device and the transport.
func WithWrap(wrap func(name string, dev spi.Transferer) spi.Transferer) BuildOption {
	return func(c *buildConfig) { c.wrap = wrap }
}

// Build creates the mocks, programs them and composes the transport.
func Build(sc *Scenario, options ...BuildOption) (*Bench, error) {
	var cfg buildConfig
	for _, opt := range options {
		opt(&cfg)
	}

	bufs, err := sc.Buffers()
	if err != nil {
		return nil, err
	}

	b := &Bench{Name: sc.Name, Transfers: bufs}

	b.SPI, b.SPIControl = mock.NewSPI(sc.SPI.Name, spiOptions(sc.SPI, cfg.logger)...)
	if e := sc.SPI.Error; e != nil {
		b.SPIControl.SetErrorDeferBytes(e.DeferBytes).SetError(mock.SPIErrTransfer)
	}

	var dev spi.Transferer = b.SPI
	if cfg.wrap != nil {
		dev = cfg.wrap(sc.SPI.Name, dev)
	}

	if sc.CS == nil {
		b.Transport = spi.NewTransport(dev)
		return b, nil
	}

	b.CS, b.CSControl = mock.NewPin(sc.CS.Name, pinOptions(sc.CS, cfg.logger)...)
	b.Transport = spi.NewChipSelectTransport(dev, b.CS, sc.CS.Polarity)

	// Armed after construction so the initial deselect cannot consume it.
	switch sc.CS.Error {
	case "set-high":
		b.CSControl.SetError(mock.PinErrSetHigh)
	case "set-low":
		b.CSControl.SetError(mock.PinErrSetLow)
	}
	return b, nil
}

func spiOptions(c SPIConfig, logger *slog.Logger) []mock.Option {
	var opts []mock.Option
	if logger != nil {
		opts = append(opts, mock.WithLogger(logger))
	}
	if c.Log != nil && !*c.Log {
		opts = append(opts, mock.WithoutLog())
	} else if c.Bytes {
		opts = append(opts, mock.WithByteLog())
	}
	if g := generator(c); g != nil {
		opts = append(opts, mock.WithGenerator(g))
	}
	if c.ByteDelay > 0 {
		opts = append(opts, mock.WithByteDelay(c.ByteDelay))
	}
	return opts
}

func pinOptions(c *CSConfig, logger *slog.Logger) []mock.Option {
	var opts []mock.Option
	if logger != nil {
		opts = append(opts, mock.WithLogger(logger))
	}
	if c.Log != nil && !*c.Log {
		opts = append(opts, mock.WithoutLog())
	}
	if c.Delay > 0 {
		opts = append(opts, mock.WithDelay(c.Delay))
	}
	return opts
}

func generator(c SPIConfig) mock.Generator {
	switch c.Generator {
	case "echo":
		return mock.Echo
	case "zeros":
		return mock.Zeros
	case "constant":
		return mock.Constant(c.Constant)
	case "invert":
		return mock.Invert
	case "sequence":
		return mock.Sequence(c.Sequence...)
	default:
		return nil
	}
}

// Result is the outcome of one bench transfer.
type Result struct {
	TX  []byte
	RX  []byte
	Err error
}

// Run performs every transfer in order and returns the results. A failed
// transfer does not stop the run.
func (b *Bench) Run() []Result {
	results := make([]Result, 0, len(b.Transfers))
	for _, buf := range b.Transfers {
		tx := append([]byte(nil), buf...)
		rx, err := b.Transport.Transfer(append([]byte(nil), buf...))
		results = append(results, Result{TX: tx, RX: rx, Err: err})
	}
	return results
}
