package intercept

import (
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// Pin logs the level changes of the output pin it wraps.
type Pin struct {
	name   string
	pin    spi.OutputPin
	opts   *Options
	logger *slog.Logger
}

// NewPin wraps pin. Logging is on by default.
func NewPin(name string, pin spi.OutputPin, options ...Option) *Pin {
	c := newConfig(name, options)
	return &Pin{name: name, pin: pin, opts: c.opts, logger: c.logger}
}

func (p *Pin) Name() string      { return p.name }
func (p *Pin) Options() *Options { return p.opts }
func (p *Pin) SetLog(on bool)    { p.opts.SetLog(on) }

func (p *Pin) SetHigh() error {
	err := p.pin.SetHigh()
	if p.opts.Log() {
		if err != nil {
			p.logger.Error("set high failed", "err", err)
		} else {
			p.logger.Info("high")
		}
	}
	return err
}

func (p *Pin) SetLow() error {
	err := p.pin.SetLow()
	if p.opts.Log() {
		if err != nil {
			p.logger.Error("set low failed", "err", err)
		} else {
			p.logger.Info("low")
		}
	}
	return err
}

var _ spi.OutputPin = (*Pin)(nil)
