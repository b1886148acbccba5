package intercept

import (
	"log/slog"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// SPI logs the transfers of the device it wraps. Capabilities of the wrapped
// device (chip select, clock speed) are forwarded untouched.
type SPI struct {
	name   string
	dev    spi.Transferer
	opts   *Options
	logger *slog.Logger
}

// NewSPI wraps dev. Logging is on by default.
func NewSPI(name string, dev spi.Transferer, options ...Option) *SPI {
	c := newConfig(name, options)
	return &SPI{name: name, dev: dev, opts: c.opts, logger: c.logger}
}

func (s *SPI) Name() string        { return s.name }
func (s *SPI) Options() *Options   { return s.opts }
func (s *SPI) SetLog(on bool)      { s.opts.SetLog(on) }
func (s *SPI) SetLogBytes(on bool) { s.opts.SetBytes(on) }

// Unwrap returns the wrapped device.
func (s *SPI) Unwrap() spi.Transferer { return s.dev }

func (s *SPI) Transfer(buf []byte) ([]byte, error) {
	return s.observe(buf, s.dev.Transfer)
}

func (s *SPI) RawTransfer(buf []byte) ([]byte, error) {
	return s.observe(buf, func(b []byte) ([]byte, error) {
		return spi.RawTransferOf(s.dev, b)
	})
}

func (s *SPI) observe(buf []byte, transfer func([]byte) ([]byte, error)) ([]byte, error) {
	logOn, bytesOn := s.opts.Log(), s.opts.Bytes()
	if !logOn {
		return transfer(buf)
	}

	s.logger.Info("start transfer", "bytes", len(buf))
	var tx []byte
	if bytesOn {
		tx = append([]byte(nil), buf...)
	}

	rx, err := transfer(buf)
	if err != nil {
		s.logger.Error("transfer failed", "err", err)
		return rx, err
	}

	s.logger.Info("transfer complete")
	if bytesOn {
		for _, row := range DumpRows(tx, rx) {
			s.logger.Info("tx", "range", row.Range, "data", row.TX)
			s.logger.Info("rx", "range", row.Range, "data", row.RX)
		}
	}
	return rx, err
}

func (s *SPI) Select() error {
	if cs, ok := spi.AsChipSelector(s.dev); ok {
		return cs.Select()
	}
	return spi.ErrNotImplemented
}

func (s *SPI) Deselect() error {
	if cs, ok := spi.AsChipSelector(s.dev); ok {
		return cs.Deselect()
	}
	return spi.ErrNotImplemented
}

func (s *SPI) SetClockSpeed(hz uint32) error {
	if cs, ok := spi.AsClockSetter(s.dev); ok {
		return cs.SetClockSpeed(hz)
	}
	return spi.ErrNotImplemented
}

func (s *SPI) IsChipSelect() bool {
	_, ok := spi.AsChipSelector(s.dev)
	return ok
}

func (s *SPI) IsClockSpeed() bool {
	_, ok := spi.AsClockSetter(s.dev)
	return ok
}

var _ spi.Device = (*SPI)(nil)
