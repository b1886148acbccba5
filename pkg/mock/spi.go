// Package mock simulates SPI byte-exchange devices and output pins for
// tests. Every mock comes as a pair: the device handle, which behaves like
// hardware behind the usual interfaces, and a control handle that lets a
// test program responses, timing and faults on the same live state.
package mock

import (
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// SPIError is a fault the mock SPI device can be armed with.
type SPIError uint8

const (
	SPIErrTransfer SPIError = iota + 1
)

func (e SPIError) Error() string {
	switch e {
	case SPIErrTransfer:
		return "mock spi: transfer error"
	default:
		return "mock spi: unknown error"
	}
}

// Generator produces the bytes a mock device answers with, given the bytes
// sent. Missing response bytes read as 0x00 and extra ones are ignored.
type Generator func(tx []byte) []byte

// spiDevice is the state shared by SPI and SPIControl. The mutex is held
// for single byte-index steps only, never across a delay, so control calls
// made while a transfer sleeps are seen at its next byte.
type spiDevice struct {
	mu        sync.Mutex
	opts      *intercept.Options
	generator Generator
	byteDelay time.Duration
	err       SPIError
	armed     bool
	// errAfter counts the bytes still to pass before an armed error may
	// fire. It is reset to zero when the error fires.
	errAfter int
}

func (d *spiDevice) transfer(buf []byte) ([]byte, error) {
	d.mu.Lock()
	generator := d.generator
	d.mu.Unlock()

	var rx []byte
	if generator != nil {
		rx = generator(buf)
	}

	for i := range buf {
		d.mu.Lock()
		if d.armed && d.errAfter == i {
			err := d.err
			d.armed = false
			d.errAfter = 0
			d.mu.Unlock()
			return nil, err
		}
		delay := d.byteDelay
		d.mu.Unlock()

		if i < len(rx) {
			buf[i] = rx[i]
		} else {
			buf[i] = 0x00
		}

		if delay > 0 {
			time.Sleep(delay)
		}
	}

	d.mu.Lock()
	d.errAfter = max(d.errAfter-len(buf), 0)
	d.mu.Unlock()

	return buf, nil
}

// SPI is the device handle of a mock SPI device.
type SPI struct {
	dev *spiDevice
}

func (s *SPI) Transfer(buf []byte) ([]byte, error) {
	return s.dev.transfer(buf)
}

var _ spi.Transferer = (*SPI)(nil)

// SPIControl manipulates a mock SPI device from the test side. Its methods
// return the control so calls can be chained.
type SPIControl struct {
	dev *spiDevice
}

// SetLog sets whether events are logged.
func (c *SPIControl) SetLog(on bool) *SPIControl {
	c.dev.opts.SetLog(on)
	return c
}

// SetLogBytes sets whether tx/rx bytes are dumped after each transfer.
func (c *SPIControl) SetLogBytes(on bool) *SPIControl {
	c.dev.opts.SetBytes(on)
	return c
}

// SetGenerator sets the function providing rx bytes. The same Generator may
// be given to any number of mocks.
func (c *SPIControl) SetGenerator(g Generator) *SPIControl {
	c.dev.mu.Lock()
	c.dev.generator = g
	c.dev.mu.Unlock()
	return c
}

// ClearGenerator removes the generator; transfers then read all zeros.
func (c *SPIControl) ClearGenerator() *SPIControl {
	return c.SetGenerator(nil)
}

// SetByteDelay sets a blocking delay applied after every byte.
func (c *SPIControl) SetByteDelay(d time.Duration) *SPIControl {
	c.dev.mu.Lock()
	c.dev.byteDelay = max(d, 0)
	c.dev.mu.Unlock()
	return c
}

func (c *SPIControl) ClearByteDelay() *SPIControl {
	return c.SetByteDelay(0)
}

// SetError arms a one-shot fault. It fires at the first byte index the
// deferral counter allows, then disarms.
func (c *SPIControl) SetError(err SPIError) *SPIControl {
	c.dev.mu.Lock()
	c.dev.err = err
	c.dev.armed = true
	c.dev.mu.Unlock()
	return c
}

// SetErrorDeferBytes holds an armed fault back until n more bytes have been
// transferred, counted across transfers. Negative values count as zero.
func (c *SPIControl) SetErrorDeferBytes(n int) *SPIControl {
	c.dev.mu.Lock()
	c.dev.errAfter = max(n, 0)
	c.dev.mu.Unlock()
	return c
}

// ClearError disarms the fault, if any.
func (c *SPIControl) ClearError() *SPIControl {
	c.dev.mu.Lock()
	c.dev.err = 0
	c.dev.armed = false
	c.dev.mu.Unlock()
	return c
}

// ArmedError reports the armed fault.
func (c *SPIControl) ArmedError() (SPIError, bool) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.err, c.dev.armed
}

// ErrorDeferBytes reports how many bytes remain before an armed fault may
// fire.
func (c *SPIControl) ErrorDeferBytes() int {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.errAfter
}

// NewSPI creates a mock SPI device wrapped in a logging intercept, and its
// control. The intercept and the control share one set of logging options.
func NewSPI(name string, options ...Option) (*intercept.SPI, *SPIControl) {
	cfg := newConfig(options)
	opts := intercept.NewOptions()
	dev := &spiDevice{opts: opts}
	control := &SPIControl{dev: dev}

	wrapped := intercept.NewSPI(name, &SPI{dev: dev}, cfg.interceptOptions(opts)...)

	if cfg.byteDelay > 0 {
		control.SetByteDelay(cfg.byteDelay)
	}
	if cfg.generator != nil {
		control.SetGenerator(cfg.generator)
	}
	return wrapped, control
}
