package mock

import (
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// PinError is a fault the mock pin can be armed with. Each kind only fires
// on a call in its own direction.
type PinError uint8

const (
	PinErrSetHigh PinError = iota + 1
	PinErrSetLow
)

func (e PinError) Error() string {
	switch e {
	case PinErrSetHigh:
		return "mock pin: set high error"
	case PinErrSetLow:
		return "mock pin: set low error"
	default:
		return "mock pin: unknown error"
	}
}

type pinDevice struct {
	mu    sync.Mutex
	opts  *intercept.Options
	delay time.Duration
	err   PinError
	armed bool
	value bool
}

func (d *pinDevice) set(level bool, kind PinError) error {
	d.mu.Lock()
	delay := d.delay
	d.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.armed && d.err == kind {
		d.armed = false
		return kind
	}
	d.value = level
	return nil
}

// Pin is the device handle of a mock output pin.
type Pin struct {
	dev *pinDevice
}

func (p *Pin) SetHigh() error { return p.dev.set(true, PinErrSetHigh) }
func (p *Pin) SetLow() error  { return p.dev.set(false, PinErrSetLow) }

var _ spi.OutputPin = (*Pin)(nil)

// PinControl manipulates a mock pin from the test side.
type PinControl struct {
	dev *pinDevice
}

func (c *PinControl) SetLog(on bool) *PinControl {
	c.dev.opts.SetLog(on)
	return c
}

// SetDelay sets a blocking delay applied before every level change.
func (c *PinControl) SetDelay(d time.Duration) *PinControl {
	c.dev.mu.Lock()
	c.dev.delay = max(d, 0)
	c.dev.mu.Unlock()
	return c
}

func (c *PinControl) ClearDelay() *PinControl {
	return c.SetDelay(0)
}

// SetError arms a one-shot fault for the next call in the direction err
// names.
func (c *PinControl) SetError(err PinError) *PinControl {
	c.dev.mu.Lock()
	c.dev.err = err
	c.dev.armed = true
	c.dev.mu.Unlock()
	return c
}

func (c *PinControl) ClearError() *PinControl {
	c.dev.mu.Lock()
	c.dev.err = 0
	c.dev.armed = false
	c.dev.mu.Unlock()
	return c
}

// ArmedError reports the armed fault.
func (c *PinControl) ArmedError() (PinError, bool) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.err, c.dev.armed
}

// Value reports the current level; true is high.
func (c *PinControl) Value() bool {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.value
}

// NewPin creates a mock output pin wrapped in a logging intercept, and its
// control. The pin starts high.
func NewPin(name string, options ...Option) (*intercept.Pin, *PinControl) {
	cfg := newConfig(options)
	opts := intercept.NewOptions()
	dev := &pinDevice{opts: opts, value: true}
	control := &PinControl{dev: dev}

	wrapped := intercept.NewPin(name, &Pin{dev: dev}, cfg.interceptOptions(opts)...)

	if cfg.delay > 0 {
		control.SetDelay(cfg.delay)
	}
	return wrapped, control
}
