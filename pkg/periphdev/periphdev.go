// Package periphdev adapts periph.io SPI ports and GPIO pins to the spi
// package interfaces, for SPI controllers exposed by the host (spidev on
// Linux, FT232H and others periph.io supports).
package periphdev

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	pspi "periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// Conn is the part of a periph.io SPI connection the Device uses.
type Conn interface {
	Tx(w, r []byte) error
}

// SpeedLimiter is implemented by periph.io SPI ports.
type SpeedLimiter interface {
	LimitSpeed(f physic.Frequency) error
}

// Device exchanges bytes over a periph.io connection.
type Device struct {
	spi.Unsupported

	mu      sync.Mutex
	conn    Conn
	limiter SpeedLimiter
	closer  io.Closer
	rx      []byte
}

// New wraps conn. limiter may be nil, in which case the clock speed is
// fixed.
func New(conn Conn, limiter SpeedLimiter) *Device {
	return &Device{conn: conn, limiter: limiter}
}

// Transfer sends buf and overwrites it with the bytes read.
func (d *Device) Transfer(buf []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cap(d.rx) < len(buf) {
		d.rx = make([]byte, len(buf))
	}
	rx := d.rx[:len(buf)]
	if err := d.conn.Tx(buf, rx); err != nil {
		return nil, fmt.Errorf("periphdev: tx: %w", err)
	}
	copy(buf, rx)
	return buf, nil
}

func (d *Device) RawTransfer(buf []byte) ([]byte, error) {
	return d.Transfer(buf)
}

func (d *Device) SetClockSpeed(hz uint32) error {
	if d.limiter == nil {
		return spi.ErrNotImplemented
	}
	if err := d.limiter.LimitSpeed(physic.Frequency(hz) * physic.Hertz); err != nil {
		return fmt.Errorf("%w: %w", spi.ErrClockSpeed, err)
	}
	return nil
}

func (d *Device) IsClockSpeed() bool { return d.limiter != nil }

// Close closes the port opened by Open.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// Output is the part of a gpio.PinOut the Pin uses.
type Output interface {
	Out(l gpio.Level) error
}

// Pin drives a periph.io output as a chip-select line.
type Pin struct {
	out Output
}

func NewPin(out Output) *Pin {
	return &Pin{out: out}
}

func (p *Pin) SetHigh() error { return p.out.Out(gpio.High) }
func (p *Pin) SetLow() error  { return p.out.Out(gpio.Low) }

// Open initialises the host drivers and opens the SPI port bus in mode 0 at
// hz. With csPin set, the port's own chip select is disabled and the named
// GPIO is returned for use with spi.NewChipSelectTransport; otherwise the
// returned pin is nil.
func Open(bus, csPin string, hz uint32) (*Device, spi.OutputPin, error) {
	if hz == 0 {
		return nil, nil, errors.New("periphdev: clock speed must be set")
	}
	if _, err := host.Init(); err != nil {
		return nil, nil, fmt.Errorf("periphdev: init host: %w", err)
	}

	port, err := spireg.Open(bus)
	if err != nil {
		return nil, nil, fmt.Errorf("periphdev: open %q: %w", bus, err)
	}

	mode := pspi.Mode0
	var cs spi.OutputPin
	if csPin != "" {
		p := gpioreg.ByName(csPin)
		if p == nil {
			port.Close()
			return nil, nil, fmt.Errorf("periphdev: no gpio %q", csPin)
		}
		mode |= pspi.NoCS
		cs = NewPin(p)
	}

	conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, mode, 8)
	if err != nil {
		port.Close()
		return nil, nil, fmt.Errorf("periphdev: connect %q: %w", bus, err)
	}

	dev := New(conn, port)
	dev.closer = port
	return dev, cs, nil
}

var (
	_ spi.Device    = (*Device)(nil)
	_ spi.OutputPin = (*Pin)(nil)
	_ Conn          = pspi.Conn(nil)
	_ SpeedLimiter  = pspi.PortCloser(nil)
	_ Output        = gpio.PinOut(nil)
)
