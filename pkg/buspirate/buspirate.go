// Package buspirate drives a Bus Pirate in binary SPI mode over a serial
// port.
package buspirate

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

const (
	cmdReset     = 0x00
	cmdSPIMode   = 0x01
	cmdCSLow     = 0x02
	cmdCSHigh    = 0x03
	cmdExit      = 0x0F
	cmdBulk      = 0x10
	cmdSpeed     = 0x60
	cmdConfig    = 0x80
	ack          = 0x01
	maxBulk      = 16
	resetTries   = 20
	defaultBaud  = 115200
	readDeadline = 100 * time.Millisecond
)

// Speeds lists the clock rates the SPI mode supports, indexed by their
// speed command value.
var Speeds = []uint32{30_000, 125_000, 250_000, 1_000_000, 2_000_000, 2_600_000, 4_000_000, 8_000_000}

var (
	// ErrProtocol is returned when the Bus Pirate answers something
	// unexpected.
	ErrProtocol = errors.New("buspirate: unexpected response")

	// ErrTimeout is returned when the Bus Pirate does not answer in time.
	ErrTimeout = errors.New("buspirate: read timeout")
)

// Port is the serial connection. go.bug.st/serial ports satisfy it.
type Port interface {
	io.ReadWriter
	Close() error
}

// Config is the SPI configuration command.
type Config struct {
	// PushPull drives outputs at 3.3V instead of open drain.
	PushPull bool
	// IdleHigh sets clock polarity (CKP).
	IdleHigh bool
	// ActiveToIdle sets the output clock edge (CKE).
	ActiveToIdle bool
	// SampleEnd samples input at the end of the clock (SMP).
	SampleEnd bool
}

// DefaultConfig is SPI mode 0 with push-pull outputs.
var DefaultConfig = Config{PushPull: true, ActiveToIdle: true}

func (c Config) command() byte {
	b := byte(cmdConfig)
	if c.PushPull {
		b |= 1 << 3
	}
	if c.IdleHigh {
		b |= 1 << 2
	}
	if c.ActiveToIdle {
		b |= 1 << 1
	}
	if c.SampleEnd {
		b |= 1
	}
	return b
}

// Device is a Bus Pirate in binary SPI mode. Transfers do not touch the CS
// line; compose CS with spi.NewChipSelectTransport.
type Device struct {
	spi.Unsupported

	mu     sync.Mutex
	port   Port
	hz     uint32
	logger *slog.Logger
}

type config struct {
	logger      *slog.Logger
	readTimeout time.Duration
	spiConfig   Config
}

// Option configures a Device.
type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithReadTimeout sets the serial read timeout used by Open.
func WithReadTimeout(d time.Duration) Option {
	return func(c *config) { c.readTimeout = d }
}

// WithConfig sets the SPI configuration applied when the device starts.
func WithConfig(cfg Config) Option {
	return func(c *config) { c.spiConfig = cfg }
}

func newConfig(options []Option) config {
	c := config{readTimeout: readDeadline, spiConfig: DefaultConfig}
	for _, opt := range options {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Open opens the serial port at path and puts the Bus Pirate into SPI mode.
func Open(path string, options ...Option) (*Device, error) {
	cfg := newConfig(options)

	port, err := serial.Open(path, &serial.Mode{BaudRate: defaultBaud})
	if err != nil {
		return nil, fmt.Errorf("buspirate: open %s: %w", path, err)
	}
	if err := port.SetReadTimeout(cfg.readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("buspirate: set read timeout: %w", err)
	}

	dev, err := New(port, options...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return dev, nil
}

// New takes over an open port and puts the Bus Pirate into SPI mode.
func New(port Port, options ...Option) (*Device, error) {
	cfg := newConfig(options)
	d := &Device{port: port, hz: Speeds[0], logger: cfg.logger.With("adapter", "buspirate")}

	if err := d.enterBinary(); err != nil {
		return nil, err
	}
	if err := d.write(cmdSPIMode); err != nil {
		return nil, err
	}
	if err := d.expect("SPI1"); err != nil {
		return nil, fmt.Errorf("buspirate: enter spi mode: %w", err)
	}
	d.logger.Debug("spi mode")

	if err := d.SetConfig(cfg.spiConfig); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Device) enterBinary() error {
	for i := 0; i < resetTries; i++ {
		if err := d.write(cmdReset); err != nil {
			return err
		}
		err := d.expect("BBIO1")
		if err == nil {
			d.logger.Debug("binary mode", "tries", i+1)
			return nil
		}
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrProtocol) {
			return err
		}
	}
	return fmt.Errorf("buspirate: no binary mode after %d tries: %w", resetTries, ErrProtocol)
}

// Transfer exchanges buf in place, in bulk commands of up to 16 bytes.
func (d *Device) Transfer(buf []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for start := 0; start < len(buf); start += maxBulk {
		chunk := buf[start:min(start+maxBulk, len(buf))]
		if err := d.write(append([]byte{cmdBulk | byte(len(chunk)-1)}, chunk...)...); err != nil {
			return nil, err
		}
		resp, err := d.read(1 + len(chunk))
		if err != nil {
			return nil, err
		}
		if resp[0] != ack {
			return nil, fmt.Errorf("%w: bulk transfer 0x%02x", ErrProtocol, resp[0])
		}
		copy(chunk, resp[1:])
	}
	return buf, nil
}

// RawTransfer is Transfer; the bulk command never drives CS.
func (d *Device) RawTransfer(buf []byte) ([]byte, error) {
	return d.Transfer(buf)
}

// SetClockSpeed selects the fastest supported rate not above hz.
func (d *Device) SetClockSpeed(hz uint32) error {
	idx := -1
	for i, s := range Speeds {
		if s <= hz {
			idx = i
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %d Hz is below %d Hz", spi.ErrClockSpeed, hz, Speeds[0])
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command(cmdSpeed | byte(idx)); err != nil {
		return fmt.Errorf("%w: %w", spi.ErrClockSpeed, err)
	}
	d.hz = Speeds[idx]
	d.logger.Debug("clock speed", "hz", d.hz)
	return nil
}

func (d *Device) IsClockSpeed() bool { return true }

// ClockSpeed returns the rate last set.
func (d *Device) ClockSpeed() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.hz
}

// SetConfig sends the SPI configuration command.
func (d *Device) SetConfig(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command(cfg.command()); err != nil {
		return fmt.Errorf("buspirate: set config: %w", err)
	}
	return nil
}

// CS returns the hardware chip-select line. Low is active.
func (d *Device) CS() spi.OutputPin {
	return csPin{d: d}
}

// Close returns the Bus Pirate to its terminal and closes the port.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.write(cmdReset); err == nil {
		if err := d.expect("BBIO1"); err != nil {
			d.logger.Warn("leave spi mode", "err", err)
		}
		if err := d.write(cmdExit); err != nil {
			d.logger.Warn("reset", "err", err)
		}
	}
	return d.port.Close()
}

type csPin struct {
	d *Device
}

func (p csPin) SetHigh() error { return p.set(cmdCSHigh) }
func (p csPin) SetLow() error  { return p.set(cmdCSLow) }

func (p csPin) set(cmd byte) error {
	p.d.mu.Lock()
	defer p.d.mu.Unlock()
	return p.d.command(cmd)
}

// command sends a single byte command and checks its acknowledgement.
func (d *Device) command(cmd byte) error {
	if err := d.write(cmd); err != nil {
		return err
	}
	resp, err := d.read(1)
	if err != nil {
		return err
	}
	if resp[0] != ack {
		return fmt.Errorf("%w: command 0x%02x answered 0x%02x", ErrProtocol, cmd, resp[0])
	}
	return nil
}

func (d *Device) expect(want string) error {
	resp, err := d.read(len(want))
	if err != nil {
		return err
	}
	if string(resp) != want {
		return fmt.Errorf("%w: got %q, want %q", ErrProtocol, resp, want)
	}
	return nil
}

func (d *Device) write(b ...byte) error {
	if _, err := d.port.Write(b); err != nil {
		return fmt.Errorf("buspirate: write: %w", err)
	}
	return nil
}

// read reads exactly n bytes. A read returning nothing is a timeout.
func (d *Device) read(n int) ([]byte, error) {
	buf := make([]byte, n)
	for got := 0; got < n; {
		m, err := d.port.Read(buf[got:])
		if err != nil {
			return nil, fmt.Errorf("buspirate: read: %w", err)
		}
		if m == 0 {
			return nil, ErrTimeout
		}
		got += m
	}
	return buf, nil
}

var (
	_ spi.Device    = (*Device)(nil)
	_ spi.OutputPin = csPin{}
)
