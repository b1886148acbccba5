// Package scenario loads YAML descriptions of simulated SPI benches: a mock
// device, an optional mock chip-select pin, their programmed faults and a
// list of transfers to run.
package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/script"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// Scenario is the YAML document.
type Scenario struct {
	Name      string    `yaml:"name"`
	SPI       SPIConfig `yaml:"spi"`
	CS        *CSConfig `yaml:"cs,omitempty"`
	Transfers []string  `yaml:"transfers"`
}

// SPIConfig describes the mock SPI device.
type SPIConfig struct {
	Name string `yaml:"name"`

	// Log defaults to true.
	Log   *bool `yaml:"log,omitempty"`
	Bytes bool  `yaml:"bytes"`

	// Generator is one of echo, zeros, constant, invert or sequence.
	// Empty means no generator, which reads zeros.
	Generator string  `yaml:"generator"`
	Constant  uint8   `yaml:"constant"`
	Sequence  []uint8 `yaml:"sequence"`

	ByteDelay time.Duration   `yaml:"byte_delay"`
	Error     *SPIErrorConfig `yaml:"error,omitempty"`
}

// SPIErrorConfig arms a fault on the mock SPI device.
type SPIErrorConfig struct {
	Kind       string `yaml:"kind"`
	DeferBytes int    `yaml:"defer_bytes"`
}

// CSConfig describes the mock chip-select pin. Without it the bench uses an
// auto-select transport.
type CSConfig struct {
	Name     string        `yaml:"name"`
	Log      *bool         `yaml:"log,omitempty"`
	Polarity spi.Polarity  `yaml:"polarity"`
	Delay    time.Duration `yaml:"delay"`

	// Error is set-high or set-low.
	Error string `yaml:"error"`
}

// LoadError describes a scenario that could not be loaded.
type LoadError struct {
	// File is empty when the scenario came from memory.
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File != "" {
		return e.File + ": " + msg
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Load reads and parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	sc, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return sc, nil
}

// Validate checks the fields Build relies on.
func (sc *Scenario) Validate() error {
	if sc.SPI.Name == "" {
		sc.SPI.Name = "SPI"
	}
	switch sc.SPI.Generator {
	case "", "echo", "zeros", "constant", "invert":
	case "sequence":
		if len(sc.SPI.Sequence) == 0 {
			return &LoadError{Message: "generator sequence needs a non-empty sequence"}
		}
	default:
		return &LoadError{Message: fmt.Sprintf("unknown generator %q", sc.SPI.Generator)}
	}
	if sc.SPI.ByteDelay < 0 {
		return &LoadError{Message: "byte_delay must not be negative"}
	}
	if e := sc.SPI.Error; e != nil {
		if e.Kind != "transfer" {
			return &LoadError{Message: fmt.Sprintf("unknown spi error kind %q", e.Kind)}
		}
		if e.DeferBytes < 0 {
			return &LoadError{Message: "defer_bytes must not be negative"}
		}
	}

	if cs := sc.CS; cs != nil {
		if cs.Name == "" {
			cs.Name = "CS"
		}
		if cs.Delay < 0 {
			return &LoadError{Message: "cs delay must not be negative"}
		}
		switch cs.Error {
		case "", "set-high", "set-low":
		default:
			return &LoadError{Message: fmt.Sprintf("unknown cs error %q", cs.Error)}
		}
	}

	if len(sc.Transfers) == 0 {
		return &LoadError{Message: "scenario must have at least one transfer"}
	}
	for i, src := range sc.Transfers {
		if _, err := script.Parse(src); err != nil {
			return &LoadError{Message: fmt.Sprintf("transfer %d", i), Cause: err}
		}
	}
	return nil
}

// Buffers parses the transfer scripts in order. Each script may hold
// several transfers.
func (sc *Scenario) Buffers() ([][]byte, error) {
	var out [][]byte
	for i, src := range sc.Transfers {
		bufs, err := script.Parse(src)
		if err != nil {
			return nil, &LoadError{Message: fmt.Sprintf("transfer %d", i), Cause: err}
		}
		out = append(out, bufs...)
	}
	return out, nil
}

const demo = `
name: demo
spi:
  name: SPI
  bytes: true
  generator: echo
  error:
    kind: transfer
    defer_bytes: 33
cs:
  name: CS
  polarity: idle-high
transfers:
  - "[1 2 3 4 1 2 3 4 8 8 8 8 9 9 9 9 23 34 45 56 56 67 67 78 78 89 89 90 5 1 2 3]"
  - "[1]"
  - "[2]"
`

// Demo is the built-in scenario: an echoing device armed to fail 33 bytes
// in, driven by a 32-byte transfer and two single-byte transfers. The third
// transfer fails.
func Demo() *Scenario {
	sc, err := Parse([]byte(demo))
	if err != nil {
		panic(fmt.Sprintf("scenario: bad demo: %v", err))
	}
	return sc
}
