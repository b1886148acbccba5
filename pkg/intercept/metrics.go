package intercept

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// Metrics holds the Prometheus collectors shared by instrumented devices.
type Metrics struct {
	transfers *prometheus.CounterVec
	bytes     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spi_transfers_total",
				Help: "SPI transfers by device and result",
			},
			[]string{"device", "result"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spi_bytes_total",
				Help: "Bytes moved over SPI by device and direction",
			},
			[]string{"device", "direction"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spi_transfer_duration_seconds",
				Help:    "Duration of SPI transfers",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"device"},
		),
	}

	var err error
	if m.transfers, err = register(reg, m.transfers); err != nil {
		return nil, err
	}
	if m.bytes, err = register(reg, m.bytes); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Instrument wraps dev so its transfers are counted under name.
func (m *Metrics) Instrument(name string, dev spi.Transferer) *Instrumented {
	return &Instrumented{name: name, dev: dev, m: m}
}

// Instrumented counts transfers, bytes and latency of a device. Like the
// logging intercept it never changes a result, and the capabilities of the
// wrapped device are forwarded.
type Instrumented struct {
	name string
	dev  spi.Transferer
	m    *Metrics
}

// Unwrap returns the wrapped device.
func (i *Instrumented) Unwrap() spi.Transferer { return i.dev }

func (i *Instrumented) Transfer(buf []byte) ([]byte, error) {
	return i.observe(buf, i.dev.Transfer)
}

// RawTransfer is counted like Transfer.
func (i *Instrumented) RawTransfer(buf []byte) ([]byte, error) {
	return i.observe(buf, func(b []byte) ([]byte, error) {
		return spi.RawTransferOf(i.dev, b)
	})
}

func (i *Instrumented) observe(buf []byte, transfer func([]byte) ([]byte, error)) ([]byte, error) {
	n := len(buf)
	start := time.Now()
	rx, err := transfer(buf)
	i.m.duration.WithLabelValues(i.name).Observe(time.Since(start).Seconds())

	i.m.bytes.WithLabelValues(i.name, "tx").Add(float64(n))
	if err != nil {
		i.m.transfers.WithLabelValues(i.name, "error").Inc()
		return rx, err
	}
	i.m.bytes.WithLabelValues(i.name, "rx").Add(float64(len(rx)))
	i.m.transfers.WithLabelValues(i.name, "ok").Inc()
	return rx, nil
}

func (i *Instrumented) Select() error {
	if cs, ok := spi.AsChipSelector(i.dev); ok {
		return cs.Select()
	}
	return spi.ErrNotImplemented
}

func (i *Instrumented) Deselect() error {
	if cs, ok := spi.AsChipSelector(i.dev); ok {
		return cs.Deselect()
	}
	return spi.ErrNotImplemented
}

func (i *Instrumented) SetClockSpeed(hz uint32) error {
	if cs, ok := spi.AsClockSetter(i.dev); ok {
		return cs.SetClockSpeed(hz)
	}
	return spi.ErrNotImplemented
}

func (i *Instrumented) IsChipSelect() bool {
	_, ok := spi.AsChipSelector(i.dev)
	return ok
}

func (i *Instrumented) IsClockSpeed() bool {
	_, ok := spi.AsClockSetter(i.dev)
	return ok
}

var _ spi.Device = (*Instrumented)(nil)
