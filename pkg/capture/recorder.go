package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

// Recorder writes a Record for every transfer of the device it wraps. It
// never changes a transfer result; a failed write is kept for Err.
// Capabilities of the wrapped device are forwarded.
type Recorder struct {
	name    string
	dev     spi.Transferer
	w       *Writer
	session string

	mu  sync.Mutex
	seq uint64
	err error
}

// NewRecorder wraps dev. Each Recorder gets its own session ID.
func NewRecorder(name string, dev spi.Transferer, w *Writer) *Recorder {
	return &Recorder{
		name:    name,
		dev:     dev,
		w:       w,
		session: uuid.New().String(),
	}
}

func (r *Recorder) Session() string { return r.session }

// Err returns the first error hit while writing records.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Unwrap returns the wrapped device.
func (r *Recorder) Unwrap() spi.Transferer { return r.dev }

func (r *Recorder) Transfer(buf []byte) ([]byte, error) {
	return r.record(buf, r.dev.Transfer)
}

// RawTransfer is recorded like Transfer.
func (r *Recorder) RawTransfer(buf []byte) ([]byte, error) {
	return r.record(buf, func(b []byte) ([]byte, error) {
		return spi.RawTransferOf(r.dev, b)
	})
}

func (r *Recorder) record(buf []byte, transfer func([]byte) ([]byte, error)) ([]byte, error) {
	tx := append([]byte(nil), buf...)
	start := time.Now()
	rx, err := transfer(buf)

	rec := Record{
		Session:  r.session,
		Time:     start,
		Device:   r.name,
		TX:       tx,
		Duration: time.Since(start),
	}
	if err != nil {
		rec.Err = err.Error()
	} else {
		rec.RX = append([]byte(nil), rx...)
	}

	r.mu.Lock()
	r.seq++
	rec.Seq = r.seq
	r.mu.Unlock()

	if werr := r.w.Write(rec); werr != nil {
		r.mu.Lock()
		if r.err == nil {
			r.err = werr
		}
		r.mu.Unlock()
	}
	return rx, err
}

func (r *Recorder) Select() error {
	if cs, ok := spi.AsChipSelector(r.dev); ok {
		return cs.Select()
	}
	return spi.ErrNotImplemented
}

func (r *Recorder) Deselect() error {
	if cs, ok := spi.AsChipSelector(r.dev); ok {
		return cs.Deselect()
	}
	return spi.ErrNotImplemented
}

func (r *Recorder) SetClockSpeed(hz uint32) error {
	if cs, ok := spi.AsClockSetter(r.dev); ok {
		return cs.SetClockSpeed(hz)
	}
	return spi.ErrNotImplemented
}

func (r *Recorder) IsChipSelect() bool {
	_, ok := spi.AsChipSelector(r.dev)
	return ok
}

func (r *Recorder) IsClockSpeed() bool {
	_, ok := spi.AsClockSetter(r.dev)
	return ok
}

var _ spi.Device = (*Recorder)(nil)
