// Package capture records SPI transfers to CBOR trace files and reads them
// back.
package capture

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one captured transfer. CBOR encoding uses integer keys.
type Record struct {
	// Session identifies the recorder that wrote the record (UUID).
	Session string `cbor:"1,keyasint"`

	// Seq numbers records of a session from 1.
	Seq uint64 `cbor:"2,keyasint"`

	Time   time.Time `cbor:"3,keyasint"`
	Device string    `cbor:"4,keyasint"`

	TX []byte `cbor:"5,keyasint"`
	RX []byte `cbor:"6,keyasint,omitempty"`

	// Err holds the error text of a failed transfer.
	Err string `cbor:"7,keyasint,omitempty"`

	Duration time.Duration `cbor:"8,keyasint"`
}

// Failed reports whether the transfer returned an error.
func (r Record) Failed() bool { return r.Err != "" }

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	enc    *cbor.Encoder
	closer io.Closer
	closed bool
}

// NewWriter writes records to w. Close does not close w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w)}
}

// Create truncates or creates the file at path and writes records to it.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &Writer{enc: encMode.NewEncoder(f), closer: f}, nil
}

// Write encodes rec. Writing to a closed Writer returns os.ErrClosed.
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return os.ErrClosed
	}
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("capture: encode record %d: %w", rec.Seq, err)
	}
	return nil
}

// Close closes the file opened by Create. It is safe to call more than once.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader streams records from a capture.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
}

func NewReader(r io.Reader) *Reader {
	return &Reader{dec: decMode.NewDecoder(r)}
}

// Open reads the capture file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	return &Reader{dec: decMode.NewDecoder(f), closer: f}, nil
}

// Next returns the next record, or io.EOF when there are no more.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: decode: %w", err)
	}
	return rec, nil
}

// All reads the remaining records.
func (r *Reader) All() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
