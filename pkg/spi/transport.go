package spi

// Config selects the transport New builds. A nil CS means the device
// manages chip select itself.
type Config struct {
	CS       OutputPin
	Polarity Polarity
}

// New returns the transport matching cfg.
func New(dev Transferer, cfg Config) Device {
	if cfg.CS == nil {
		return NewTransport(dev)
	}
	return NewChipSelectTransport(dev, cfg.CS, cfg.Polarity)
}

// AutoTransport wraps a device that selects and deselects the chip on its
// own, mapping its failures onto the Error taxonomy.
type AutoTransport struct {
	Unsupported
	dev Transferer
}

// NewTransport wraps dev, which must manage chip select itself.
func NewTransport(dev Transferer) *AutoTransport {
	return &AutoTransport{dev: dev}
}

func (t *AutoTransport) Transfer(buf []byte) ([]byte, error) {
	rx, err := t.dev.Transfer(buf)
	if err != nil {
		return nil, wrap(ErrTransfer, err)
	}
	return rx, nil
}

// RawTransfer is Transfer: there is no line for it to leave alone.
func (t *AutoTransport) RawTransfer(buf []byte) ([]byte, error) {
	return t.Transfer(buf)
}

func (t *AutoTransport) SetClockSpeed(hz uint32) error {
	return setClockSpeed(t.dev, hz)
}

func (t *AutoTransport) IsClockSpeed() bool {
	_, ok := AsClockSetter(t.dev)
	return ok
}

// ChipSelectTransport brackets every exchange on dev with select and
// deselect on the cs line.
//
// The line is Idle (deselected) between calls and Selected only while an
// exchange is running. A deselect is always attempted after the exchange,
// whatever its outcome. When the exchange fails and that deselect fails too,
// ErrChipDeselect is returned and the exchange error is dropped: a line left
// selected is the fault the caller has to act on.
type ChipSelectTransport struct {
	dev      Transferer
	cs       OutputPin
	polarity Polarity
}

// NewChipSelectTransport builds the transport and drives cs to its idle
// level. A failure there is ignored; the next Transfer drives the line again.
func NewChipSelectTransport(dev Transferer, cs OutputPin, polarity Polarity) *ChipSelectTransport {
	t := &ChipSelectTransport{dev: dev, cs: cs, polarity: polarity}
	_ = t.Deselect()
	return t
}

func (t *ChipSelectTransport) Polarity() Polarity {
	return t.polarity
}

func (t *ChipSelectTransport) Transfer(buf []byte) ([]byte, error) {
	if err := t.Select(); err != nil {
		return nil, err
	}

	rx, err := t.RawTransfer(buf)
	if err != nil {
		if derr := t.Deselect(); derr != nil {
			return nil, derr
		}
		return nil, err
	}

	if err := t.Deselect(); err != nil {
		return nil, err
	}
	return rx, nil
}

func (t *ChipSelectTransport) RawTransfer(buf []byte) ([]byte, error) {
	rx, err := RawTransferOf(t.dev, buf)
	if err != nil {
		return nil, wrap(ErrTransfer, err)
	}
	return rx, nil
}

func (t *ChipSelectTransport) Select() error {
	var err error
	switch t.polarity {
	case IdleLow:
		err = t.cs.SetHigh()
	default:
		err = t.cs.SetLow()
	}
	return tag(ErrChipSelect, err)
}

func (t *ChipSelectTransport) Deselect() error {
	var err error
	switch t.polarity {
	case IdleLow:
		err = t.cs.SetLow()
	default:
		err = t.cs.SetHigh()
	}
	return tag(ErrChipDeselect, err)
}

func (t *ChipSelectTransport) SetClockSpeed(hz uint32) error {
	return setClockSpeed(t.dev, hz)
}

func (t *ChipSelectTransport) IsChipSelect() bool { return true }

func (t *ChipSelectTransport) IsClockSpeed() bool {
	_, ok := AsClockSetter(t.dev)
	return ok
}

func setClockSpeed(dev Transferer, hz uint32) error {
	cs, ok := AsClockSetter(dev)
	if !ok {
		return ErrNotImplemented
	}
	return wrap(ErrClockSpeed, cs.SetClockSpeed(hz))
}

var (
	_ Device = (*AutoTransport)(nil)
	_ Device = (*ChipSelectTransport)(nil)
)
