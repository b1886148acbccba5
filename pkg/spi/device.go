package spi

// Transferer exchanges len(buf) bytes in place: the bytes in buf are sent
// and overwritten with the bytes received. On success the returned slice
// aliases buf.
type Transferer interface {
	Transfer(buf []byte) ([]byte, error)
}

// OutputPin is a digital output line, typically a chip-select.
type OutputPin interface {
	SetHigh() error
	SetLow() error
}

// ChipSelector drives the chip-select line of a device.
type ChipSelector interface {
	Select() error
	Deselect() error
}

// ClockSetter changes the bus clock of a device.
type ClockSetter interface {
	SetClockSpeed(hz uint32) error
}

// Device abstracts a serial peripheral. Transfer is the full operation
// callers use; the remaining methods are capabilities a device may or may
// not have. Embed Unsupported to inherit the ErrNotImplemented defaults and
// override only what the device provides.
type Device interface {
	Transferer
	RawTransfer(buf []byte) ([]byte, error)
	Select() error
	Deselect() error
	SetClockSpeed(hz uint32) error
	IsChipSelect() bool
	IsClockSpeed() bool
}

// Unsupported supplies the default capability methods of Device.
type Unsupported struct{}

func (Unsupported) RawTransfer([]byte) ([]byte, error) { return nil, ErrNotImplemented }
func (Unsupported) Select() error                      { return ErrNotImplemented }
func (Unsupported) Deselect() error                    { return ErrNotImplemented }
func (Unsupported) SetClockSpeed(uint32) error         { return ErrNotImplemented }
func (Unsupported) IsChipSelect() bool                 { return false }
func (Unsupported) IsClockSpeed() bool                 { return false }

// AsClockSetter reports whether dev can change its clock speed. A device
// that has the method but answers false from IsClockSpeed is treated as
// lacking the capability; wrappers rely on this to forward capabilities
// faithfully.
func AsClockSetter(dev any) (ClockSetter, bool) {
	cs, ok := dev.(ClockSetter)
	if !ok {
		return nil, false
	}
	if q, ok := dev.(interface{ IsClockSpeed() bool }); ok && !q.IsClockSpeed() {
		return nil, false
	}
	return cs, true
}

// AsChipSelector is the chip-select counterpart of AsClockSetter.
func AsChipSelector(dev any) (ChipSelector, bool) {
	cs, ok := dev.(ChipSelector)
	if !ok {
		return nil, false
	}
	if q, ok := dev.(interface{ IsChipSelect() bool }); ok && !q.IsChipSelect() {
		return nil, false
	}
	return cs, true
}

// RawTransferOf exchanges buf on dev without chip-select side effects. A
// plain Transferer has none to begin with, so its Transfer is used.
func RawTransferOf(dev Transferer, buf []byte) ([]byte, error) {
	if raw, ok := dev.(interface {
		RawTransfer([]byte) ([]byte, error)
	}); ok {
		return raw.RawTransfer(buf)
	}
	return dev.Transfer(buf)
}
