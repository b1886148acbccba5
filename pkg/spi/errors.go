package spi

import (
	"errors"
	"fmt"
)

// Error is the closed set of failures reported by a transport. Values are
// comparable, so callers can match them with errors.Is even when a device
// cause has been wrapped alongside.
type Error uint8

const (
	ErrTransfer Error = iota + 1
	ErrChipSelect
	ErrChipDeselect
	ErrClockSpeed
	// ErrNotImplemented lets a device signal that it lacks a capability,
	// as opposed to the capability failing.
	ErrNotImplemented
)

func (e Error) Error() string {
	switch e {
	case ErrTransfer:
		return "spi: transfer failed"
	case ErrChipSelect:
		return "spi: select chip failed"
	case ErrChipDeselect:
		return "spi: deselect chip failed"
	case ErrClockSpeed:
		return "spi: set clock speed failed"
	case ErrNotImplemented:
		return "spi: not implemented"
	default:
		return fmt.Sprintf("spi: error(%d)", uint8(e))
	}
}

// wrap tags cause with kind. A cause that already carries an spi.Error is
// returned as is so nested transports do not stack kinds.
func wrap(kind Error, cause error) error {
	if cause == nil {
		return nil
	}
	var existing Error
	if errors.As(cause, &existing) {
		return cause
	}
	return fmt.Errorf("%w: %w", kind, cause)
}

// tag always reports kind, even when cause already carries another kind.
// Pin failures use it: a failed select is ErrChipSelect whatever the pin
// returned.
func tag(kind Error, cause error) error {
	if cause == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, cause)
}
