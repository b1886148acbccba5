package spi

import (
	"fmt"
	"strings"
)

// Polarity names the chip-select level that means "deselected".
type Polarity uint8

const (
	// IdleHigh deselects by driving the line high and selects by driving it
	// low. This is the common active-low chip select and the default.
	IdleHigh Polarity = iota
	IdleLow
)

func (p Polarity) String() string {
	switch p {
	case IdleHigh:
		return "idle-high"
	case IdleLow:
		return "idle-low"
	default:
		return fmt.Sprintf("Polarity(%d)", uint8(p))
	}
}

// ParsePolarity accepts idle-high/idle-low and the shorthand
// active-low/active-high.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle-high", "idlehigh", "active-low", "":
		return IdleHigh, nil
	case "idle-low", "idlelow", "active-high":
		return IdleLow, nil
	default:
		return IdleHigh, fmt.Errorf("spi: unknown polarity %q (want idle-high or idle-low)", s)
	}
}

func (p Polarity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Polarity) UnmarshalText(text []byte) error {
	parsed, err := ParsePolarity(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
