// Package bridge finds USB-to-SPI bridges attached to the host.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// Kind categorizes bridge families.
type Kind string

const (
	KindCH341A    Kind = "ch341a"
	KindCH347     Kind = "ch347"
	KindFTDI      Kind = "ftdi-mpsse"
	KindBusPirate Kind = "buspirate"
	KindMCP2210   Kind = "mcp2210"
	KindMock      Kind = "mock"
)

// Info describes a detected bridge.
type Info struct {
	Kind        Kind
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description of the bridge.
func (i Info) Label() string {
	if i.Description != "" {
		return i.Description
	}
	if i.Kind != "" {
		return fmt.Sprintf("%s (%04X:%04X)", string(i.Kind), i.VendorID, i.ProductID)
	}
	return fmt.Sprintf("Bridge %04X:%04X", i.VendorID, i.ProductID)
}

// Adapter names the spitool --adapter value that drives the bridge, or ""
// when there is no backend for it.
func (i Info) Adapter() string {
	switch i.Kind {
	case KindBusPirate:
		return "buspirate"
	case KindFTDI:
		return "periph"
	case KindMock:
		return "mock"
	default:
		return ""
	}
}

// Mock is the entry for the simulated bench, always present.
var Mock = Info{Kind: KindMock, Description: "Mock SPI device (no hardware)"}

type knownDevice struct {
	VendorID    uint16
	ProductID   uint16
	Kind        Kind
	Description string
}

// The FT232R entry matches Bus Pirate v3/v4 boards, which carry one as
// their USB serial chip.
var knownDevices = []knownDevice{
	{0x1a86, 0x5512, KindCH341A, "WCH CH341A"},
	{0x1a86, 0x55db, KindCH347, "WCH CH347T"},
	{0x1a86, 0x55dd, KindCH347, "WCH CH347F"},
	{0x0403, 0x6014, KindFTDI, "FTDI FT232H"},
	{0x0403, 0x6010, KindFTDI, "FTDI FT2232H"},
	{0x0403, 0x6001, KindBusPirate, "Bus Pirate (FT232R)"},
	{0x04d8, 0x00de, KindMCP2210, "Microchip MCP2210"},
}

// Classify matches a USB vendor/product pair against the known bridges.
func Classify(vid, pid uint16) (Info, bool) {
	for _, known := range knownDevices {
		if vid == known.VendorID && pid == known.ProductID {
			return Info{
				Kind:        known.Kind,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return Info{}, false
}

// Discover enumerates connected USB devices and returns the known bridges.
// The mock entry is always last so a caller has something to pick without
// hardware attached.
func Discover(ctx context.Context) ([]Info, error) {
	var results []Info
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if info, ok := Classify(uint16(desc.Vendor), uint16(desc.Product)); ok {
			info.Bus = desc.Bus
			info.Address = desc.Address
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("bridge: enumerate usb: %w", err)
	}

	return append(results, Mock), nil
}
