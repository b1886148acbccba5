package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/buspirate"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/mock"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/periphdev"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/script"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

var (
	adapterType  string
	serialPort   string
	spiBus       string
	csPin        string
	csPolarity   string
	clockSpeed   uint32
	mockResponse string
	logBytes     bool
)

var transferCmd = &cobra.Command{
	Use:   "transfer SCRIPT",
	Short: "Run a transfer script against an adapter",
	Long: `Run the transfers of a script and print what was sent and received.

A script is a list of bracketed transfers. Bytes are hex (0x), binary (0b)
or decimal; "r:N" sends N filler bytes to read N bytes back and "B:N"
repeats byte B:

  [0x9f r:3]          read a JEDEC ID
  [0x06] [0x05 r]     write enable, then read status

Examples:
  # Against the mock device (answers with the complement of each byte)
  spitool transfer --adapter mock --mock-response invert "[0x9f r:3]"

  # Bus Pirate on a serial port at 1 MHz
  spitool transfer --adapter buspirate --port /dev/ttyUSB0 --speed 1000000 "[0x9f r:3]"

  # Linux spidev through periph.io with a GPIO chip select
  spitool transfer --adapter periph --bus SPI0.0 --cs-pin GPIO25 "[0x9f r:3]"`,
	Args: cobra.ExactArgs(1),
	RunE: runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)

	transferCmd.Flags().StringVarP(&adapterType, "adapter", "a", "mock",
		"SPI adapter type (mock, buspirate, periph)")
	transferCmd.Flags().StringVarP(&serialPort, "port", "p", "",
		"buspirate: serial port")
	transferCmd.Flags().StringVar(&spiBus, "bus", "",
		"periph: SPI port name (empty for the first one)")
	transferCmd.Flags().StringVar(&csPin, "cs-pin", "",
		"periph: GPIO used as chip select instead of the port's own")
	transferCmd.Flags().StringVar(&csPolarity, "polarity", "idle-high",
		"chip-select polarity (idle-high, idle-low)")
	transferCmd.Flags().Uint32Var(&clockSpeed, "speed", 1_000_000,
		"SPI clock in Hz")
	transferCmd.Flags().StringVar(&mockResponse, "mock-response", "echo",
		"mock: response generator (echo, zeros, invert)")
	transferCmd.Flags().BoolVar(&logBytes, "log-bytes", false,
		"log a hex dump of every transfer")
}

func runTransfer(cmd *cobra.Command, args []string) error {
	bufs, err := script.Parse(args[0])
	if err != nil {
		return err
	}

	polarity, err := spi.ParsePolarity(csPolarity)
	if err != nil {
		return err
	}

	logger.Debug("creating adapter", "adapter", adapterType)
	tr, closer, err := createTransport(adapterType, polarity)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	if tr.IsClockSpeed() {
		if err := tr.SetClockSpeed(clockSpeed); err != nil {
			return err
		}
	} else {
		logger.Debug("adapter has a fixed clock", "adapter", adapterType)
	}

	out := cmd.OutOrStdout()
	for i, buf := range bufs {
		tx := append([]byte(nil), buf...)
		rx, err := tr.Transfer(buf)
		if err != nil {
			return fmt.Errorf("transfer %d: %w", i+1, err)
		}
		fmt.Fprintf(out, "Transfer %d (%d bytes):\n", i+1, len(tx))
		if err := intercept.WriteDump(out, tx, rx); err != nil {
			return err
		}
	}
	return nil
}

// createTransport builds the transport for adapterType, with logging
// intercepts around the byte device and the chip-select line.
func createTransport(adapterType string, polarity spi.Polarity) (spi.Device, io.Closer, error) {
	var spiOpts []intercept.Option
	spiOpts = append(spiOpts, intercept.WithLogger(logger))
	if logBytes {
		spiOpts = append(spiOpts, intercept.WithByteLog())
	}

	switch adapterType {
	case "mock", "sim":
		var gen mock.Generator
		switch mockResponse {
		case "echo":
			gen = mock.Echo
		case "zeros":
			gen = mock.Zeros
		case "invert":
			gen = mock.Invert
		default:
			return nil, nil, fmt.Errorf("unknown --mock-response %q", mockResponse)
		}
		mockOpts := []mock.Option{mock.WithLogger(logger), mock.WithGenerator(gen)}
		if logBytes {
			mockOpts = append(mockOpts, mock.WithByteLog())
		}
		dev, _ := mock.NewSPI("mock", mockOpts...)
		cs, _ := mock.NewPin("cs", mock.WithLogger(logger))
		return spi.NewChipSelectTransport(dev, cs, polarity), nil, nil

	case "buspirate", "bp":
		if serialPort == "" {
			return nil, nil, fmt.Errorf("--port is required for the buspirate adapter")
		}
		bp, err := buspirate.Open(serialPort, buspirate.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		dev := intercept.NewSPI("buspirate", bp, spiOpts...)
		cs := intercept.NewPin("cs", bp.CS(), intercept.WithLogger(logger))
		return spi.NewChipSelectTransport(dev, cs, polarity), bp, nil

	case "periph":
		pd, pin, err := periphdev.Open(spiBus, csPin, clockSpeed)
		if err != nil {
			return nil, nil, err
		}
		dev := intercept.NewSPI("periph", pd, spiOpts...)
		if pin == nil {
			return spi.NewTransport(dev), pd, nil
		}
		cs := intercept.NewPin(csPin, pin, intercept.WithLogger(logger))
		return spi.NewChipSelectTransport(dev, cs, polarity), pd, nil

	case "ch341a", "ch347", "mcp2210":
		return nil, nil, fmt.Errorf("%s adapter: %w", adapterType, spi.ErrNotImplemented)

	default:
		return nil, nil, fmt.Errorf("unknown adapter type: %s", adapterType)
	}
}
