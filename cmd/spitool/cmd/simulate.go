package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/capture"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/scenario"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/spi"
)

var (
	simDemo     bool
	capturePath string
	showMetrics bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [scenario.yaml]",
	Short: "Run a scenario against mock devices",
	Long: `Build a simulated SPI bench from a YAML scenario and run its transfers.

The bench is a mock SPI device, optionally behind a mock chip-select pin,
with the responses, delays and faults the scenario programs. Failed
transfers are reported, not treated as command errors.

Examples:
  # Built-in demo: echo device armed to fail 33 bytes in
  spitool simulate --demo

  # Scenario file, recording every transfer
  spitool simulate flash.yaml --capture flash.cbor

  # Print transfer counters afterwards
  spitool simulate --demo --metrics`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().BoolVar(&simDemo, "demo", false,
		"run the built-in demo scenario")
	simulateCmd.Flags().StringVar(&capturePath, "capture", "",
		"record transfers to this CBOR file")
	simulateCmd.Flags().BoolVar(&showMetrics, "metrics", false,
		"print transfer metrics after the run")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	sc, err := loadScenario(args)
	if err != nil {
		return err
	}

	var wraps []func(string, spi.Transferer) spi.Transferer

	var recorder *capture.Recorder
	if capturePath != "" {
		w, err := capture.Create(capturePath)
		if err != nil {
			return err
		}
		defer w.Close()
		wraps = append(wraps, func(name string, dev spi.Transferer) spi.Transferer {
			recorder = capture.NewRecorder(name, dev, w)
			return recorder
		})
	}

	var reg *prometheus.Registry
	if showMetrics {
		reg = prometheus.NewRegistry()
		m, err := intercept.NewMetrics(reg)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		wraps = append(wraps, func(name string, dev spi.Transferer) spi.Transferer {
			return m.Instrument(name, dev)
		})
	}

	bench, err := scenario.Build(sc,
		scenario.WithLogger(logger),
		scenario.WithWrap(func(name string, dev spi.Transferer) spi.Transferer {
			for _, wrap := range wraps {
				dev = wrap(name, dev)
			}
			return dev
		}),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario: %s\n", displayName(bench.Name))
	if bench.CS != nil {
		fmt.Fprintf(out, "Transport: chip select %s (%s)\n", bench.CS.Name(), sc.CS.Polarity)
	} else {
		fmt.Fprintln(out, "Transport: auto select")
	}
	fmt.Fprintln(out)

	failed := 0
	for i, res := range bench.Run() {
		if res.Err != nil {
			failed++
			fmt.Fprintf(out, "Transfer %d: error: %v\n", i+1, res.Err)
			continue
		}
		fmt.Fprintf(out, "Transfer %d: ok (%d bytes)\n", i+1, len(res.TX))
		if err := intercept.WriteDump(out, res.TX, res.RX); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "\n%d transfer(s), %d failed\n", len(bench.Transfers), failed)
	if bench.CSControl != nil {
		fmt.Fprintf(out, "CS line: %s\n", level(bench.CSControl.Value()))
	}

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			return fmt.Errorf("capture: %w", err)
		}
		fmt.Fprintf(out, "Capture: %s (session %s)\n", capturePath, recorder.Session())
	}

	if reg != nil {
		fmt.Fprintln(out)
		if err := writeMetrics(out, reg); err != nil {
			return err
		}
	}
	return nil
}

func loadScenario(args []string) (*scenario.Scenario, error) {
	switch {
	case simDemo && len(args) > 0:
		return nil, errors.New("give either --demo or a scenario file, not both")
	case simDemo:
		return scenario.Demo(), nil
	case len(args) == 1:
		return scenario.Load(args[0])
	default:
		return nil, errors.New("a scenario file or --demo is required")
	}
}

func writeMetrics(w io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}

func level(high bool) string {
	if high {
		return "high"
	}
	return "low"
}
