package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/bridge"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available SPI bridges",
	Long: `Scan the host for USB-to-SPI bridges (CH341A, CH347, FTDI MPSSE, Bus Pirate,
MCP2210) and print a summary with the --adapter value that drives each one.
The mock bench is always listed.`,
	RunE: runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	infos, err := bridge.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover interfaces: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Detected SPI interfaces:")
	for _, iface := range infos {
		adapter := iface.Adapter()
		if adapter == "" {
			adapter = "unsupported"
		}
		fmt.Fprintf(out, "  - %s [%s] (VID:PID %04X:%04X) adapter: %s\n",
			iface.Label(), iface.Kind, iface.VendorID, iface.ProductID, adapter)
	}
	return nil
}
