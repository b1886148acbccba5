package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSPI/pkg/capture"
	"github.com/OpenTraceLab/OpenTraceSPI/pkg/intercept"
)

var dumpDevice string

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print a transfer capture",
	Long: `Print the transfers recorded by "simulate --capture" with the same
hex dump layout the logging intercept uses.

Examples:
  spitool dump run.cbor
  spitool dump run.cbor --device SPI`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)

	dumpCmd.Flags().StringVarP(&dumpDevice, "device", "d", "",
		"only show transfers of this device")
}

func runDump(cmd *cobra.Command, args []string) error {
	r, err := capture.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()

	out := cmd.OutOrStdout()
	shown, failed := 0, 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if dumpDevice != "" && rec.Device != dumpDevice {
			continue
		}

		shown++
		fmt.Fprintf(out, "#%d %s %s %s session %s\n",
			rec.Seq, rec.Device, rec.Time.Format("15:04:05.000000"), rec.Duration, rec.Session)
		if rec.Failed() {
			failed++
			fmt.Fprintf(out, "%12s error: %s\n", "", rec.Err)
			continue
		}
		if err := intercept.WriteDump(out, rec.TX, rec.RX); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "%d record(s), %d failed\n", shown, failed)
	return nil
}
