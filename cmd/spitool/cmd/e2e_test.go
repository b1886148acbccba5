package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// execute runs the root command with args and returns stdout and the log
// output. Flags are reset first so values do not leak between runs.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	verbose = false
	logFormat = "text"
	simDemo = false
	capturePath = ""
	showMetrics = false
	adapterType = "mock"
	serialPort = ""
	spiBus = ""
	csPin = ""
	csPolarity = "idle-high"
	clockSpeed = 1_000_000
	mockResponse = "echo"
	logBytes = false
	dumpDevice = ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// TestSimulateE2E tests the simulate command end-to-end
func TestSimulateE2E(t *testing.T) {
	dir := t.TempDir()
	scenarioFile := filepath.Join(dir, "flash.yaml")
	err := os.WriteFile(scenarioFile, []byte(`
name: flash
spi:
  name: W25Q
  generator: constant
  constant: 0xA5
cs:
  name: nCS
  polarity: idle-low
  error: set-low
transfers:
  - "[0x9f r:3]"
  - "[0x05 r]"
`), 0o644)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
		wantLog     []string
	}{
		{
			name: "demo",
			args: []string{"simulate", "--demo"},
			wantContain: []string{
				"Scenario: demo",
				"Transport: chip select CS (idle-high)",
				"Transfer 1: ok (32 bytes)",
				"        0-16 --> 01 02 03 04 01 02 03 04 08 08 08 08 09 09 09 09 -->",
				"             <-- 01 02 03 04 01 02 03 04 08 08 08 08 09 09 09 09 <--",
				"Transfer 2: ok (1 bytes)",
				"Transfer 3: error: spi: transfer failed: mock spi: transfer error",
				"3 transfer(s), 1 failed",
				"CS line: high",
			},
			wantLog: []string{
				`msg="start transfer" device=SPI bytes=32`,
				`msg=tx device=SPI range=16-32`,
				`msg="transfer failed" device=SPI`,
				`msg=low device=CS`,
			},
		},
		{
			name: "scenario file",
			args: []string{"simulate", scenarioFile},
			wantContain: []string{
				"Scenario: flash",
				"Transport: chip select nCS (idle-low)",
				"Transfer 1: error: spi: deselect chip failed: mock pin: set low error",
				"Transfer 2: ok (2 bytes)",
				"<-- a5 a5 <--",
				"2 transfer(s), 1 failed",
				"CS line: low",
			},
			wantLog: []string{`msg="set low failed" device=nCS`},
		},
		{
			name: "metrics",
			args: []string{"simulate", "--demo", "--metrics"},
			wantContain: []string{
				`spi_transfers_total{device="SPI",result="ok"} 2`,
				`spi_transfers_total{device="SPI",result="error"} 1`,
				`spi_bytes_total{device="SPI",direction="tx"} 34`,
				`spi_transfer_duration_seconds_count{device="SPI"} 3`,
			},
		},
		{
			name: "json logs",
			args: []string{"--log-format", "json", "simulate", "--demo"},
			wantLog: []string{
				`"msg":"start transfer"`,
				`"device":"SPI"`,
			},
		},
		{
			name:    "missing scenario",
			args:    []string{"simulate"},
			wantErr: true,
		},
		{
			name:    "demo and file",
			args:    []string{"simulate", "--demo", scenarioFile},
			wantErr: true,
		},
		{
			name:    "non-existent file",
			args:    []string{"simulate", "/nonexistent/bench.yaml"},
			wantErr: true,
		},
		{
			name:    "bad log format",
			args:    []string{"--log-format", "xml", "simulate", "--demo"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, logs, err := execute(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}

			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
			for _, want := range tt.wantLog {
				if !strings.Contains(logs, want) {
					t.Errorf("Log missing expected string: %q\nGot:\n%s", want, logs)
				}
			}
		})
	}
}

// TestCaptureDumpE2E records the demo and prints the capture back
func TestCaptureDumpE2E(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.cbor")

	output, _, err := execute(t, "simulate", "--demo", "--capture", path)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if !strings.Contains(output, "Capture: "+path) {
		t.Errorf("simulate output missing capture line:\n%s", output)
	}

	output, _, err = execute(t, "dump", path)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, want := range []string{
		"#1 SPI",
		"        0-16 --> 01 02 03 04",
		"#3 SPI",
		"error: mock spi: transfer error",
		"3 record(s), 1 failed",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("dump output missing %q\nGot:\n%s", want, output)
		}
	}

	output, _, err = execute(t, "dump", path, "--device", "other")
	if err != nil {
		t.Fatalf("dump --device: %v", err)
	}
	if !strings.Contains(output, "0 record(s), 0 failed") {
		t.Errorf("filtered dump should be empty:\n%s", output)
	}

	if _, _, err := execute(t, "dump", filepath.Join(t.TempDir(), "missing.cbor")); err == nil {
		t.Errorf("Expected error for missing capture")
	}
}

// TestTransferE2E tests the transfer command with the mock adapter
func TestTransferE2E(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		wantContain []string
	}{
		{
			name: "echo",
			args: []string{"transfer", "[0x9f r:3]"},
			wantContain: []string{
				"Transfer 1 (4 bytes):",
				"         0-4 --> 9f 00 00 00 -->",
				"             <-- 9f 00 00 00 <--",
			},
		},
		{
			name: "invert with two transfers",
			args: []string{"transfer", "--mock-response", "invert", "--polarity", "idle-low", "[0x06] [0x05 r]"},
			wantContain: []string{
				"Transfer 1 (1 bytes):",
				"<-- f9 <--",
				"Transfer 2 (2 bytes):",
				"<-- fa ff <--",
			},
		},
		{
			name:    "bad script",
			args:    []string{"transfer", "[0x100]"},
			wantErr: true,
		},
		{
			name:    "bad polarity",
			args:    []string{"transfer", "--polarity", "sideways", "[1]"},
			wantErr: true,
		},
		{
			name:    "unknown adapter",
			args:    []string{"transfer", "--adapter", "jlink", "[1]"},
			wantErr: true,
		},
		{
			name:    "unsupported bridge",
			args:    []string{"transfer", "--adapter", "ch341a", "[1]"},
			wantErr: true,
		},
		{
			name:    "buspirate without port",
			args:    []string{"transfer", "--adapter", "buspirate", "[1]"},
			wantErr: true,
		},
		{
			name:    "missing script",
			args:    []string{"transfer"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, _, err := execute(t, tt.args...)

			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v\nOutput: %s", err, output)
			}

			for _, want := range tt.wantContain {
				if !strings.Contains(output, want) {
					t.Errorf("Output missing expected string: %q\nGot:\n%s", want, output)
				}
			}
		})
	}
}
