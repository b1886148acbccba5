package intercept

import (
	"fmt"
	"io"
	"strings"
)

// DumpWidth is the number of bytes shown per dump row.
const DumpWidth = 16

// DumpRow is one row of a tx/rx dump. Range is the half-open byte offset
// range the row covers, e.g. "16-32".
type DumpRow struct {
	Range string
	TX    string
	RX    string
}

// HexBytes formats b as space separated lowercase hex pairs.
func HexBytes(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", v)
	}
	return sb.String()
}

// DumpRows splits tx and rx into aligned DumpWidth byte rows.
func DumpRows(tx, rx []byte) []DumpRow {
	n := max(len(tx), len(rx))
	rows := make([]DumpRow, 0, (n+DumpWidth-1)/DumpWidth)
	for start := 0; start < n; start += DumpWidth {
		end := min(start+DumpWidth, n)
		rows = append(rows, DumpRow{
			Range: fmt.Sprintf("%d-%d", start, end),
			TX:    HexBytes(window(tx, start, end)),
			RX:    HexBytes(window(rx, start, end)),
		})
	}
	return rows
}

// WriteDump writes the fixed-width dump of tx and rx to w:
//
//	        0-16 --> 01 02 ... -->
//	             <-- 01 02 ... <--
func WriteDump(w io.Writer, tx, rx []byte) error {
	for _, row := range DumpRows(tx, rx) {
		if _, err := fmt.Fprintf(w, "%12s --> %s -->\n", row.Range, row.TX); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%12s <-- %s <--\n", "", row.RX); err != nil {
			return err
		}
	}
	return nil
}

func window(b []byte, start, end int) []byte {
	if start >= len(b) {
		return nil
	}
	return b[start:min(end, len(b))]
}
