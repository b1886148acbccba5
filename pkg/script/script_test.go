package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want [][]byte
	}{
		{"empty", "", [][]byte{}},
		{"empty transfer", "[]", [][]byte{{}}},
		{"hex", "[0x9f 0xAB]", [][]byte{{0x9F, 0xAB}}},
		{"decimal", "[3 0 255]", [][]byte{{3, 0, 255}}},
		{"leading zero is decimal", "[010]", [][]byte{{10}}},
		{"binary", "[0b1010]", [][]byte{{0x0A}}},
		{"reads", "[0x9f r:3]", [][]byte{{0x9F, 0, 0, 0}}},
		{"single read", "[R]", [][]byte{{0}}},
		{"repeat", "[0xff:4]", [][]byte{{0xFF, 0xFF, 0xFF, 0xFF}}},
		{"commas", "[1,2, 3]", [][]byte{{1, 2, 3}}},
		{"several", "[0x06] [0x05 r]", [][]byte{{0x06}, {0x05, 0}}},
		{"comments", "# write enable\n[0x06] # done\n", [][]byte{{0x06}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		msg  string
	}{
		{"byte too large", "[256]", "out of range"},
		{"hex too large", "[0x100]", "out of range"},
		{"repeat too large", "[0:5000]", "out of range"},
		{"unclosed", "[0x01", ""},
		{"bare byte", "0x01", ""},
		{"unknown word", "[read]", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "script:")
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestFormatParsesBack(t *testing.T) {
	in := [][]byte{{0x9F, 0x00}, {}, {0xFF}}
	src := Format(in)
	assert.Equal(t, "[0x9f 0x00] [] [0xff]", src)

	got, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
