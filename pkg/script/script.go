// Package script parses the transfer script language used by spitool.
//
// A script is a list of transfers. Each transfer is a bracketed list of
// bytes to send:
//
//	[0x9f r:3]          # JEDEC ID: opcode then three filler bytes
//	[0x03 0 0 0 r:16]   # read 16 bytes from address 0
//	[0xff:4, 0b1010]    # 0xff four times, then 0x0a
//
// Bytes are written in hex (0x), binary (0b) or decimal. "r" sends one
// 0x00 filler byte and "r:N" sends N of them. "B:N" repeats byte B N times.
// Commas are treated as whitespace and # starts a comment.
package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// MaxRepeat bounds the count of a read or repeat item.
const MaxRepeat = 4096

var scriptLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s,]+`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|0[bB][01]+|[0-9]+`},
	{Name: "Read", Pattern: `[rR]`},
	{Name: "Punct", Pattern: `[\[\]:]`},
})

type file struct {
	Transfers []*transfer `@@*`
}

type transfer struct {
	Items []*item `"[" @@* "]"`
}

type item struct {
	Read  *read  `  @@`
	Value *value `| @@`
}

type read struct {
	Pos   lexer.Position
	Token string  `@Read`
	Count *string `(":" @Number)?`
}

type value struct {
	Pos    lexer.Position
	Byte   string  `@Number`
	Repeat *string `(":" @Number)?`
}

var parser = participle.MustBuild[file](
	participle.Lexer(scriptLexer),
	participle.Elide("Comment", "Whitespace"),
)

// Parse parses src and returns one buffer per transfer.
func Parse(src string) ([][]byte, error) {
	ast, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}

	out := make([][]byte, 0, len(ast.Transfers))
	for _, t := range ast.Transfers {
		buf := []byte{}
		for _, it := range t.Items {
			switch {
			case it.Read != nil:
				n, err := count(it.Read.Pos, it.Read.Count)
				if err != nil {
					return nil, err
				}
				buf = append(buf, make([]byte, n)...)
			case it.Value != nil:
				b, err := number(it.Value.Byte, 0xFF)
				if err != nil {
					return nil, fmt.Errorf("script: %w", participle.Errorf(it.Value.Pos, "byte %s: %v", it.Value.Byte, err))
				}
				n, err := count(it.Value.Pos, it.Value.Repeat)
				if err != nil {
					return nil, err
				}
				for i := 0; i < n; i++ {
					buf = append(buf, byte(b))
				}
			}
		}
		out = append(out, buf)
	}
	return out, nil
}

// Format renders transfers as a script that Parse reads back.
func Format(transfers [][]byte) string {
	parts := make([]string, len(transfers))
	for i, buf := range transfers {
		items := make([]string, len(buf))
		for j, b := range buf {
			items[j] = fmt.Sprintf("0x%02x", b)
		}
		parts[i] = "[" + strings.Join(items, " ") + "]"
	}
	return strings.Join(parts, " ")
}

func count(pos lexer.Position, s *string) (int, error) {
	if s == nil {
		return 1, nil
	}
	n, err := number(*s, MaxRepeat)
	if err != nil {
		return 0, fmt.Errorf("script: %w", participle.Errorf(pos, "count %s: %v", *s, err))
	}
	return int(n), nil
}

// number parses s as hex, binary or decimal and checks it against limit.
// A leading zero does not mean octal.
func number(s string, limit uint64) (uint64, error) {
	base := 10
	if len(s) > 2 && s[0] == '0' && strings.ContainsRune("xXbB", rune(s[1])) {
		base = 0
	}
	n, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, err
	}
	if n > limit {
		return 0, fmt.Errorf("out of range (max %d)", limit)
	}
	return n, nil
}
