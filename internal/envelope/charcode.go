package envelope

import (
	"strings"
	"unicode/utf16"
)

// CharCodeBytes converts s into one byte per UTF-16 code unit, keeping the low 8 bits of each unit.
//
// ASCII and Latin-1 text round-trips exactly. Anything above U+00FF is lossy: "€" (U+20AC) becomes 0xAC, and
// characters outside the BMP become two bytes, one per surrogate. Invalid UTF-8 in s decodes as U+FFFD and so
// becomes 0xFD.
func CharCodeBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r < 0x10000 {
			out = append(out, byte(r))
			continue
		}

		hi, lo := utf16.EncodeRune(r)
		out = append(out, byte(hi), byte(lo))
	}

	return out
}

// CharCodeString is the inverse of CharCodeBytes for byte values: each byte becomes the rune with the same value.
func CharCodeString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		sb.WriteRune(rune(c))
	}

	return sb.String()
}
