package registers

import "strings"

// packString encodes up to maxChars characters of s into 16-bit words,
// two ASCII bytes per word, high byte first. An even byte count gets a
// zero terminator word appended; an odd count terminates through the
// zero low byte of its final word. The second return value reports
// whether s had to be truncated.
func packString(s string, maxChars int) ([]uint16, bool) {
	truncated := false
	if len(s) > maxChars {
		s = s[:maxChars]
		truncated = true
	}

	b := []byte(s)
	words := make([]uint16, 0, len(b)/2+1)
	for i := 0; i < len(b); i += 2 {
		if i+1 < len(b) {
			words = append(words, uint16(b[i])<<8|uint16(b[i+1]))
		} else {
			words = append(words, uint16(b[i])<<8)
		}
	}
	if len(b)%2 == 0 {
		words = append(words, 0)
	}
	return words, truncated
}

// unpackString decodes words until a zero word or a zero low byte.
// Leading and trailing whitespace is stripped from the result.
func unpackString(words []uint16) string {
	var sb strings.Builder
	for _, w := range words {
		if w == 0 {
			break
		}
		hi := byte(w >> 8)
		lo := byte(w)
		if hi != 0 {
			sb.WriteByte(hi)
		}
		if lo == 0 {
			break
		}
		sb.WriteByte(lo)
	}
	return strings.TrimSpace(sb.String())
}
