package judge

import (
	"strings"
	"unicode/utf8"
)

// printable makes program-controlled text safe to store in a text column:
// invalid UTF-8 becomes U+FFFD, NUL bytes are dropped, and the result is cut
// to at most limit bytes on a rune boundary. limit <= 0 disables the cut.
func printable(s string, limit int) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	s = strings.ReplaceAll(s, "\x00", "")
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
