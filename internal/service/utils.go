package service

import (
	"strings"
	"unicode/utf8"
)

// sanitizeText trims the string and drops invalid UTF-8 sequences. Extracted
// text occasionally carries broken bytes that PostgreSQL rejects on insert.
func sanitizeText(s string) string {
	s = strings.TrimSpace(s)
	if utf8.ValidString(s) {
		return s
	}

	var result strings.Builder
	result.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size == 1 {
			s = s[1:]
			continue
		}
		result.WriteRune(r)
		s = s[size:]
	}
	return result.String()
}
