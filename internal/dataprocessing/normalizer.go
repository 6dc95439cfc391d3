package dataprocessing

import (
	"strings"
	"unicode"
)

// segmentSuffixes are exchange segment markers, checked in order
var segmentSuffixes = []string{"-EQ", "-BE", "-SM", "-ST", ".EQ", ".BE", ".SM", ".ST"}

// Normalize maps a raw instrument label to its canonical key: upper
// case, one trailing segment suffix removed, and only letters, digits,
// hyphens and underscores kept. The pass repeats until the key stops
// changing so Normalize(Normalize(s)) == Normalize(s).
func Normalize(raw string) string {
	key := strings.ToUpper(strings.TrimSpace(raw))
	for {
		next := normalizeOnce(key)
		if next == key {
			return key
		}
		key = next
	}
}

func normalizeOnce(s string) string {
	s = strings.TrimSpace(s)
	for _, suffix := range segmentSuffixes {
		if len(s) > len(suffix) && strings.HasSuffix(s, suffix) {
			s = s[:len(s)-len(suffix)]
			break
		}
	}

	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return unicode.ToUpper(r)
		}
		return -1
	}, s)
}
