package utils

import (
	"strconv"
	"strings"
)

// CompareEpisodeNumbers orders episode-number strings like "1", "12", "C1",
// "S2": by alphabetic prefix first ("" before "C" before "S"), then by the
// numeric remainder. Strings whose remainder is not numeric fall back to
// plain lexicographic comparison. Returns -1, 0 or 1.
func CompareEpisodeNumbers(a, b string) int {
	prefixA, numA, okA := splitEpNo(a)
	prefixB, numB, okB := splitEpNo(b)

	if !okA || !okB {
		return strings.Compare(a, b)
	}

	if c := strings.Compare(prefixA, prefixB); c != 0 {
		return c
	}
	switch {
	case numA < numB:
		return -1
	case numA > numB:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func splitEpNo(s string) (prefix string, num int, ok bool) {
	i := 0
	for i < len(s) && (s[i] < '0' || s[i] > '9') {
		i++
	}

	num, err := strconv.Atoi(s[i:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], num, true
}
