package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAmount normalizes a monetary amount string from an analyzed
// document into its numeric value. Both German and English conventions
// are accepted: "1.234,56 €" and "$1,234.56" parse to 1234.56. Currency
// symbols and codes are ignored.
func ParseAmount(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		default:
			return -1
		}
	}, s)

	if cleaned == "" || cleaned == "-" {
		return 0, fmt.Errorf("no numeric amount in %q", s)
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the rightmost separator is the decimal mark, the
		// other one groups thousands.
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		// Comma only: decimal mark unless it reads as a thousands group
		// ("1,234" has exactly three trailing digits).
		if isGrouping(cleaned, lastComma) {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		}
	case lastDot >= 0:
		if isGrouping(cleaned, lastDot) {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
		}
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return value, nil
}

// isGrouping reports whether the separator at idx looks like a thousands
// group: exactly three digits follow it, and separators of the same kind
// repeat (e.g. "1.234.567") or only a single group exists.
func isGrouping(s string, idx int) bool {
	sep := s[idx]
	if strings.Count(s, string(sep)) > 1 {
		return true
	}
	return len(s)-idx-1 == 3
}
