package abs

import (
	"regexp"
	"strconv"
	"strings"
)

var valueStripPattern = regexp.MustCompile(`[,$%\s]`)

// Tokens the ABS uses for unpublished or unavailable figures, matched
// case-sensitively as printed ("NP" is the only upper-case one).
var missingValueTokens = map[string]struct{}{
	"na":  {},
	"NP":  {},
	"..":  {},
	"n/a": {},
}

// ParseValue converts a raw numeric cell to a float. Commas, currency and
// percent signs and whitespace are stripped, and a leading unicode minus is
// folded to ASCII. Missing-data tokens and anything that still fails float
// conversion report false instead of an error.
func ParseValue(raw string) (float64, bool) {
	cleaned := valueStripPattern.ReplaceAllString(raw, "")

	if strings.HasPrefix(cleaned, "-") || strings.HasPrefix(cleaned, "−") {
		cleaned = "-" + strings.TrimLeft(cleaned, "-−")
	}

	if cleaned == "" {
		return 0, false
	}
	if _, missing := missingValueTokens[cleaned]; missing {
		return 0, false
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
