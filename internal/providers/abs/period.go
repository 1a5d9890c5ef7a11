package abs

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"abscollector/internal/model"
)

var (
	qtrTokenPattern      = regexp.MustCompile(`(?i)\s+qtr\s+`)
	yearOnlyPattern      = regexp.MustCompile(`^\d{4}$`)
	quarterPeriodPattern = regexp.MustCompile(`(?i)^(\w{3})\s+(?:Qtr|Quarter)\s+(\d{4})`)
	monthPeriodPattern   = regexp.MustCompile(`^(\w{3,4})\s+(\d{4})`)
	yearPeriodPattern    = regexp.MustCompile(`^(\d{4})`)
)

var monthKeywords = []string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec", "june",
}

// Quarter labels name the quarter-end month; the derived datetime is pinned to
// the first day of that month.
var quarterMonths = map[string]time.Month{
	"Mar": time.March,
	"Jun": time.June,
	"Sep": time.September,
	"Dec": time.December,
}

var monthsByName = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June, "June": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// NormalizePeriod collapses case and spacing variants of the "qtr" token to a
// canonical " Qtr " and trims surrounding whitespace. No other cleanup is applied.
func NormalizePeriod(period string) string {
	if period == "" {
		return period
	}
	return strings.TrimSpace(qtrTokenPattern.ReplaceAllString(period, " Qtr "))
}

// DetectFrequency classifies a period label by keyword. The quarter check runs
// before the month check so "Mar Qtr 2025" never reads as monthly.
func DetectFrequency(period string) model.Frequency {
	if period == "" {
		return model.FrequencyUnknown
	}

	lower := strings.ToLower(period)
	if strings.Contains(lower, "qtr") || strings.Contains(lower, "quarter") {
		return model.FrequencyQuarterly
	}
	for _, keyword := range monthKeywords {
		if strings.Contains(lower, keyword) {
			return model.FrequencyMonthly
		}
	}
	if yearOnlyPattern.MatchString(strings.TrimSpace(period)) {
		return model.FrequencyAnnual
	}
	return model.FrequencyUnknown
}

// PeriodTime derives an observation datetime from a period label. Patterns are
// tried in order: quarter, month-year, bare year; anything else reports false.
// A quarter label with an unrecognized month token falls back to January rather
// than failing.
func PeriodTime(period string) (time.Time, bool) {
	period = NormalizePeriod(period)

	if m := quarterPeriodPattern.FindStringSubmatch(period); m != nil {
		month, ok := quarterMonths[m[1]]
		if !ok {
			month = time.January
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
	}

	if m := monthPeriodPattern.FindStringSubmatch(period); m != nil {
		month, ok := monthsByName[m[1]]
		if !ok {
			month = time.January
		}
		year, _ := strconv.Atoi(m[2])
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
	}

	if m := yearPeriodPattern.FindStringSubmatch(period); m != nil {
		year, _ := strconv.Atoi(m[1])
		return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}
