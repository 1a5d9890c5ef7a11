package model

import "time"

type Frequency string

const (
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyAnnual    Frequency = "annual"
	FrequencyUnknown   Frequency = "unknown"
)

// DefaultCategories are the section labels on the ABS key-indicators page, in
// page order.
var DefaultCategories = []string{
	"National accounts",
	"International accounts",
	"Consumption and investment",
	"Production",
	"Prices",
	"Labour force and demography",
	"Incomes",
	"Lending indicators",
}

// IndicatorRecord is one scraped table row. Value is nil when the cell held a
// missing-data token or failed to parse; PeriodTime is nil when the period text
// matched no recognized shape.
type IndicatorRecord struct {
	Provider         string
	DatasetID        string
	Category         string
	Indicator        string
	IndicatorLink    string
	Period           string
	PeriodTime       *time.Time
	Frequency        Frequency
	Unit             string
	Value            *float64
	ValueRaw         string
	ChangePrevPeriod string
	ChangeYearOnYear string
	SourceURL        string
	ScrapeID         string
	ScrapedAt        time.Time
	CollectedAt      time.Time
}

const periodTimeLayout = "2006-01-02T15:04:05"

// FormatPeriodTime renders a period datetime the way downstream files store it.
func FormatPeriodTime(t time.Time) string {
	return t.Format(periodTimeLayout)
}

// ParsePeriodTime is the inverse of FormatPeriodTime.
func ParsePeriodTime(value string) (time.Time, error) {
	return time.Parse(periodTimeLayout, value)
}
