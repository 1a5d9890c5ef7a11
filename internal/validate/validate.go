// Package validate gates a scraped batch before anything is written: every
// record must satisfy the embedded JSON Schema, and at least a configurable
// fraction of records must carry a numeric value.
package validate

import (
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"abscollector/internal/model"
)

// DefaultMinValidFraction is the acceptance threshold for numeric values.
const DefaultMinValidFraction = 0.5

//go:embed indicator_record.schema.json
var recordSchemaJSON string

var recordSchema = jsonschema.MustCompileString("indicator_record.schema.json", recordSchemaJSON)

var (
	ErrEmptyBatch = errors.New("validate: empty batch")
	ErrLowQuality = errors.New("validate: too few records with numeric values")
	ErrSchema     = errors.New("validate: record failed schema validation")
)

type Report struct {
	Total          int
	WithValue      int
	SchemaFailures int
}

// CheckBatch validates a whole scrape pass. The batch is rejected as a unit;
// there is no partial acceptance.
func CheckBatch(records []model.IndicatorRecord, minValidFraction float64) (Report, error) {
	report := Report{Total: len(records)}
	if len(records) == 0 {
		return report, ErrEmptyBatch
	}
	if minValidFraction <= 0 {
		minValidFraction = DefaultMinValidFraction
	}

	for i := range records {
		if err := recordSchema.Validate(toDocument(records[i])); err != nil {
			report.SchemaFailures++
			log.Warn().Err(err).Str("dataset_id", records[i].DatasetID).Msg("record failed schema validation")
			continue
		}
		if records[i].Value != nil {
			report.WithValue++
		}
	}

	if report.SchemaFailures > 0 {
		return report, fmt.Errorf("%w: %d of %d records", ErrSchema, report.SchemaFailures, report.Total)
	}
	if float64(report.WithValue) < float64(report.Total)*minValidFraction {
		return report, fmt.Errorf("%w: %d of %d", ErrLowQuality, report.WithValue, report.Total)
	}
	return report, nil
}

func toDocument(record model.IndicatorRecord) map[string]any {
	doc := map[string]any{
		"dataset_id":             record.DatasetID,
		"category":               record.Category,
		"indicator":              record.Indicator,
		"indicator_link":         record.IndicatorLink,
		"period":                 record.Period,
		"datetime":               nil,
		"frequency":              string(record.Frequency),
		"unit":                   record.Unit,
		"value":                  nil,
		"value_raw":              record.ValueRaw,
		"change_previous_period": record.ChangePrevPeriod,
		"change_year_on_year":    record.ChangeYearOnYear,
		"source_url":             record.SourceURL,
		"scrape_id":              record.ScrapeID,
		"scrape_date":            record.ScrapedAt.UTC().Format(time.RFC3339),
	}
	if record.PeriodTime != nil {
		doc["datetime"] = model.FormatPeriodTime(*record.PeriodTime)
	}
	if record.Value != nil {
		doc["value"] = *record.Value
	}
	return doc
}
