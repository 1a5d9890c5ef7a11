// Package snapshot writes indicator batches to parquet files: a timestamped
// snapshot per collection pass, a "latest" file that is fully overwritten, and
// per-indicator timeseries extracts for a shortlist of key series.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"abscollector/internal/model"
)

const (
	snapshotPrefix = "abs_key_indicators"
	timestampForm  = "20060102_150405"
)

// DefaultKeyIndicators are the dataset_id substrings tracked as individual
// timeseries files.
var DefaultKeyIndicators = []string{"gdp", "cpi", "unemploy_rate", "employed", "retail"}

type row struct {
	Provider         string   `parquet:"name=provider, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	DatasetID        string   `parquet:"name=dataset_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Category         string   `parquet:"name=category, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Indicator        string   `parquet:"name=indicator, type=BYTE_ARRAY, convertedtype=UTF8"`
	IndicatorLink    string   `parquet:"name=indicator_link, type=BYTE_ARRAY, convertedtype=UTF8"`
	Period           string   `parquet:"name=period, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	PeriodTime       *string  `parquet:"name=datetime, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL"`
	Frequency        string   `parquet:"name=frequency, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Unit             string   `parquet:"name=unit, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value            *float64 `parquet:"name=value, type=DOUBLE, repetitiontype=OPTIONAL"`
	ValueRaw         string   `parquet:"name=value_raw, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChangePrevPeriod string   `parquet:"name=change_previous_period, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChangeYearOnYear string   `parquet:"name=change_year_on_year, type=BYTE_ARRAY, convertedtype=UTF8"`
	SourceURL        string   `parquet:"name=source_url, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ScrapeID         string   `parquet:"name=scrape_id, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ScrapedAt        string   `parquet:"name=scrape_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	CollectedAt      string   `parquet:"name=collection_date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

// WriteSet writes the timestamped snapshot and overwrites the latest file.
// Returns the path of the timestamped snapshot.
func WriteSet(records []model.IndicatorRecord, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	snapshotPath := filepath.Join(dir, fmt.Sprintf("%s_%s.parquet", snapshotPrefix, now.Format(timestampForm)))
	if err := Write(records, snapshotPath); err != nil {
		return "", err
	}

	latestPath := filepath.Join(dir, snapshotPrefix+"_latest.parquet")
	if err := Write(records, latestPath); err != nil {
		return "", err
	}

	return snapshotPath, nil
}

// Write saves one batch to a parquet file.
func Write(records []model.IndicatorRecord, path string) error {
	fh, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("snapshot: create %s: %w", path, err)
	}
	defer fh.Close()

	pw, err := writer.NewParquetWriter(fh, new(row), 4)
	if err != nil {
		return fmt.Errorf("snapshot: writer for %s: %w", path, err)
	}

	pw.RowGroupSize = 128 * 1024 * 1024
	pw.PageSize = 8 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range records {
		if err := pw.Write(toRow(records[i])); err != nil {
			log.Error().Err(err).Str("dataset_id", records[i].DatasetID).Msg("parquet write failed for record")
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("snapshot: finish %s: %w", path, err)
	}

	log.Info().Int("records", len(records)).Str("path", path).Msg("parquet write finished")
	return nil
}

// WriteTimeseries splits records into per-indicator files under dir. A record
// belongs to a key indicator when its dataset_id contains the key as a
// substring. Records are ordered by period datetime; records without one sort
// first.
func WriteTimeseries(records []model.IndicatorRecord, dir string, keys []string) error {
	if len(keys) == 0 {
		keys = DefaultKeyIndicators
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, key := range keys {
		matched := make([]model.IndicatorRecord, 0)
		for _, record := range records {
			if strings.Contains(strings.ToLower(record.DatasetID), strings.ToLower(key)) {
				matched = append(matched, record)
			}
		}
		if len(matched) == 0 {
			continue
		}

		sort.SliceStable(matched, func(i, j int) bool {
			return periodSortKey(matched[i]) < periodSortKey(matched[j])
		})

		path := filepath.Join(dir, key+"_timeseries.parquet")
		if err := Write(matched, path); err != nil {
			return err
		}
		log.Debug().Str("key", key).Int("records", len(matched)).Msg("timeseries written")
	}
	return nil
}

func periodSortKey(record model.IndicatorRecord) string {
	if record.PeriodTime == nil {
		return ""
	}
	return model.FormatPeriodTime(*record.PeriodTime)
}

func toRow(record model.IndicatorRecord) *row {
	r := &row{
		Provider:         record.Provider,
		DatasetID:        record.DatasetID,
		Category:         record.Category,
		Indicator:        record.Indicator,
		IndicatorLink:    record.IndicatorLink,
		Period:           record.Period,
		Frequency:        string(record.Frequency),
		Unit:             record.Unit,
		Value:            record.Value,
		ValueRaw:         record.ValueRaw,
		ChangePrevPeriod: record.ChangePrevPeriod,
		ChangeYearOnYear: record.ChangeYearOnYear,
		SourceURL:        record.SourceURL,
		ScrapeID:         record.ScrapeID,
	}
	if record.PeriodTime != nil {
		formatted := model.FormatPeriodTime(*record.PeriodTime)
		r.PeriodTime = &formatted
	}
	if !record.ScrapedAt.IsZero() {
		r.ScrapedAt = record.ScrapedAt.UTC().Format(time.RFC3339)
	}
	if !record.CollectedAt.IsZero() {
		r.CollectedAt = record.CollectedAt.UTC().Format(time.RFC3339)
	}
	return r
}
