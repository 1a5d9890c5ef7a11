package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"abscollector/internal/model"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertRecords appends one collection pass to the history. The conflict key
// (provider, dataset_id, period, collected_at) dedupes re-runs of the same
// pass without collapsing distinct passes of the same observation.
func (s *Store) UpsertRecords(ctx context.Context, records []model.IndicatorRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO indicator_history (
			provider, dataset_id, category, indicator, indicator_link,
			period, period_time, frequency, unit, value, value_raw,
			change_previous_period, change_year_on_year,
			source_url, scrape_id, scraped_at, collected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, dataset_id, period, collected_at)
		DO UPDATE SET
			category = excluded.category,
			indicator = excluded.indicator,
			indicator_link = excluded.indicator_link,
			period_time = excluded.period_time,
			frequency = excluded.frequency,
			unit = excluded.unit,
			value = excluded.value,
			value_raw = excluded.value_raw,
			change_previous_period = excluded.change_previous_period,
			change_year_on_year = excluded.change_year_on_year,
			source_url = excluded.source_url,
			scrape_id = excluded.scrape_id,
			scraped_at = excluded.scraped_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range records {
		record := records[i]
		if record.CollectedAt.IsZero() {
			record.CollectedAt = now
		}

		var periodTime any
		if record.PeriodTime != nil {
			periodTime = model.FormatPeriodTime(*record.PeriodTime)
		}
		var value any
		if record.Value != nil {
			value = *record.Value
		}

		_, err = stmt.ExecContext(
			ctx,
			record.Provider,
			record.DatasetID,
			record.Category,
			record.Indicator,
			record.IndicatorLink,
			record.Period,
			periodTime,
			string(record.Frequency),
			record.Unit,
			value,
			record.ValueRaw,
			record.ChangePrevPeriod,
			record.ChangeYearOnYear,
			record.SourceURL,
			record.ScrapeID,
			record.ScrapedAt.UTC().Format(time.RFC3339Nano),
			record.CollectedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) ListHistory(ctx context.Context, provider string) ([]model.IndicatorRecord, error) {
	query := `
		SELECT provider, dataset_id, category, indicator, indicator_link,
			period, period_time, frequency, unit, value, value_raw,
			change_previous_period, change_year_on_year,
			source_url, scrape_id, scraped_at, collected_at
		FROM indicator_history
	`
	args := []any{}
	if provider != "" {
		query += " WHERE provider = ?"
		args = append(args, provider)
	}
	query += " ORDER BY dataset_id, period, collected_at"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]model.IndicatorRecord, 0)
	for rows.Next() {
		var record model.IndicatorRecord
		var periodTime sql.NullString
		var value sql.NullFloat64
		var frequency, scrapedAt, collectedAt string
		if err := rows.Scan(
			&record.Provider,
			&record.DatasetID,
			&record.Category,
			&record.Indicator,
			&record.IndicatorLink,
			&record.Period,
			&periodTime,
			&frequency,
			&record.Unit,
			&value,
			&record.ValueRaw,
			&record.ChangePrevPeriod,
			&record.ChangeYearOnYear,
			&record.SourceURL,
			&record.ScrapeID,
			&scrapedAt,
			&collectedAt,
		); err != nil {
			return nil, err
		}

		record.Frequency = model.Frequency(frequency)
		if periodTime.Valid {
			if t, err := model.ParsePeriodTime(periodTime.String); err == nil {
				record.PeriodTime = &t
			}
		}
		if value.Valid {
			v := value.Float64
			record.Value = &v
		}
		if t, err := time.Parse(time.RFC3339Nano, scrapedAt); err == nil {
			record.ScrapedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, collectedAt); err == nil {
			record.CollectedAt = t
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS indicator_history (
			provider TEXT NOT NULL,
			dataset_id TEXT NOT NULL,
			category TEXT NOT NULL,
			indicator TEXT NOT NULL,
			indicator_link TEXT,
			period TEXT NOT NULL,
			period_time TEXT,
			frequency TEXT NOT NULL,
			unit TEXT,
			value REAL,
			value_raw TEXT,
			change_previous_period TEXT,
			change_year_on_year TEXT,
			source_url TEXT,
			scrape_id TEXT,
			scraped_at TEXT NOT NULL,
			collected_at TEXT NOT NULL,
			PRIMARY KEY (provider, dataset_id, period, collected_at)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
