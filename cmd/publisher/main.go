package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"abscollector/internal/model"
	"abscollector/internal/snapshot"
	storesqlite "abscollector/internal/store/sqlite"
)

type metaFile struct {
	GeneratedAt string `json:"generated_at"`
}

type latestFile struct {
	GeneratedAt string        `json:"generated_at"`
	Rows        []latestEntry `json:"rows"`
}

type latestEntry struct {
	DatasetID   string   `json:"dataset_id"`
	Category    string   `json:"category"`
	Indicator   string   `json:"indicator"`
	Period      string   `json:"period"`
	Datetime    *string  `json:"datetime"`
	Frequency   string   `json:"frequency"`
	Unit        string   `json:"unit"`
	Value       *float64 `json:"value"`
	CollectedAt string   `json:"collected_at"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "build":
		build(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func build(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	outDir := fs.String("out", "site/data", "output directory")
	dbPath := fs.String("db", "abscollector.db", "sqlite database path")
	provider := fs.String("provider", "abs", "provider id")
	keysCSV := fs.String("keys", strings.Join(snapshot.DefaultKeyIndicators, ","), "comma-separated key indicator ids")
	fs.Parse(args)

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create output dir:", err)
		os.Exit(1)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if err := writeJSON(filepath.Join(*outDir, "meta.json"), metaFile{GeneratedAt: now}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write meta.json:", err)
		os.Exit(1)
	}

	history, err := loadHistory(*dbPath, *provider)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load history:", err)
		os.Exit(1)
	}

	latest := buildLatest(history)
	if err := writeJSON(filepath.Join(*outDir, "latest.json"), latestFile{GeneratedAt: now, Rows: latest}); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write latest.json:", err)
		os.Exit(1)
	}

	keys := parseList(*keysCSV)
	if err := snapshot.WriteTimeseries(history, filepath.Join(*outDir, "timeseries"), keys); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write timeseries:", err)
		os.Exit(1)
	}

	fmt.Printf("publisher build complete (out=%s history=%d latest=%d)\n", *outDir, len(history), len(latest))
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: publisher build [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -out       output directory (default: site/data)")
	fmt.Fprintln(os.Stderr, "  -db        sqlite database path (default: abscollector.db)")
	fmt.Fprintln(os.Stderr, "  -provider  provider id (default: abs)")
	fmt.Fprintln(os.Stderr, "  -keys      comma-separated key indicator ids")
}

func loadHistory(dbPath, provider string) ([]model.IndicatorRecord, error) {
	st, err := storesqlite.New(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	return st.ListHistory(context.Background(), provider)
}

// buildLatest keeps the most recent observation per dataset_id: newest
// collection pass wins, and within one pass the later period datetime wins.
func buildLatest(history []model.IndicatorRecord) []latestEntry {
	latest := make(map[string]model.IndicatorRecord)
	for _, record := range history {
		if record.DatasetID == "" {
			continue
		}
		current, ok := latest[record.DatasetID]
		if !ok || moreRecent(record, current) {
			latest[record.DatasetID] = record
		}
	}

	ids := make([]string, 0, len(latest))
	for id := range latest {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]latestEntry, 0, len(ids))
	for _, id := range ids {
		record := latest[id]
		entry := latestEntry{
			DatasetID:   record.DatasetID,
			Category:    record.Category,
			Indicator:   record.Indicator,
			Period:      record.Period,
			Frequency:   string(record.Frequency),
			Unit:        record.Unit,
			Value:       record.Value,
			CollectedAt: record.CollectedAt.UTC().Format(time.RFC3339),
		}
		if record.PeriodTime != nil {
			formatted := model.FormatPeriodTime(*record.PeriodTime)
			entry.Datetime = &formatted
		}
		rows = append(rows, entry)
	}
	return rows
}

func moreRecent(candidate, current model.IndicatorRecord) bool {
	if !candidate.CollectedAt.Equal(current.CollectedAt) {
		return candidate.CollectedAt.After(current.CollectedAt)
	}
	switch {
	case candidate.PeriodTime == nil:
		return false
	case current.PeriodTime == nil:
		return true
	default:
		return candidate.PeriodTime.After(*current.PeriodTime)
	}
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func parseList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, strings.ToLower(trimmed))
	}
	return items
}
