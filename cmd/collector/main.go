package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"abscollector/internal/model"
	"abscollector/internal/providers/abs"
	"abscollector/internal/snapshot"
	"abscollector/internal/store"
	storesqlite "abscollector/internal/store/sqlite"
	"abscollector/internal/validate"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/sources.yaml", "collector config file (missing file = defaults)")
	outDir := fs.String("out", "data/economic/abs", "output directory for parquet snapshots")
	dbPath := fs.String("db", "abscollector.db", "sqlite database path (empty disables persistence)")
	minValid := fs.Float64("min-valid", validate.DefaultMinValidFraction, "minimum fraction of records with numeric values")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")
	verbose := fs.Bool("verbose", false, "print each record")
	fs.Parse(args)

	setupLogging(*logLevel)

	if err := runCollector(*configPath, *outDir, *dbPath, *minValid, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "collector run failed:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: collector run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -config     collector config file (default: configs/sources.yaml)")
	fmt.Fprintln(os.Stderr, "  -out        output directory for parquet snapshots (default: data/economic/abs)")
	fmt.Fprintln(os.Stderr, "  -db         sqlite database path (default: abscollector.db)")
	fmt.Fprintln(os.Stderr, "  -min-valid  minimum fraction of records with numeric values (default: 0.5)")
	fmt.Fprintln(os.Stderr, "  -log-level  log level (default: info)")
	fmt.Fprintln(os.Stderr, "  -verbose    print each record")
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func runCollector(configPath, outDir, dbPath string, minValid float64, verbose bool) error {
	cfg, err := loadProviderConfig(configPath)
	if err != nil {
		return err
	}

	provider, err := abs.NewWithConfig(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()

	records, err := provider.FetchIndicators(ctx)
	if err != nil {
		log.Error().Err(err).Msg("scrape failed")
		return err
	}
	if len(records) == 0 {
		return errors.New("no records scraped from any category")
	}

	report, err := validate.CheckBatch(records, minValid)
	if err != nil {
		log.Error().Err(err).
			Int("total", report.Total).
			Int("with_value", report.WithValue).
			Int("schema_failures", report.SchemaFailures).
			Msg("batch rejected")
		return err
	}

	if verbose {
		for _, record := range records {
			value := "null"
			if record.Value != nil {
				value = fmt.Sprintf("%.2f", *record.Value)
			}
			fmt.Printf("%s %s %q %s %s %s\n",
				record.DatasetID,
				record.Category,
				record.Indicator,
				record.Period,
				value,
				record.Unit,
			)
		}
	}

	now := time.Now().UTC()
	snapshotPath, err := snapshot.WriteSet(records, outDir, now)
	if err != nil {
		return err
	}

	for i := range records {
		records[i].CollectedAt = now
	}
	if err := st.UpsertRecords(ctx, records); err != nil {
		return err
	}

	categories := make(map[string]int)
	for _, record := range records {
		categories[record.Category]++
	}
	wanted := cfg.Categories
	if len(wanted) == 0 {
		wanted = model.DefaultCategories
	}

	fmt.Printf("collector stored records=%d\n", len(records))
	fmt.Printf("collector run complete (provider=%s records=%d categories=%d/%d with_value=%d snapshot=%s)\n",
		provider.Name(), len(records), len(categories), len(wanted), report.WithValue, snapshotPath,
	)
	return nil
}

func loadProviderConfig(path string) (abs.Config, error) {
	cfg := abs.ConfigFromEnv()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", path).Msg("config file not found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if url := v.GetString("abs.target_url"); url != "" {
		cfg.TargetURL = url
	}
	if categories := v.GetStringSlice("abs.categories"); len(categories) > 0 {
		cfg.Categories = categories
	}
	if seconds := v.GetInt("abs.timeout_seconds"); seconds > 0 {
		cfg.Timeout = time.Duration(seconds) * time.Second
	}
	if perSec := v.GetInt("abs.rate_limit_per_sec"); perSec > 0 {
		cfg.RateLimitPerSec = perSec
	}
	if agent := v.GetString("abs.user_agent"); agent != "" {
		cfg.UserAgent = agent
	}
	return cfg, nil
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return storesqlite.New(path)
}
