package abs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"

	"abscollector/internal/model"
	"abscollector/internal/providers"
)

const (
	defaultTargetURL       = "https://www.abs.gov.au/statistics/economy/key-indicators"
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultAccept          = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage  = "en-US,en;q=0.5"
	defaultTimeoutSeconds  = 30
	defaultRateLimitPerSec = 1
)

// ErrFetch marks page-level failures (transport errors and non-2xx responses).
// Everything below the page level degrades or skips instead of failing.
var ErrFetch = errors.New("abs: page fetch failed")

type Config struct {
	TargetURL       string
	Categories      []string
	UserAgent       string
	Accept          string
	AcceptLanguage  string
	Timeout         time.Duration
	RateLimitPerSec int
}

type Provider struct {
	config  Config
	client  *resty.Client
	limiter ratelimit.Limiter
}

func New() (*Provider, error) {
	return NewWithConfig(ConfigFromEnv())
}

func NewWithConfig(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.TargetURL) == "" {
		cfg.TargetURL = defaultTargetURL
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = model.DefaultCategories
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Accept == "" {
		cfg.Accept = defaultAccept
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = defaultAcceptLanguage
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeoutSeconds * time.Second
	}
	if cfg.RateLimitPerSec <= 0 {
		cfg.RateLimitPerSec = defaultRateLimitPerSec
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeaders(map[string]string{
			"User-Agent":      cfg.UserAgent,
			"Accept":          cfg.Accept,
			"Accept-Language": cfg.AcceptLanguage,
		})

	return &Provider{
		config:  cfg,
		client:  client,
		limiter: ratelimit.New(cfg.RateLimitPerSec),
	}, nil
}

func ConfigFromEnv() Config {
	cfg := Config{
		TargetURL:      getenv("ABS_TARGET_URL", defaultTargetURL),
		UserAgent:      getenv("ABS_USER_AGENT", defaultUserAgent),
		Accept:         getenv("ABS_ACCEPT", defaultAccept),
		AcceptLanguage: getenv("ABS_ACCEPT_LANGUAGE", defaultAcceptLanguage),
	}
	cfg.Timeout = time.Duration(getenvInt("ABS_TIMEOUT_SECONDS", defaultTimeoutSeconds)) * time.Second
	cfg.RateLimitPerSec = getenvInt("ABS_RATE_LIMIT_PER_SEC", defaultRateLimitPerSec)
	return cfg
}

func (p *Provider) Name() string {
	return "abs"
}

// FetchIndicators scrapes every configured category from one fetched document.
// Only the page fetch itself can fail; a category without a table or a row that
// cannot be decoded reduces the result, never aborts it.
func (p *Provider) FetchIndicators(ctx context.Context) ([]model.IndicatorRecord, error) {
	doc, err := p.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}

	scrapeID := uuid.NewString()
	scrapedAt := time.Now().UTC()

	records := make([]model.IndicatorRecord, 0)
	for _, category := range p.config.Categories {
		table := locateCategoryTable(doc, category)
		if table == nil {
			log.Warn().Str("category", category).Msg("no table found for category")
			continue
		}

		parsed, skipped := parseTable(table, category)
		for reason, rows := range skipped {
			log.Debug().Str("category", category).Str("reason", reason).Int("rows", rows).Msg("rows skipped")
		}
		log.Info().Str("category", category).Int("records", len(parsed)).Msg("category scraped")
		records = append(records, parsed...)
	}

	for i := range records {
		records[i].Provider = p.Name()
		records[i].SourceURL = p.config.TargetURL
		records[i].ScrapeID = scrapeID
		records[i].ScrapedAt = scrapedAt
	}
	return records, nil
}

func (p *Provider) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	p.limiter.Take()

	resp, err := p.client.R().SetContext(ctx).Get(p.config.TargetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("abs: parse html: %w", err)
	}
	return doc, nil
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

var _ providers.Provider = (*Provider)(nil)
