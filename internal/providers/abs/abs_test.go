package abs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abscollector/internal/model"
)

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, url string, categories []string) *Provider {
	t.Helper()
	provider, err := NewWithConfig(Config{
		TargetURL:       url,
		Categories:      categories,
		RateLimitPerSec: 100,
	})
	require.NoError(t, err)
	return provider
}

const pricesPage = `<html><body>
<h3>Prices</h3>
<table>
<tr><th>Indicator</th><th>Period</th><th>Unit</th><th>Value</th><th>Change prev</th><th>Change YoY</th></tr>
<tr><td><a href="/statistics/cpi">Consumer price index</a></td><td>Mar Qtr 2025</td><td>Index</td><td>134.5</td><td>+0.8%</td><td>+2.1%</td></tr>
</table>
</body></html>`

func TestFetchIndicatorsHeadingTable(t *testing.T) {
	srv := serve(t, http.StatusOK, pricesPage)
	provider := newTestProvider(t, srv.URL, []string{"Prices"})

	records, err := provider.FetchIndicators(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, "Prices", record.Category)
	assert.Equal(t, "Consumer price index", record.Indicator)
	assert.Equal(t, "/statistics/cpi", record.IndicatorLink)
	assert.Equal(t, "Mar Qtr 2025", record.Period)
	require.NotNil(t, record.Value)
	assert.Equal(t, 134.5, *record.Value)
	assert.Equal(t, "134.5", record.ValueRaw)
	require.NotNil(t, record.PeriodTime)
	assert.Equal(t, "2025-03-01T00:00:00", model.FormatPeriodTime(*record.PeriodTime))
	assert.Equal(t, model.FrequencyQuarterly, record.Frequency)
	assert.True(t, strings.HasPrefix(record.DatasetID, "abs_pric_"), "dataset id %q", record.DatasetID)
	assert.Contains(t, record.DatasetID, "cpi")
	assert.Equal(t, "+0.8%", record.ChangePrevPeriod)
	assert.Equal(t, "+2.1%", record.ChangeYearOnYear)
	assert.Equal(t, "abs", record.Provider)
	assert.Equal(t, srv.URL, record.SourceURL)
	assert.NotEmpty(t, record.ScrapeID)
	assert.False(t, record.ScrapedAt.IsZero())

	// Recomputing the id from the record's own fields reproduces it exactly.
	assert.Equal(t, record.DatasetID, DatasetID(record.Indicator, record.Category))
}

func TestFetchIndicatorsContentFallback(t *testing.T) {
	// No heading anywhere; the category label only appears inside the table
	// header row, so the content scan has to find it.
	page := `<html><body>
<table>
<tr><th>Production indicators</th><th>Period</th><th>Unit</th><th>Value</th><th>Change</th></tr>
<tr><td>Mineral exploration expenditure</td><td>Mar Qtr 2025</td><td>$m</td><td>1,043.0</td><td>-2.0%</td></tr>
</table>
</body></html>`
	srv := serve(t, http.StatusOK, page)
	provider := newTestProvider(t, srv.URL, []string{"Production"})

	records, err := provider.FetchIndicators(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Production", records[0].Category)
	require.NotNil(t, records[0].Value)
	assert.Equal(t, 1043.0, *records[0].Value)
}

func TestFetchIndicatorsMissingCategoryYieldsNothing(t *testing.T) {
	srv := serve(t, http.StatusOK, pricesPage)
	provider := newTestProvider(t, srv.URL, []string{"Prices", "Incomes"})

	records, err := provider.FetchIndicators(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetchIndicatorsHeadingWithoutTable(t *testing.T) {
	// A matching heading with no table after it yields nothing; the content
	// fallback only runs when no heading matched.
	page := `<html><body><h4>Incomes</h4><p>tables removed</p></body></html>`
	srv := serve(t, http.StatusOK, page)
	provider := newTestProvider(t, srv.URL, []string{"Incomes"})

	records, err := provider.FetchIndicators(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchIndicatorsDropsShortRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<html><body><h3>Prices</h3><table>`)
	sb.WriteString(`<tr><th>Indicator</th><th>Period</th><th>Unit</th><th>Value</th><th>Change</th></tr>`)
	for i := 0; i < 10; i++ {
		if i%4 == 3 { // rows 3, 7 and a third below
			sb.WriteString(`<tr><td>short row</td><td>Mar Qtr 2025</td><td>%</td><td>1.0</td></tr>`)
			continue
		}
		sb.WriteString(`<tr><td>Indicator name</td><td>Mar Qtr 2025</td><td>%</td><td>1.0</td><td>+0.1%</td></tr>`)
	}
	sb.WriteString(`<tr><td>only two</td><td>cells</td></tr>`)
	sb.WriteString(`</table></body></html>`)

	srv := serve(t, http.StatusOK, sb.String())
	provider := newTestProvider(t, srv.URL, []string{"Prices"})

	records, err := provider.FetchIndicators(context.Background())
	require.NoError(t, err)
	// 10 data rows with 2 short + 1 trailing short row: 8 survive.
	assert.Len(t, records, 8)
	for _, record := range records {
		assert.NotEqual(t, "short row", record.Indicator)
		assert.NotEqual(t, "only two", record.Indicator)
	}
}

func TestFetchIndicatorsNonOKStatus(t *testing.T) {
	srv := serve(t, http.StatusServiceUnavailable, "maintenance")
	provider := newTestProvider(t, srv.URL, []string{"Prices"})

	_, err := provider.FetchIndicators(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
}

func TestFetchIndicatorsConnectionError(t *testing.T) {
	srv := serve(t, http.StatusOK, pricesPage)
	url := srv.URL
	srv.Close()

	provider := newTestProvider(t, url, []string{"Prices"})
	_, err := provider.FetchIndicators(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch))
}

// Column assignment is positional. This pins the index contract so a source
// page reorder breaks loudly here instead of silently misassigning fields.
func TestDecodeRowColumnContract(t *testing.T) {
	cells := []cell{
		{text: "c0-indicator", link: "/c0"},
		{text: "c1-period"},
		{text: "c2-unit"},
		{text: "c3-value"},
		{text: "c4-change-prev"},
		{text: "c5-change-yoy"},
	}
	row, err := decodeRow(cells)
	require.NoError(t, err)
	assert.Equal(t, "c0-indicator", row.indicator.text)
	assert.Equal(t, "/c0", row.indicator.link)
	assert.Equal(t, "c1-period", row.period)
	assert.Equal(t, "c2-unit", row.unit)
	assert.Equal(t, "c3-value", row.value)
	assert.Equal(t, "c4-change-prev", row.changePrevPeriod)
	assert.Equal(t, "c5-change-yoy", row.changeYearOnYear)
}

func TestDecodeRowFiveCells(t *testing.T) {
	cells := []cell{{text: "a"}, {text: "b"}, {text: "c"}, {text: "d"}, {text: "e"}}
	row, err := decodeRow(cells)
	require.NoError(t, err)
	assert.Empty(t, row.changeYearOnYear)

	_, err = decodeRow(cells[:4])
	require.ErrorIs(t, err, errShortRow)
}

func TestBuildRecordValueParseFailureKeepsRow(t *testing.T) {
	record := buildRecord(rawRow{
		indicator: cell{text: "Consumer price index"},
		period:    "Mar Qtr 2025",
		unit:      "Index",
		value:     "NP",
	}, "Prices")

	assert.Nil(t, record.Value)
	assert.Equal(t, "NP", record.ValueRaw)
	require.NotNil(t, record.PeriodTime)
	assert.Equal(t, model.FrequencyQuarterly, record.Frequency)
}

func TestBuildRecordUnknownPeriodKeepsFrequencyIndependent(t *testing.T) {
	record := buildRecord(rawRow{
		indicator: cell{text: "Job vacancies"},
		period:    "ongoing",
		unit:      "'000",
		value:     "432.1",
	}, "Labour force and demography")

	assert.Nil(t, record.PeriodTime)
	assert.Equal(t, model.FrequencyUnknown, record.Frequency)
	require.NotNil(t, record.Value)
	assert.Equal(t, 432.1, *record.Value)
}
