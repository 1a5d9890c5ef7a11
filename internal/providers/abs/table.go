package abs

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"abscollector/internal/model"
)

// A data row carries at least indicator, period, unit, value and
// change-on-previous-period.
const minRowCells = 5

var errShortRow = errors.New("fewer than 5 cells")

// locateCategoryTable finds the data table for one category label. The primary
// signal is a heading-like element (h3/h4/strong/b) containing the label,
// followed by the next table in document order. The page's markup does not
// nest headings and tables predictably, so when no heading matches, the first
// table whose full text contains the label is taken instead. A heading with no
// following table yields nothing; the fallback applies only when no heading
// matched at all.
func locateCategoryTable(doc *goquery.Document, category string) *goquery.Selection {
	needle := strings.ToLower(category)

	var heading *goquery.Selection
	doc.Find("h3, h4, strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), needle) {
			heading = s
			return false
		}
		return true
	})

	if heading != nil {
		node := nextTableNode(heading.Nodes[0])
		if node == nil {
			return nil
		}
		return doc.FindNodes(node)
	}

	var table *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(s.Text()), needle) {
			table = s
			return false
		}
		return true
	})
	return table
}

// nextTableNode walks forward in document order from n (not just siblings) and
// returns the first table element.
func nextTableNode(n *html.Node) *html.Node {
	for n = nextNode(n); n != nil; n = nextNode(n) {
		if n.Type == html.ElementNode && n.Data == "table" {
			return n
		}
	}
	return nil
}

func nextNode(n *html.Node) *html.Node {
	if n.FirstChild != nil {
		return n.FirstChild
	}
	for n != nil {
		if n.NextSibling != nil {
			return n.NextSibling
		}
		n = n.Parent
	}
	return nil
}

type cell struct {
	text string
	link string
}

// rawRow is the fixed-arity decode of one table row. Column positions are a
// contract with the source page: 0=indicator, 1=period, 2=unit, 3=value,
// 4=change on previous period, 5=change year-on-year when present. There is no
// header-name lookup; a reordered source page misassigns fields.
type rawRow struct {
	indicator        cell
	period           string
	unit             string
	value            string
	changePrevPeriod string
	changeYearOnYear string
}

// parseTable converts an HTML table into indicator records. The first row is
// the header and is always skipped. Skipped data rows are returned as
// reason → count, never as an error.
func parseTable(table *goquery.Selection, category string) ([]model.IndicatorRecord, map[string]int) {
	records := make([]model.IndicatorRecord, 0)
	skipped := make(map[string]int)

	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		decoded, err := decodeRow(extractCells(row))
		if err != nil {
			skipped[err.Error()]++
			return
		}
		records = append(records, buildRecord(decoded, category))
	})

	return records, skipped
}

func extractCells(row *goquery.Selection) []cell {
	cells := make([]cell, 0, minRowCells+1)
	row.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		c := cell{text: strings.TrimSpace(s.Text())}
		if link := s.Find("a").First(); link.Length() > 0 {
			c.link, _ = link.Attr("href")
		}
		cells = append(cells, c)
	})
	return cells
}

func decodeRow(cells []cell) (rawRow, error) {
	if len(cells) < minRowCells {
		return rawRow{}, errShortRow
	}

	row := rawRow{
		indicator:        cells[0],
		period:           cells[1].text,
		unit:             cells[2].text,
		value:            cells[3].text,
		changePrevPeriod: cells[4].text,
	}
	if len(cells) > minRowCells {
		row.changeYearOnYear = cells[5].text
	}
	return row, nil
}

// buildRecord derives the computed fields from a decoded row. Value and period
// datetime degrade to nil on parse failure; frequency resolves independently of
// the datetime.
func buildRecord(row rawRow, category string) model.IndicatorRecord {
	period := NormalizePeriod(row.period)

	record := model.IndicatorRecord{
		DatasetID:        DatasetID(row.indicator.text, category),
		Category:         category,
		Indicator:        row.indicator.text,
		IndicatorLink:    row.indicator.link,
		Period:           period,
		Frequency:        DetectFrequency(period),
		Unit:             row.unit,
		ValueRaw:         row.value,
		ChangePrevPeriod: row.changePrevPeriod,
		ChangeYearOnYear: row.changeYearOnYear,
	}

	if value, ok := ParseValue(row.value); ok {
		record.Value = &value
	}
	if t, ok := PeriodTime(period); ok {
		record.PeriodTime = &t
	}
	return record
}
