package abs

import (
	"regexp"
	"strings"
)

const maxDatasetIDLength = 50

var nonWordPattern = regexp.MustCompile(`[^\w\s]`)

type termAbbrev struct {
	term   string
	abbrev string
}

// Checked in order; the first phrase found as a substring of the cleaned
// indicator name wins.
var termAbbrevs = []termAbbrev{
	{"gross domestic product", "gdp"},
	{"consumer price index", "cpi"},
	{"unemployment rate", "unemploy_rate"},
	{"employed persons", "employed"},
	{"participation rate", "particip_rate"},
	{"retail turnover", "retail"},
	{"building approvals", "building_app"},
	{"wage price index", "wpi"},
	{"dwelling", "dwelling"},
	{"loan commitments", "loans"},
	{"balance on goods", "trade_balance"},
	{"current account", "current_acc"},
}

// DatasetID derives the stable series key for an indicator/category pair. The
// same inputs always produce the same id, which is how successive scrapes of
// one series line up in the history.
func DatasetID(indicator, category string) string {
	if indicator == "" {
		return "unknown"
	}

	cleaned := nonWordPattern.ReplaceAllString(strings.ToLower(indicator), "")

	keyTerms := make([]string, 0, 3)
	for _, entry := range termAbbrevs {
		if strings.Contains(cleaned, entry.term) {
			keyTerms = append(keyTerms, entry.abbrev)
			break
		}
	}

	if len(keyTerms) == 0 {
		words := strings.Fields(cleaned)
		if len(words) > 3 {
			words = words[:3]
		}
		for _, word := range words {
			if len(word) <= 2 {
				continue
			}
			if len(word) > 4 {
				word = word[:4]
			}
			keyTerms = append(keyTerms, word)
		}
	}

	categoryAbbrev := strings.ReplaceAll(strings.ToLower(category), " ", "_")
	if len(categoryAbbrev) > 4 {
		categoryAbbrev = categoryAbbrev[:4]
	}

	id := "abs_" + categoryAbbrev + "_" + strings.Join(keyTerms, "_")
	if len(id) > maxDatasetIDLength {
		id = id[:maxDatasetIDLength]
	}
	return id
}
