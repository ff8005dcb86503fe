package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ChangePercent derives the daily change in percent.
// With a positive previous close it computes (current-previous)/previous*100
// rounded to 2 decimals; otherwise it falls back to the upstream supplied
// rate, else 0.
func ChangePercent(current, previous float64, rawRate *float64) float64 {
	if previous > 0 {
		cur := decimal.NewFromFloat(current)
		prev := decimal.NewFromFloat(previous)
		pct := cur.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		return pct.InexactFloat64()
	}
	if rawRate != nil {
		return *rawRate
	}
	return 0
}

// Number converts an upstream JSON value into a float.
// Accepts numbers, json.Number and strings such as "70,000", "+1.25%" or " 3 ".
func Number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		return parseDecimal(x.String())
	case string:
		return parseDecimal(x)
	}
	return 0, false
}

var numberNoise = strings.NewReplacer(",", "", "%", "", "+", "", " ", "", " ", "")

func parseDecimal(s string) (float64, bool) {
	s = numberNoise.Replace(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

var (
	siteSuffixRe = regexp.MustCompile(`\s*:\s*(네이버\s*(페이\s*)?(금융|증권)|Naver\s*Finance)\s*$`)
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// Name cleans a scraped display name: strips markup and the site suffix of
// page titles, and collapses whitespace.
func Name(s string) string {
	s = tagRe.ReplaceAllString(s, "")
	s = siteSuffixRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
