package storefront

import (
	"regexp"
	"strconv"
	"strings"
)

// Heuristics for pulling a price and product label out of free-form
// adapter output, e.g. automation transcripts ending in
// `complete(success=True, reason="PRICE: ₹1,299 for Acme Earbuds")`.

var (
	rePriceTag = regexp.MustCompile(`(?i)PRICE:\s*₹?\s*([\d,]+(?:\.\d{1,2})?)`)
	rePriceIs  = regexp.MustCompile(`(?i)price\s+is\s+₹?\s*([\d,]+(?:\.\d{1,2})?)`)
	reRupee    = regexp.MustCompile(`₹\s*([\d,]+(?:\.\d{1,2})?)`)
	reLabelFor = regexp.MustCompile(`(?i)for\s+([^"\n)]+)`)
)

// plausible price bounds for the bare-₹ fallback; avoids matching order
// totals, pin codes, and phone numbers floating in transcripts.
const (
	minPlausiblePrice = 10
	maxPlausiblePrice = 500000
)

func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractPrice scans text for a price. Tagged forms ("PRICE: ₹…",
// "price is ₹…") win; otherwise the first bare ₹ amount within plausible
// bounds is used.
func ExtractPrice(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	for _, re := range []*regexp.Regexp{rePriceTag, rePriceIs} {
		if m := re.FindStringSubmatch(text); m != nil {
			if v, ok := parseAmount(m[1]); ok {
				return v, true
			}
		}
	}
	for _, m := range reRupee.FindAllStringSubmatch(text, -1) {
		if v, ok := parseAmount(m[1]); ok && v >= minPlausiblePrice && v <= maxPlausiblePrice {
			return v, true
		}
	}
	return 0, false
}

// ExtractLabel pulls a normalized product label from "... for <label>"
// phrasing, falling back to def when nothing plausible is present.
func ExtractLabel(text, def string) string {
	if m := reLabelFor.FindStringSubmatch(text); m != nil {
		label := strings.TrimSpace(strings.Trim(m[1], `"`))
		if len(label) > 3 && len(label) < 100 {
			return label
		}
	}
	return def
}
