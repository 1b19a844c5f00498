package usecase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pricepilot/linkverify/internal/domain"
)

// Package-level compiled regex pattern for performance
var firstNumberRegex = regexp.MustCompile(`\d+(\.\d*)?`)

// currencyReplacer strips known currency symbols and thousands separators.
var currencyReplacer = strings.NewReplacer("£", "", "$", "", "€", "", ",", "")

// noPriceSentinels are placeholder strings retailers (and the oracle) use
// when a product has no listed price.
var noPriceSentinels = map[string]bool{
	"not listed":    true,
	"n/a":           true,
	"na":            true,
	"not available": true,
	"not specified": true,
}

// ParsePrice extracts a numeric value from a heterogeneous price string.
// It strips currency symbols and comma separators, treats known "no price"
// placeholders as absent, and otherwise parses the first number-like token.
// The second return value reports whether a value was found.
//
// This is intentionally permissive: it takes the first numeric token in the
// string, so callers must pre-filter strings where SKU numbers or other
// numeric noise could precede the actual price.
func ParsePrice(s string) (float64, bool) {
	cleaned := strings.TrimSpace(currencyReplacer.Replace(s))
	if cleaned == "" {
		return 0, false
	}
	if noPriceSentinels[strings.ToLower(cleaned)] {
		return 0, false
	}

	match := firstNumberRegex.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ComparePrices compares a scraped price string against a reference price
// string and yields a verdict plus the savings amount when the scraped price
// wins. If either side is absent or unparseable the verdict is
// unable_to_compare, the default/safe state.
//
// An empty referencePrice means no reference price was supplied.
func ComparePrices(scrapedPrice, referencePrice string) domain.PriceComparison {
	scraped, scrapedOK := ParsePrice(scrapedPrice)
	reference, referenceOK := ParsePrice(referencePrice)

	if !scrapedOK || !referenceOK {
		return domain.PriceComparison{Verdict: domain.VerdictUnableToCompare}
	}

	switch {
	case scraped < reference:
		savings := fmt.Sprintf("£%.2f", reference-scraped)
		return domain.PriceComparison{Verdict: domain.VerdictLower, Savings: &savings}
	case scraped > reference:
		return domain.PriceComparison{Verdict: domain.VerdictHigher}
	default:
		// Exact float equality, matching the documented comparison semantics.
		return domain.PriceComparison{Verdict: domain.VerdictSame}
	}
}
