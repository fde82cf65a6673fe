// Package pricing locates monetary values inside loosely structured offer records.
package pricing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Package-level compiled regex patterns
var (
	// strictPriceRegex matches a whole string such as "$1,234.50", "INR 999" or "1,299"
	strictPriceRegex = regexp.MustCompile(`^(?:\$|₹|€|£|USD|INR|EUR|GBP)?[\s\p{Zs}]*\d{1,3}(?:,\d{3})*(?:\.\d+)?$`)

	// nonNumericRegex drops everything except digits and the decimal point
	nonNumericRegex = regexp.MustCompile(`[^\d.]`)

	// value shapes accepted by LooksLikePrice; \p{Zs} covers the no-break space
	symbolAmountRegex = regexp.MustCompile(`[$₹€£][\s\p{Zs}]?\d{1,3}(?:,\d{3})*(?:\.\d+)?`)
	bareAmountRegex   = regexp.MustCompile(`^\d{1,3}(?:,\d{3})*(?:\.\d+)?$`)
	recurringRegex    = regexp.MustCompile(`(?i)per[\s\p{Zs}]?(?:month|mo|week|year)`)
	installmentRegex  = regexp.MustCompile(`(?i)EMI|installment`)
)

// priceKeyWords are the key fragments that make a field a price candidate
var priceKeyWords = []string{"price", "amount", "cost", "rate", "pay", "mrp"}

// ParsePriceString parses a string that is unambiguously a currency amount.
// Anything else, including a numeral that fails to parse after cleanup, reports false.
func ParsePriceString(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || !strictPriceRegex.MatchString(trimmed) {
		return 0, false
	}
	return parseCleanNumber(trimmed)
}

// LooksLikePrice reports whether a key/value pair is probably a price
func LooksLikePrice(key string, value gjson.Result) bool {
	if !value.Exists() || value.Type == gjson.Null {
		return false
	}

	if !isPriceKey(key) {
		return false
	}

	switch value.Type {
	case gjson.Number:
		return value.Float() > 0
	case gjson.String:
		text := value.Str
		return symbolAmountRegex.MatchString(text) ||
			bareAmountRegex.MatchString(strings.TrimSpace(text)) ||
			recurringRegex.MatchString(text) ||
			installmentRegex.MatchString(text)
	default:
		return false
	}
}

func isPriceKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, word := range priceKeyWords {
		if strings.Contains(keyLower, word) {
			return true
		}
	}
	return false
}

// parseCleanNumber strips every non-digit, non-dot character and parses the rest
func parseCleanNumber(s string) (float64, bool) {
	num := nonNumericRegex.ReplaceAllString(s, "")
	if num == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}
