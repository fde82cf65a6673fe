package pricing

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Strategy names, in cascade order
const (
	StrategyPriceField     = "price_field"
	StrategyExtractedPrice = "extracted_price"
	StrategyRichSnippet    = "rich_snippet"
	StrategyKeyScan        = "key_scan"
	StrategyMoneyEntity    = "money_entity"
	StrategyTextRegex      = "text_regex"
)

// richSnippetPricePath is the nested price Google attaches to some organic results
const richSnippetPricePath = "rich_snippet.bottom.detected_extensions.price"

var (
	// moneyEntityNoiseRegex keeps digits, dots and grouping commas of an entity
	moneyEntityNoiseRegex = regexp.MustCompile(`[^\d.,]`)

	// rupeePrefixRegex drops the "Rs." abbreviation so its dot is not read as a decimal point
	rupeePrefixRegex = regexp.MustCompile(`(?i)^[\s\p{Zs}]*rs\.`)

	// textPriceRegex requires a fractional part, e.g. "£1,049.99"
	textPriceRegex = regexp.MustCompile(`[$₹€£][\s\p{Zs}]?(\d{1,3}(?:,\d{3})*(?:\.\d+))`)
)

// textFields are concatenated for free-text detection
var textFields = []string{"title", "description", "snippet"}

// Strategy is one step of the price cascade. It reports false when it cannot
// produce a price.
type Strategy struct {
	Name    string
	Extract func(item gjson.Result) (float64, bool)
}

// Extractor finds a best-effort numeric price in a raw offer record
type Extractor struct {
	recognizer MoneyRecognizer
	strategies []Strategy
}

// NewExtractor creates an extractor. A nil recognizer disables money entity detection.
func NewExtractor(recognizer MoneyRecognizer) *Extractor {
	e := &Extractor{recognizer: recognizer}
	e.strategies = []Strategy{
		{Name: StrategyPriceField, Extract: fromPriceField},
		{Name: StrategyExtractedPrice, Extract: fromExtractedPrice},
		{Name: StrategyRichSnippet, Extract: fromRichSnippet},
		{Name: StrategyKeyScan, Extract: fromKeyScan},
		{Name: StrategyMoneyEntity, Extract: e.fromMoneyEntity},
		{Name: StrategyTextRegex, Extract: fromTextRegex},
	}
	return e
}

// Strategies returns the cascade in priority order
func (e *Extractor) Strategies() []Strategy {
	out := make([]Strategy, len(e.strategies))
	copy(out, e.strategies)
	return out
}

// Extract returns the first price produced by the cascade
func (e *Extractor) Extract(item gjson.Result) (float64, bool) {
	_, price, ok := e.ExtractWithStrategy(item)
	return price, ok
}

// ExtractWithStrategy is Extract that also names the strategy that succeeded
func (e *Extractor) ExtractWithStrategy(item gjson.Result) (string, float64, bool) {
	for _, strategy := range e.strategies {
		if price, ok := strategy.Extract(item); ok {
			return strategy.Name, price, true
		}
	}
	return "", 0, false
}

func fromPriceField(item gjson.Result) (float64, bool) {
	price := item.Get("price")
	if !price.Exists() {
		return 0, false
	}
	return ParsePriceString(price.String())
}

func fromExtractedPrice(item gjson.Result) (float64, bool) {
	extracted := item.Get("extracted_price")
	if extracted.Type != gjson.Number {
		return 0, false
	}
	return extracted.Float(), true
}

// fromRichSnippet validates the nested value before coercing it; anything other
// than a number or a numeric string counts as absent.
func fromRichSnippet(item gjson.Result) (float64, bool) {
	price := item.Get(richSnippetPricePath)
	switch price.Type {
	case gjson.Number:
		return price.Float(), true
	case gjson.String:
		value, err := strconv.ParseFloat(strings.TrimSpace(price.Str), 64)
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}

func fromKeyScan(item gjson.Result) (float64, bool) {
	if !item.IsObject() {
		return 0, false
	}

	var (
		found bool
		price float64
	)
	item.ForEach(func(key, value gjson.Result) bool {
		if !LooksLikePrice(key.String(), value) {
			return true
		}
		if v, ok := parseCleanNumber(value.String()); ok {
			price, found = v, true
			return false
		}
		return true
	})
	return price, found
}

func (e *Extractor) fromMoneyEntity(item gjson.Result) (float64, bool) {
	if e.recognizer == nil {
		return 0, false
	}

	text := itemText(item)
	if text == "" {
		return 0, false
	}

	for _, entity := range e.recognizer.Recognize(text) {
		if entity.Label != LabelMoney {
			continue
		}
		num := rupeePrefixRegex.ReplaceAllString(entity.Text, "")
		num = strings.ReplaceAll(moneyEntityNoiseRegex.ReplaceAllString(num, ""), ",", "")
		value, err := strconv.ParseFloat(num, 64)
		if err != nil {
			continue
		}
		return value, true
	}
	return 0, false
}

func fromTextRegex(item gjson.Result) (float64, bool) {
	match := textPriceRegex.FindStringSubmatch(itemText(item))
	if match == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// itemText joins the non-empty free-text fields of an item with single spaces
func itemText(item gjson.Result) string {
	parts := make([]string, 0, len(textFields))
	for _, field := range textFields {
		value := item.Get(field)
		if value.Type != gjson.String || value.Str == "" {
			continue
		}
		parts = append(parts, PlainText(value.Str))
	}
	return strings.Join(parts, " ")
}
