package pricing

import "regexp"

// LabelMoney is the entity label for monetary amounts
const LabelMoney = "MONEY"

// Entity is a labeled span of free text
type Entity struct {
	Label string
	Text  string
}

// MoneyRecognizer detects labeled entities in free text. Only MONEY entities are
// consumed by the extractor, in the order they are returned.
type MoneyRecognizer interface {
	Recognize(text string) []Entity
}

// moneyEntityRegex covers symbol or code prefixed amounts ("$1,299", "Rs. 4,999",
// "EUR 450") and amounts followed by a currency word ("450 euros", "20 USD")
var moneyEntityRegex = regexp.MustCompile(
	`(?i)(?:[$₹€£]|\b(?:US\$|USD|INR|EUR|GBP|Rs\.?)[\s\p{Zs}]?)[\s\p{Zs}]?\d[\d,]*(?:\.\d+)?` +
		`|\b\d[\d,]*(?:\.\d+)?[\s\p{Zs}]?(?:dollars?|euros?|rupees?|pounds?|usd|inr|eur|gbp)\b`,
)

// RuleRecognizer is a pattern based MoneyRecognizer
type RuleRecognizer struct {
	pattern *regexp.Regexp
}

// NewRuleRecognizer creates a recognizer with the built-in money patterns
func NewRuleRecognizer() *RuleRecognizer {
	return &RuleRecognizer{pattern: moneyEntityRegex}
}

// Recognize returns MONEY entities in order of appearance
func (r *RuleRecognizer) Recognize(text string) []Entity {
	if text == "" {
		return nil
	}

	matches := r.pattern.FindAllString(text, -1)
	entities := make([]Entity, 0, len(matches))
	for _, match := range matches {
		entities = append(entities, Entity{Label: LabelMoney, Text: match})
	}
	return entities
}
