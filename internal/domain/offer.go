package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Origin identifies which section of a search payload produced an offer candidate
type Origin string

const (
	OriginProductResult   Origin = "product_result"
	OriginShoppingResults Origin = "shopping_results"
	OriginOrganicResults  Origin = "organic_results"
)

// SearchPayload is the raw JSON document returned by the search-results provider
type SearchPayload []byte

// OfferCandidate is one offer extracted from a single payload section, before filtering.
// Absent values are nil and serialize as null.
type OfferCandidate struct {
	Title          *string  `json:"title" yaml:"title"`
	Description    *string  `json:"description" yaml:"description"`
	Price          any      `json:"price" yaml:"price"` // verbatim from the source: string, number or nil
	ExtractedPrice *float64 `json:"extracted_price" yaml:"extracted_price"`
	Link           string   `json:"link" yaml:"link"`
	Source         *string  `json:"source" yaml:"source"`
	Thumbnail      *string  `json:"thumbnail" yaml:"thumbnail"`
	Origin         Origin   `json:"origin" yaml:"origin"`
}

// NormalizedOffer is the reconciled schema unifying flat and installment pricing
type NormalizedOffer struct {
	Title          *string `json:"title" yaml:"title"`
	Source         *string `json:"source" yaml:"source"`
	Link           string  `json:"link" yaml:"link"`
	Plan           *string `json:"plan" yaml:"plan"`
	MonthlyPrice   *Amount `json:"monthly_price" yaml:"monthly_price"`
	TotalPrice     *Amount `json:"total_price" yaml:"total_price"`
	ExtractedPrice *Amount `json:"extracted_price" yaml:"extracted_price"`
	Currency       *string `json:"currency" yaml:"currency"`
}

// Amount is a monetary value that may arrive as a JSON number or a numeric string
// such as "₹1,299.00".
type Amount float64

// amountRegex matches a string holding exactly one amount, optionally tagged with
// a currency symbol or code. Western and Indian digit grouping are both accepted.
var amountRegex = regexp.MustCompile(
	`^(?i:[$₹€£]|US\$|USD|INR|EUR|GBP|RS\.?)?[\s\p{Zs}]*` +
		`(-?(?:\d{1,3}(?:,\d{2,3})+|\d+)(?:\.\d+)?)` +
		`[\s\p{Zs}]*(?i:USD|INR|EUR|GBP)?$`,
)

// UnmarshalJSON accepts numbers and strings holding a single amount. Strings that
// combine several numbers, such as "₹2,500 x 12", are rejected.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*a = Amount(number)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return err
	}
	match := amountRegex.FindStringSubmatch(strings.TrimSpace(text))
	if match == nil {
		return fmt.Errorf("invalid amount %q", text)
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", text)
	}
	*a = Amount(value)
	return nil
}

// Float returns the amount as a float64
func (a Amount) Float() float64 {
	return float64(a)
}

// UnmarshalJSON decodes an offer. Amount fields that do not hold a single amount,
// such as "N/A" or a price range, are left nil instead of failing the offer.
func (o *NormalizedOffer) UnmarshalJSON(data []byte) error {
	type plain NormalizedOffer
	var raw struct {
		plain
		MonthlyPrice   json.RawMessage `json:"monthly_price"`
		TotalPrice     json.RawMessage `json:"total_price"`
		ExtractedPrice json.RawMessage `json:"extracted_price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*o = NormalizedOffer(raw.plain)
	o.MonthlyPrice = optionalAmount(raw.MonthlyPrice)
	o.TotalPrice = optionalAmount(raw.TotalPrice)
	o.ExtractedPrice = optionalAmount(raw.ExtractedPrice)
	return nil
}

func optionalAmount(data json.RawMessage) *Amount {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	var amount Amount
	if err := json.Unmarshal(data, &amount); err != nil {
		return nil
	}
	return &amount
}

// SearchRequest represents an offer search request
type SearchRequest struct {
	Product  string `json:"product" form:"product" binding:"required"`
	Location string `json:"location,omitempty" form:"location"`
	UseLLM   bool   `json:"use_llm,omitempty" form:"use_llm"`
}

// SearchQuery is the provider-level query derived from a SearchRequest
type SearchQuery struct {
	Query        string
	CountryCode  string
	Location     string
	Language     string
	GoogleDomain string
}

// OfferResult is the pipeline output. It holds either pass-through candidates or
// reconciled offers, never both.
type OfferResult struct {
	Candidates []OfferCandidate
	Normalized []NormalizedOffer
	Reconciled bool
}

// Len returns the number of offers in the result
func (r *OfferResult) Len() int {
	if r.Reconciled {
		return len(r.Normalized)
	}
	return len(r.Candidates)
}

// Items returns the offers as a slice suitable for encoding
func (r *OfferResult) Items() any {
	if r.Reconciled {
		if r.Normalized == nil {
			return []NormalizedOffer{}
		}
		return r.Normalized
	}
	if r.Candidates == nil {
		return []OfferCandidate{}
	}
	return r.Candidates
}

// MarshalJSON encodes the result as a bare array
func (r OfferResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Items())
}
