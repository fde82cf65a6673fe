package serpapi

import (
	"github.com/offerlens/backend/internal/domain"
	"github.com/offerlens/backend/internal/pricing"
	"github.com/tidwall/gjson"
)

// Payload sections, in the order they are assembled
const (
	SectionProductResult     = "product_result"
	SectionShoppingResults   = "shopping_results"
	SectionImmersiveProducts = "immersive_products"
	SectionOrganicResults    = "organic_results"
)

// Assembler maps a raw search payload onto offer candidates
type Assembler struct {
	extractor *pricing.Extractor
}

// NewAssembler creates an assembler that infers organic result prices with extractor
func NewAssembler(extractor *pricing.Extractor) *Assembler {
	return &Assembler{extractor: extractor}
}

// Assemble walks the payload sections in order and emits one candidate per item,
// keeping only the first candidate seen for each link (the empty link included).
func (a *Assembler) Assemble(payload gjson.Result) []domain.OfferCandidate {
	var results []domain.OfferCandidate
	seenLinks := make(map[string]struct{})

	add := func(candidate domain.OfferCandidate) {
		if _, seen := seenLinks[candidate.Link]; seen {
			return
		}
		seenLinks[candidate.Link] = struct{}{}
		results = append(results, candidate)
	}

	productResult := payload.Get(SectionProductResult)
	title := optionalString(productResult.Get("title"))
	for _, item := range objects(productResult.Get("pricing")) {
		add(domain.OfferCandidate{
			Title:          title,
			Description:    optionalString(item.Get("description")),
			Price:          item.Get("price").Value(),
			ExtractedPrice: optionalNumber(item.Get("extracted_price")),
			Link:           item.Get("link").String(),
			Source:         optionalString(item.Get("name")),
			Thumbnail:      optionalString(item.Get("thumbnail")),
			Origin:         domain.OriginProductResult,
		})
	}

	// immersive products share the shopping_results origin tag
	for _, section := range []string{SectionShoppingResults, SectionImmersiveProducts} {
		for _, item := range objects(payload.Get(section)) {
			add(shoppingCandidate(item))
		}
	}

	for _, item := range objects(payload.Get(SectionOrganicResults)) {
		add(a.organicCandidate(item))
	}

	return results
}

func shoppingCandidate(item gjson.Result) domain.OfferCandidate {
	return domain.OfferCandidate{
		Title:          optionalString(item.Get("title")),
		Price:          item.Get("price").Value(),
		ExtractedPrice: optionalNumber(item.Get("extracted_price")),
		Link:           item.Get("link").String(),
		Source:         optionalString(item.Get("source")),
		Thumbnail:      optionalString(item.Get("thumbnail")),
		Origin:         domain.OriginShoppingResults,
	}
}

// organicCandidate infers the price, since organic results carry no price block
func (a *Assembler) organicCandidate(item gjson.Result) domain.OfferCandidate {
	candidate := domain.OfferCandidate{
		Title:       optionalString(item.Get("title")),
		Description: optionalString(item.Get("snippet")),
		Link:        item.Get("link").String(),
		Source:      optionalString(item.Get("displayed_link")),
		Origin:      domain.OriginOrganicResults,
	}

	if price, ok := a.extractor.Extract(item); ok {
		candidate.Price = price
		candidate.ExtractedPrice = &price
	}
	return candidate
}

// objects returns the object elements of a JSON array; anything else yields none
func objects(value gjson.Result) []gjson.Result {
	if !value.IsArray() {
		return nil
	}
	var items []gjson.Result
	for _, item := range value.Array() {
		if item.IsObject() {
			items = append(items, item)
		}
	}
	return items
}

// optionalString returns nil for absent or null values and the string form otherwise
func optionalString(value gjson.Result) *string {
	if !value.Exists() || value.Type == gjson.Null {
		return nil
	}
	s := value.String()
	return &s
}

// optionalNumber returns nil unless value is a JSON number
func optionalNumber(value gjson.Result) *float64 {
	if value.Type != gjson.Number {
		return nil
	}
	f := value.Float()
	return &f
}
