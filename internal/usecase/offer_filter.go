package usecase

import (
	"strings"

	"github.com/offerlens/backend/internal/domain"
)

// DefaultExclusionKeywords mark editorial or comparison pages rather than offers
var DefaultExclusionKeywords = []string{"compare", "review", "blog", "Leak", "Innovation", "Consumer"}

// OfferFilter drops candidates that point at non-commerce pages.
//
// Keywords match the link case-sensitively but the title and source
// case-insensitively, so "Review" in a title is dropped while "/Review/" in a
// link is not.
type OfferFilter struct {
	keywords      []string
	lowerKeywords []string
}

// NewOfferFilter creates a filter. An empty keyword list selects DefaultExclusionKeywords.
func NewOfferFilter(keywords []string) *OfferFilter {
	if len(keywords) == 0 {
		keywords = DefaultExclusionKeywords
	}

	f := &OfferFilter{
		keywords:      make([]string, 0, len(keywords)),
		lowerKeywords: make([]string, 0, len(keywords)),
	}
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		f.keywords = append(f.keywords, keyword)
		f.lowerKeywords = append(f.lowerKeywords, strings.ToLower(keyword))
	}
	return f
}

// Keywords returns the exclusion vocabulary
func (f *OfferFilter) Keywords() []string {
	out := make([]string, len(f.keywords))
	copy(out, f.keywords)
	return out
}

// Filter returns the candidates that pass every exclusion rule, in input order
func (f *OfferFilter) Filter(candidates []domain.OfferCandidate) []domain.OfferCandidate {
	kept := make([]domain.OfferCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if f.excluded(candidate) {
			continue
		}
		kept = append(kept, candidate)
	}

	// second pass: link only
	out := kept[:0]
	for _, candidate := range kept {
		if f.linkExcluded(candidate.Link) {
			continue
		}
		out = append(out, candidate)
	}
	return out
}

func (f *OfferFilter) excluded(candidate domain.OfferCandidate) bool {
	if f.linkExcluded(candidate.Link) {
		return true
	}

	title := strings.ToLower(stringValue(candidate.Title))
	source := strings.ToLower(stringValue(candidate.Source))
	for _, keyword := range f.lowerKeywords {
		if strings.Contains(title, keyword) || strings.Contains(source, keyword) {
			return true
		}
	}
	return false
}

func (f *OfferFilter) linkExcluded(link string) bool {
	for _, keyword := range f.keywords {
		if strings.Contains(link, keyword) {
			return true
		}
	}
	return false
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
