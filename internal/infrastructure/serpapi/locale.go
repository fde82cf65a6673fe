package serpapi

import (
	"strings"

	"github.com/offerlens/backend/internal/domain"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultCountry is used when a request carries no location
const DefaultCountry = "US"

// countryNames maps country codes to the location names SerpAPI expects
var countryNames = map[string]string{
	"US": "United States",
	"IN": "India",
	"UK": "United Kingdom",
	"DE": "Germany",
	"FR": "France",
	"CA": "Canada",
	"AU": "Australia",
	"SG": "Singapore",
	"AE": "United Arab Emirates",
	"JP": "Japan",
	"CN": "China",
}

// countryDomains maps country codes to the Google domain to search
var countryDomains = map[string]string{
	"US": "google.com",
	"IN": "google.co.in",
	"UK": "google.co.uk",
}

// LocationName returns the display name for a country code. Codes outside the
// table fall back to the English region name, then to the code itself.
func LocationName(countryCode string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if name, ok := countryNames[code]; ok {
		return name
	}

	if region, err := language.ParseRegion(code); err == nil && region.IsCountry() {
		if name := display.English.Regions().Name(region); name != "" {
			return name
		}
	}
	return countryCode
}

// GoogleDomain returns the Google domain for a country code
func GoogleDomain(countryCode string) string {
	if host, ok := countryDomains[strings.ToUpper(strings.TrimSpace(countryCode))]; ok {
		return host
	}
	return "google.com"
}

// BuildQuery derives the provider query for a product search in a country
func BuildQuery(product, countryCode string) domain.SearchQuery {
	code := strings.TrimSpace(countryCode)
	if code == "" {
		code = DefaultCountry
	}

	return domain.SearchQuery{
		Query:        strings.TrimSpace(product),
		CountryCode:  strings.ToLower(code),
		Location:     LocationName(code),
		Language:     "en",
		GoogleDomain: GoogleDomain(code),
	}
}
