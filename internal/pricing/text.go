package pricing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText flattens snippet markup such as "<b>₹450</b>" or "&#8377;450" to plain
// text. Strings without markup are returned unchanged.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return doc.Text()
}
