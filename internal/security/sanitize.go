package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText strips every HTML element from s, collapses runs of whitespace
// and trims the result. Entities escaped by the policy are decoded again so
// "Rue 5 & 6" survives unchanged.
func PlainText(s string) string {
	cleaned := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}
