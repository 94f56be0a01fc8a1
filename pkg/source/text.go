package source

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var stripPolicy = bluemonday.StrictPolicy()

// stripTags turns an HTML fragment into plain text with collapsed whitespace.
func stripTags(s string) string {
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("<p>", " ", "<br>", " ", "<br/>", " ").Replace(s)
	return strings.Join(strings.Fields(html.UnescapeString(stripPolicy.Sanitize(s))), " ")
}
