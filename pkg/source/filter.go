package source

import (
	"strings"
	"unicode"
)

// Filter keeps items relevant to a niche. An item matches when its text holds
// the whole niche phrase, any extra keyword, or every significant word of the
// niche, and no excluded keyword.
type Filter struct {
	phrase   string
	words    []string
	keywords []string
	exclude  []string
}

// nicheStopwords are dropped when splitting a niche into words.
var nicheStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "for": true,
	"of": true, "in": true, "on": true, "to": true, "with": true,
}

// NewFilter creates a filter for niche plus extra and excluded keywords.
func NewFilter(niche string, extraKeywords, excludeKeywords []string) *Filter {
	f := &Filter{phrase: strings.ToLower(strings.TrimSpace(niche))}

	for _, w := range strings.FieldsFunc(f.phrase, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if !nicheStopwords[w] {
			f.words = append(f.words, w)
		}
	}
	for _, kw := range extraKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.keywords = append(f.keywords, kw)
		}
	}
	for _, kw := range excludeKeywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			f.exclude = append(f.exclude, kw)
		}
	}
	return f
}

// Matches reports whether text is about the niche.
func (f *Filter) Matches(text string) bool {
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}
	if f.phrase != "" && strings.Contains(lower, f.phrase) {
		return true
	}
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	if len(f.words) == 0 {
		return false
	}
	for _, w := range f.words {
		if !strings.Contains(lower, w) {
			return false
		}
	}
	return true
}

// Apply returns the items whose title or description matches.
func (f *Filter) Apply(items []Item) []Item {
	var out []Item
	for _, it := range items {
		if f.Matches(it.Title + " " + it.Description) {
			out = append(out, it)
		}
	}
	return out
}
