// Package insight extracts pain points, questions and requests from community
// posts and folds them into scoring signals.
package insight

import (
	"regexp"
	"strings"
)

// Family is a class of phrasing detected in free text.
type Family string

const (
	FamilyPain     Family = "pain"
	FamilyQuestion Family = "question"
	FamilyRequest  Family = "request"
	FamilySolution Family = "solution"
	FamilyBelief   Family = "belief"
)

var families = map[Family][]*regexp.Regexp{
	FamilyPain: compile(
		`\b(struggle|struggling|difficult|hard to|can't|cannot|unable to)\b`,
		`\b(frustrated|frustrating|annoying|annoyed|hate|hating)\b`,
		`\b(problem|issue|bug|broken|doesn't work|not working)\b`,
		`\b(wish there was|if only|would be nice if)\b`,
		`\b(tired of|sick of|fed up with)\b`,
		`\b(waste of time|time consuming|takes forever)\b`,
		`\b(expensive|overpriced|costs too much|can't afford)\b`,
		`\b(complicated|confusing|complex|overwhelming)\b`,
	),
	FamilyQuestion: compile(
		`\b(how do i|how can i|how to|what's the best way)\b`,
		`\b(anyone know|does anyone|has anyone)\b`,
		`\b(looking for|searching for|need help with|need a)\b`,
		`\b(recommend|suggestion|advice|tips)\b`,
		`\b(alternative to|replacement for|instead of)\b`,
		`\b(is there a|are there any)\b`,
		`\?\s*$`,
	),
	FamilyRequest: compile(
		`\b(wish|want|need|require|would love)\b`,
		`\b(should have|must have|needs to have)\b`,
		`\b(feature request|suggestion|idea)\b`,
		`\b(please add|can you add|would be great if)\b`,
	),
	FamilySolution: compile(
		`\b(i use|i'm using|we use|currently using)\b`,
		`\b(switched to|moved to|migrated to)\b`,
		`\b(recommend|love|great tool|best tool)\b`,
		`\b(solved by|fixed by|helped by)\b`,
	),
	FamilyBelief: compile(
		`\b(i think|i believe|in my opinion|imo|imho)\b`,
		`\b(the problem is|the issue is|the truth is)\b`,
		`\b(people don't realize|most people think)\b`,
		`\b(the best approach|the right way|should be)\b`,
	),
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Matches reports whether text contains any phrasing of family f.
func Matches(text string, f Family) bool {
	text = normalizeQuotes(text)
	for _, re := range families[f] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// sentenceRe keeps the terminator so trailing question marks survive.
var sentenceRe = regexp.MustCompile(`[^.!?\n]+[.!?]*`)

// Sentences splits text on sentence terminators and newlines, dropping blanks.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalizeQuotes folds typographic apostrophes so "can’t" matches "can't".
func normalizeQuotes(s string) string {
	return strings.NewReplacer("’", "'", "‘", "'").Replace(s)
}
