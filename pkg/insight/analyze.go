package insight

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Insights groups the sentences of a text by the phrasing they match. A
// sentence can land in several groups.
type Insights struct {
	PainPoints []string `json:"pain_points,omitempty"`
	Questions  []string `json:"questions,omitempty"`
	Requests   []string `json:"requests,omitempty"`
	Solutions  []string `json:"solutions,omitempty"`
	Beliefs    []string `json:"beliefs,omitempty"`
}

// Merge appends o's sentences to in.
func (in *Insights) Merge(o Insights) {
	in.PainPoints = append(in.PainPoints, o.PainPoints...)
	in.Questions = append(in.Questions, o.Questions...)
	in.Requests = append(in.Requests, o.Requests...)
	in.Solutions = append(in.Solutions, o.Solutions...)
	in.Beliefs = append(in.Beliefs, o.Beliefs...)
}

// AnalyzeText classifies every sentence of text.
func AnalyzeText(text string) Insights {
	var in Insights
	for _, s := range Sentences(text) {
		if Matches(s, FamilyPain) {
			in.PainPoints = append(in.PainPoints, s)
		}
		if Matches(s, FamilyQuestion) {
			in.Questions = append(in.Questions, s)
		}
		if Matches(s, FamilyRequest) {
			in.Requests = append(in.Requests, s)
		}
		if Matches(s, FamilySolution) {
			in.Solutions = append(in.Solutions, s)
		}
		if Matches(s, FamilyBelief) {
			in.Beliefs = append(in.Beliefs, s)
		}
	}
	return in
}

// AnalyzePost analyzes a post title and body as one text.
func AnalyzePost(title, body string) Insights {
	title = strings.TrimSpace(title)
	if body = strings.TrimSpace(body); body == "" {
		return AnalyzeText(title)
	}
	if title != "" && !strings.ContainsAny(title[len(title)-1:], ".!?") {
		title += "."
	}
	return AnalyzeText(title + " " + body)
}

// Intent is the dominant purpose of a post.
type Intent string

const (
	IntentQuestion   Intent = "question"
	IntentComplaint  Intent = "complaint"
	IntentRequest    Intent = "request"
	IntentShowcase   Intent = "showcase"
	IntentDiscussion Intent = "discussion"
)

var showcaseMarkers = []string{"i made", "i built", "i created", "check out", "showcase"}

// CategorizeIntent classifies a post by its title. Questions win over
// complaints, complaints over requests.
func CategorizeIntent(title string) Intent {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "?") || Matches(t, FamilyQuestion):
		return IntentQuestion
	case Matches(t, FamilyPain):
		return IntentComplaint
	case Matches(t, FamilyRequest):
		return IntentRequest
	}
	for _, m := range showcaseMarkers {
		if strings.Contains(t, m) {
			return IntentShowcase
		}
	}
	return IntentDiscussion
}

var themeStopwords = toSet(
	"the", "and", "but", "for", "with", "from", "are", "was", "were", "been",
	"being", "have", "has", "had", "does", "did", "will", "would", "could",
	"should", "may", "might", "must", "can", "this", "that", "these", "those",
	"you", "she", "they", "your", "his", "her", "its", "our", "their", "what",
	"which", "who", "when", "where", "why", "how", "all", "each", "every",
	"both", "few", "more", "most", "other", "some", "such", "not", "only",
	"same", "than", "too", "very", "just", "also", "now", "here", "there",
	"about", "into", "over", "after", "before", "down", "out", "off", "then",
	"else", "because", "until", "while", "during", "through", "again", "once",
	"any", "get", "got", "like", "know", "think", "want", "need", "use",
	"using", "used", "new", "first", "last", "one", "two", "way", "even",
	"well", "back", "still", "going", "make", "made", "anyone", "someone",
	"everyone", "something", "anything", "everything", "really", "much",
	"many", "dont", "ive",
)

var themeWordRe = regexp.MustCompile(`\b[a-z]{3,}\b`)

// CommonThemes returns up to n of the most frequent significant words across
// titles. Ties keep first-seen order.
func CommonThemes(titles []string, n int) []string {
	if n <= 0 {
		return nil
	}
	counts := make(map[string]int)
	var order []string
	for _, title := range titles {
		for _, w := range themeWordRe.FindAllString(strings.ToLower(title), -1) {
			if themeStopwords[w] {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// Cluster is a group of similar sentences labelled by a representative one.
type Cluster struct {
	Label    string   `json:"label"`
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
}

// clusterThreshold is the Jaccard similarity at which two sentences join.
const clusterThreshold = 0.3

// ClusterSentences groups near-duplicate sentences by token overlap and
// returns clusters largest first. The label is the cluster's shortest member.
func ClusterSentences(sentences []string, maxExamples int) []Cluster {
	n := len(sentences)
	if n == 0 {
		return nil
	}
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}

	tokens := make([]map[string]bool, n)
	for i, s := range sentences {
		tokens[i] = significantTokens(s)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if jaccard(tokens[i], tokens[j]) >= clusterThreshold {
				if pi, pj := find(i), find(j); pi != pj {
					parent[pi] = pj
				}
			}
		}
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	clusters := make([]Cluster, 0, len(roots))
	for _, r := range roots {
		idx := groups[r]
		c := Cluster{Count: len(idx), Label: sentences[idx[0]]}
		for _, i := range idx {
			if len(sentences[i]) < len(c.Label) {
				c.Label = sentences[i]
			}
			if len(c.Examples) < maxExamples {
				c.Examples = append(c.Examples, sentences[i])
			}
		}
		clusters = append(clusters, c)
	}
	sort.SliceStable(clusters, func(i, j int) bool { return clusters[i].Count > clusters[j].Count })
	return clusters
}

func significantTokens(s string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	out := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) >= 3 && !themeStopwords[w] {
			out[w] = true
		}
	}
	return out
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Opportunity is a product idea derived from one extracted sentence.
type Opportunity struct {
	Type   string `json:"type"`
	Signal string `json:"signal"`
	Idea   string `json:"idea"`
}

const (
	opportunitiesPerFamily = 10
	opportunitySnippet     = 100
)

// Opportunities turns the first pain points, questions and requests into
// opportunity statements.
func Opportunities(in Insights) []Opportunity {
	var out []Opportunity
	add := func(kind, format string, sentences []string) {
		for i, s := range sentences {
			if i == opportunitiesPerFamily {
				break
			}
			out = append(out, Opportunity{Type: kind, Signal: s, Idea: fmt.Sprintf(format, snippet(s))})
		}
	}
	add("pain_point", "Tool to address: %s", in.PainPoints)
	add("question", "Solution that answers: %s", in.Questions)
	add("feature_request", "Build feature: %s", in.Requests)
	return out
}

func snippet(s string) string {
	r := []rune(s)
	if len(r) <= opportunitySnippet {
		return s
	}
	return string(r[:opportunitySnippet]) + "..."
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
