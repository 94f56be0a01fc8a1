package scoring

import (
	"math"
	"strings"
	"unicode"
)

const (
	// volumeCeiling is the raw search volume at which NormalizeVolume saturates.
	volumeCeiling = 1_000_000
	// viewCeiling is the average view count at which NormalizeViewVelocity saturates.
	viewCeiling = 1_000_000
	// growthCeiling is the growth percentage at which NormalizeGrowth saturates.
	growthCeiling = 400
	// growthFloor is the score given to flat (0%) growth.
	growthFloor = 20
)

// Clamp bounds v to [0, 100]. NaN maps to 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// logScale maps raw onto 0-100 with diminishing returns, reaching 100 at ceiling.
func logScale(raw, ceiling float64) float64 {
	if math.IsNaN(raw) || raw <= 0 {
		return 0
	}
	return Clamp(math.Log10(raw+1) / math.Log10(ceiling+1) * 100)
}

// NormalizeVolume maps raw monthly search volume onto 0-100 on a log curve.
// Zero and negative volumes score 0; volumes of one million or more score 100.
func NormalizeVolume(raw float64) float64 {
	return logScale(raw, volumeCeiling)
}

// NormalizeViewVelocity maps an average view count onto 0-100 using the
// same curve as NormalizeVolume.
func NormalizeViewVelocity(avgViews float64) float64 {
	return logScale(avgViews, viewCeiling)
}

// NormalizeGrowth maps a growth rate in percent onto 0-100.
//
// Declines map linearly onto [0, 20] (a -100% collapse is 0, flat is 20).
// Positive growth climbs on a square-root curve from 20 to 100 at +400%.
func NormalizeGrowth(pct float64) float64 {
	switch {
	case math.IsNaN(pct), pct <= -100:
		return 0
	case pct <= 0:
		return growthFloor * (pct + 100) / 100
	case pct >= growthCeiling:
		return 100
	}
	return Clamp(growthFloor + (100-growthFloor)*math.Sqrt(pct/growthCeiling))
}

// commercialMarkers are words that indicate buying intent in a search query.
var commercialMarkers = map[string]bool{
	"buy": true, "price": true, "prices": true, "pricing": true, "cost": true,
	"cheap": true, "cheapest": true, "best": true, "vs": true, "versus": true,
	"review": true, "reviews": true, "alternative": true, "alternatives": true,
	"discount": true, "deal": true, "deals": true, "coupon": true,
	"software": true, "tool": true, "tools": true, "app": true, "apps": true,
	"hire": true, "service": true, "services": true, "subscription": true,
}

// CalculateCommercialIntent returns the prominence-weighted share of related
// queries that carry a commercial marker, scaled to 0-100.
func CalculateCommercialIntent(queries []RelatedQuery) float64 {
	if len(queries) == 0 {
		return 0
	}

	var total, matched float64
	for _, q := range queries {
		w := q.Prominence
		if math.IsNaN(w) || w <= 0 {
			w = 1
		}
		total += w
		for _, tok := range tokenize(q.Query) {
			if commercialMarkers[tok] {
				matched += w
				break
			}
		}
	}
	return Clamp(matched / total * 100)
}

// interrogatives start a question even when the commenter omits the "?".
var interrogatives = map[string]bool{
	"how": true, "what": true, "why": true, "where": true, "when": true,
	"which": true, "who": true, "can": true, "could": true, "does": true,
	"do": true, "is": true, "are": true, "should": true, "would": true,
	"will": true, "anyone": true,
}

// IsQuestion reports whether a comment reads as a question.
func IsQuestion(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	toks := tokenize(text)
	if len(toks) == 0 {
		return false
	}
	if interrogatives[toks[0]] {
		return true
	}
	padded := " " + strings.Join(toks, " ") + " "
	return strings.Contains(padded, " anyone know ") || strings.Contains(padded, " is there ")
}

// AnalyzeCommentQuestions returns the share of comments that are questions,
// scaled to 0-100. Unanswered audience questions signal unmet content demand.
func AnalyzeCommentQuestions(comments []string) float64 {
	if len(comments) == 0 {
		return 0
	}
	n := 0
	for _, c := range comments {
		if IsQuestion(c) {
			n++
		}
	}
	return Clamp(float64(n) / float64(len(comments)) * 100)
}

// Coverage bucket labels reported by IdentifyContentGaps.
const (
	BucketBeginner     = "beginner"
	BucketIntermediate = "intermediate"
	BucketAdvanced     = "advanced"
	BucketShortForm    = "short-form"
	BucketLongForm     = "long-form"
)

var contentBuckets = []string{
	BucketBeginner, BucketIntermediate, BucketAdvanced, BucketShortForm, BucketLongForm,
}

var levelKeywords = map[string][]string{
	BucketBeginner: {
		"beginner", "beginners", "basics", "basic", "intro", "introduction",
		"getting started", "101", "for dummies", "first time", "explained", "start",
	},
	BucketIntermediate: {
		"intermediate", "tips", "guide", "how to", "step by step", "improve",
		"mistakes", "workflow", "tricks",
	},
	BucketAdvanced: {
		"advanced", "pro", "expert", "masterclass", "deep dive", "in depth",
		"secrets", "optimization", "optimize", "scaling", "architecture",
	},
}

// ContentGaps is the result of IdentifyContentGaps.
type ContentGaps struct {
	Score   float64  `json:"score"`
	Missing []string `json:"missing,omitempty"`
	Covered []string `json:"covered,omitempty"`
}

// IdentifyContentGaps sorts videos into skill-level and format buckets from
// their titles and durations. Every bucket no video covers is a gap; the score
// is the missing share scaled to 0-100. No videos means no evidence, so the
// score is 0 rather than 100.
func IdentifyContentGaps(videos []Video) ContentGaps {
	if len(videos) == 0 {
		return ContentGaps{}
	}

	covered := make(map[string]bool, len(contentBuckets))
	for _, v := range videos {
		padded := " " + strings.Join(tokenize(v.Title), " ") + " "
		for bucket, kws := range levelKeywords {
			for _, kw := range kws {
				if strings.Contains(padded, " "+kw+" ") {
					covered[bucket] = true
					break
				}
			}
		}
		switch {
		case strings.Contains(padded, " shorts ") || (v.DurationSeconds > 0 && v.DurationSeconds <= 60):
			covered[BucketShortForm] = true
		case v.DurationSeconds >= 600:
			covered[BucketLongForm] = true
		}
	}

	var gaps ContentGaps
	for _, b := range contentBuckets {
		if covered[b] {
			gaps.Covered = append(gaps.Covered, b)
		} else {
			gaps.Missing = append(gaps.Missing, b)
		}
	}
	gaps.Score = Clamp(float64(len(gaps.Missing)) / float64(len(contentBuckets)) * 100)
	return gaps
}

// tokenize lowercases text and splits it on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
