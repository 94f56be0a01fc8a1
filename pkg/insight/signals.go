package insight

import (
	"sort"

	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/source"
)

// PainSummary is the pain signal derived from a set of posts together with
// the evidence behind it.
type PainSummary struct {
	Signal   scoring.PainSignal `json:"signal"`
	Insights Insights           `json:"insights"`
	Intents  map[Intent]int     `json:"intents"`
}

// BuildPainSignal analyzes community posts. A post counts toward
// QuestionCount or RequestCount at most once; PainMentions counts every
// pain sentence. AvgEngagement is the mean comment count per post.
func BuildPainSignal(posts []source.Item) PainSummary {
	sum := PainSummary{Intents: make(map[Intent]int)}
	communities := make(map[string]bool)
	var comments int

	for _, p := range posts {
		in := AnalyzePost(p.Title, p.Description)
		sum.Insights.Merge(in)

		intent := CategorizeIntent(p.Title)
		sum.Intents[intent]++

		sum.Signal.PainMentions += len(in.PainPoints)
		if intent == IntentQuestion || len(in.Questions) > 0 {
			sum.Signal.QuestionCount++
		}
		if intent == IntentRequest || len(in.Requests) > 0 {
			sum.Signal.RequestCount++
		}
		if p.Comments > 0 {
			comments += p.Comments
		}
		if p.Community != "" {
			communities[p.Community] = true
		}
	}

	sum.Signal.PostCount = len(posts)
	if len(posts) > 0 {
		sum.Signal.AvgEngagement = float64(comments) / float64(len(posts))
	}
	for c := range communities {
		sum.Signal.Subreddits = append(sum.Signal.Subreddits, c)
	}
	sort.Strings(sum.Signal.Subreddits)
	return sum
}

// BuildContentSignal turns collected videos into a content signal. Item.Score
// is read as the view count and Item.Discussion supplies the comments.
func BuildContentSignal(videos []source.Item) scoring.ContentSignal {
	var sig scoring.ContentSignal
	for _, v := range videos {
		sig.Videos = append(sig.Videos, scoring.Video{
			Title:           v.Title,
			Views:           float64(max(v.Score, 0)),
			DurationSeconds: int(v.Duration.Seconds()),
		})
		sig.Comments = append(sig.Comments, v.Discussion...)
	}
	return sig
}
