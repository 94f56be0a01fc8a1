package insight

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/source"
)

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"a.", "b?", "c!", "d"}, Sentences("a. b? c!\nd"))
	assert.Equal(t, []string{"Really?!"}, Sentences("  Really?!  "))
	assert.Empty(t, Sentences(" \n. "))
}

func TestMatchesFamilies(t *testing.T) {
	assert.True(t, Matches("I'm so FRUSTRATED with this", FamilyPain))
	assert.True(t, Matches("I can’t find anything", FamilyPain), "typographic apostrophe")
	assert.True(t, Matches("any tips for beginners", FamilyQuestion))
	assert.True(t, Matches("which one is better?", FamilyQuestion))
	assert.True(t, Matches("please add dark mode", FamilyRequest))
	assert.True(t, Matches("We switched to Notion last year", FamilySolution))
	assert.True(t, Matches("IMO the pricing is fine", FamilyBelief))
	assert.False(t, Matches("lovely weather today", FamilyPain))
	assert.False(t, Matches("anything", Family("unknown")))
}

func TestAnalyzePost(t *testing.T) {
	in := AnalyzePost(
		"How do I automate my invoicing? Spending too much time on this",
		"I'm frustrated with the current tools. They're all so complicated and expensive. Does anyone know a better alternative to QuickBooks?",
	)

	assert.Equal(t, []string{
		"I'm frustrated with the current tools.",
		"They're all so complicated and expensive.",
	}, in.PainPoints)
	assert.Equal(t, []string{
		"How do I automate my invoicing?",
		"Does anyone know a better alternative to QuickBooks?",
	}, in.Questions)
	assert.Empty(t, in.Solutions)
}

func TestCategorizeIntent(t *testing.T) {
	tests := map[string]Intent{
		"Is there a CRM for realtors?":      IntentQuestion,
		"Looking for a meal planner":        IntentQuestion,
		"So frustrated with invoicing apps": IntentComplaint,
		"Feature request: bulk export":      IntentRequest,
		"I built a meal planner":            IntentShowcase,
		"Weekly thread":                     IntentDiscussion,
	}
	for title, want := range tests {
		assert.Equalf(t, want, CategorizeIntent(title), "CategorizeIntent(%q)", title)
	}
}

func TestCommonThemes(t *testing.T) {
	titles := []string{
		"Invoicing software for freelancers",
		"Best invoicing app?",
		"Freelancers: invoicing pain",
	}
	assert.Equal(t, []string{"invoicing", "freelancers"}, CommonThemes(titles, 2))
	assert.Len(t, CommonThemes(titles, 100), 6)
	assert.Nil(t, CommonThemes(titles, 0))
	assert.Empty(t, CommonThemes([]string{"how to do it"}, 5))
}

func TestClusterSentences(t *testing.T) {
	clusters := ClusterSentences([]string{
		"invoicing takes forever every month",
		"My printer is broken",
		"Invoicing takes forever",
	}, 5)
	require.Len(t, clusters, 2)

	assert.Equal(t, 2, clusters[0].Count)
	assert.Equal(t, "Invoicing takes forever", clusters[0].Label)
	assert.Len(t, clusters[0].Examples, 2)
	assert.Equal(t, "My printer is broken", clusters[1].Label)

	assert.Nil(t, ClusterSentences(nil, 3))
}

func TestOpportunities(t *testing.T) {
	var in Insights
	for i := 0; i < 12; i++ {
		in.PainPoints = append(in.PainPoints, "pain")
	}
	in.Questions = []string{strings.Repeat("q", 150)}
	in.Requests = []string{"please add export"}

	ops := Opportunities(in)
	require.Len(t, ops, 12)
	assert.Equal(t, "pain_point", ops[0].Type)
	assert.Equal(t, "Tool to address: pain", ops[0].Idea)

	q := ops[10]
	assert.Equal(t, "question", q.Type)
	assert.Equal(t, "Solution that answers: "+strings.Repeat("q", 100)+"...", q.Idea)
	assert.Equal(t, "Build feature: please add export", ops[11].Idea)
}

func TestBuildPainSignal(t *testing.T) {
	posts := []source.Item{
		{Title: "Is there a simple invoicing tool?", Description: "I hate my current one. It is so expensive.", Comments: 10, Community: "freelance"},
		{Title: "Invoicing is broken", Comments: 4, Community: "smallbusiness"},
		{Title: "I wish my invoices were automatic", Community: "freelance"},
	}

	sum := BuildPainSignal(posts)
	sig := sum.Signal
	assert.Equal(t, 3, sig.PostCount)
	assert.Equal(t, 3, sig.PainMentions)
	assert.Equal(t, 1, sig.QuestionCount)
	assert.Equal(t, 1, sig.RequestCount)
	assert.InDelta(t, 14.0/3.0, sig.AvgEngagement, 1e-9)
	assert.Equal(t, []string{"freelance", "smallbusiness"}, sig.Subreddits)

	assert.Equal(t, 1, sum.Intents[IntentQuestion])
	assert.Equal(t, 1, sum.Intents[IntentComplaint])
	assert.Equal(t, 1, sum.Intents[IntentRequest])
	assert.Len(t, sum.Insights.PainPoints, 3)

	score := scoring.CalculatePainScore(sig)
	assert.Greater(t, score.Score, 0.0)
}

func TestBuildPainSignalEmpty(t *testing.T) {
	sum := BuildPainSignal(nil)
	assert.Equal(t, scoring.PainSignal{}, sum.Signal)
	assert.Equal(t, 0.0, scoring.CalculatePainScore(sum.Signal).Score)
}

func TestBuildContentSignal(t *testing.T) {
	sig := BuildContentSignal([]source.Item{
		{Title: "Sourdough basics", Score: 1500, Duration: 12 * time.Minute, Discussion: []string{"how long?"}},
		{Title: "Quick loaf #shorts", Score: -1, Duration: 40 * time.Second},
	})
	require.Len(t, sig.Videos, 2)
	assert.Equal(t, scoring.Video{Title: "Sourdough basics", Views: 1500, DurationSeconds: 720}, sig.Videos[0])
	assert.Equal(t, 0.0, sig.Videos[1].Views)
	assert.Equal(t, []string{"how long?"}, sig.Comments)
}
