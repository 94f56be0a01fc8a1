package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScorersZeroInput(t *testing.T) {
	for _, sig := range []Signal{PainSignal{}, SpendSignal{}, SearchSignal{}, ContentSignal{}, AppSignal{}} {
		s, err := Score(sig)
		require.NoError(t, err)
		assert.Equalf(t, 0.0, s.Score, "%s with no data", sig.Kind())
		assert.Equal(t, sig.Kind(), s.Kind)
	}
}

func TestScoreNilSignal(t *testing.T) {
	for _, sig := range []Signal{nil, (*PainSignal)(nil), (*SpendSignal)(nil), (*SearchSignal)(nil), (*ContentSignal)(nil), (*AppSignal)(nil)} {
		assert.NotPanics(t, func() {
			_, err := Score(sig)
			assert.ErrorIs(t, err, ErrUnknownSignal)
		})
	}

	s, err := Score(&PainSignal{PostCount: 10, PainMentions: 10})
	require.NoError(t, err)
	assert.Greater(t, s.Score, 0.0)
}

func TestScorersSaturate(t *testing.T) {
	pain := CalculatePainScore(PainSignal{PostCount: 10, PainMentions: 50, QuestionCount: 50, RequestCount: 50, AvgEngagement: 1e9})
	assert.Equal(t, 100.0, pain.Score)

	spend := CalculateSpendScore(SpendSignal{
		AdvertiserCount:  500,
		AvgLongevityDays: 365,
		TopAngles:        []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"},
	})
	assert.Equal(t, 100.0, spend.Score)

	search := CalculateSearchScore(SearchSignal{
		Volume:         5e6,
		GrowthRate:     900,
		RelatedQueries: []RelatedQuery{{Query: "buy widgets"}},
	})
	assert.Equal(t, 100.0, search.Score)
}

func TestSearchScoreWeights(t *testing.T) {
	s := CalculateSearchScore(SearchSignal{Volume: 1000, GrowthRate: 100, RelatedQueries: []RelatedQuery{{Query: "widget price"}, {Query: "widget history"}}})
	want := s.Components["volume"]*0.4 + s.Components["growth"]*0.4 + s.Components["intent"]*0.2
	assert.InDelta(t, want, s.Score, 1e-9)
	assert.InDelta(t, 60.0, s.Components["growth"], 1e-9)
	assert.InDelta(t, 50.0, s.Components["intent"], 1e-9)
}

func TestAppScoreDissatisfaction(t *testing.T) {
	happy := CalculateAppScore(AppSignal{AppCount: 10, AvgRating: 4.9, TotalReviews: 1000, ComplaintRatio: 0.02})
	unhappy := CalculateAppScore(AppSignal{AppCount: 10, AvgRating: 2.1, TotalReviews: 1000, ComplaintRatio: 0.6})
	assert.Greater(t, unhappy.Score, happy.Score)

	weird := CalculateAppScore(AppSignal{AppCount: 3, AvgRating: math.NaN(), ComplaintRatio: 7})
	assert.False(t, math.IsNaN(weird.Score))
	assert.LessOrEqual(t, weird.Score, 100.0)
}

func TestSpendScoreIgnoresDuplicateAngles(t *testing.T) {
	a := CalculateSpendScore(SpendSignal{TopAngles: []string{"x", "x", "x", ""}})
	b := CalculateSpendScore(SpendSignal{TopAngles: []string{"x"}})
	assert.Equal(t, a.Score, b.Score)
}

func TestScoreAcceptsPointers(t *testing.T) {
	s, err := Score(&SearchSignal{Volume: 100})
	require.NoError(t, err)
	assert.Equal(t, KindSearch, s.Kind)
	assert.Greater(t, s.Score, 0.0)
}

func TestScorersDeterministic(t *testing.T) {
	sig := ContentSignal{
		Videos:   []Video{{Title: "Advanced sourdough", Views: 50_000, DurationSeconds: 1200}},
		Comments: []string{"how long do you proof?", "yum"},
	}
	first := CalculateContentScore(sig)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, CalculateContentScore(sig))
	}
}

func TestPayloadSignals(t *testing.T) {
	p := Payload{Pain: &PainSignal{PostCount: 1}, App: &AppSignal{}}
	sigs := p.Signals()
	require.Len(t, sigs, 2)
	assert.Equal(t, KindPain, sigs[0].Kind())
	assert.Equal(t, KindApp, sigs[1].Kind())
}
