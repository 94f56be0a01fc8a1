package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnknownSignal is returned by Score for a Signal implementation it cannot dispatch.
var ErrUnknownSignal = errors.New("unknown signal kind")

// SignalScore is a single dimension's 0-100 score along with the normalized
// components it was built from.
type SignalScore struct {
	Kind       Kind               `json:"kind"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
}

// Local weight splits. Each set sums to 1.
const (
	painDensityWeight    = 0.40
	painQuestionWeight   = 0.25
	painRequestWeight    = 0.15
	painEngagementWeight = 0.20

	spendAdvertiserWeight = 0.40
	spendLongevityWeight  = 0.35
	spendAngleWeight      = 0.25

	searchVolumeWeight = 0.40
	searchGrowthWeight = 0.40
	searchIntentWeight = 0.20

	contentViewsWeight     = 0.35
	contentGapWeight       = 0.35
	contentQuestionsWeight = 0.30

	appPresenceWeight        = 0.30
	appReviewWeight          = 0.30
	appDissatisfactionWeight = 0.40
)

// Saturation points for linear components.
const (
	advertiserSaturation = 50
	longevitySaturation  = 90 // days
	angleSaturation      = 10
	appCountSaturation   = 50
)

// ratio returns n/d scaled to 0-100 and clamped; d <= 0 yields 0.
func ratio(n, d float64) float64 {
	if d <= 0 || math.IsNaN(n) {
		return 0
	}
	return Clamp(n / d * 100)
}

// Score dispatches sig to its dimension's scorer. A nil signal, including a
// typed nil pointer, is ErrUnknownSignal.
func Score(sig Signal) (SignalScore, error) {
	switch s := sig.(type) {
	case PainSignal:
		return CalculatePainScore(s), nil
	case *PainSignal:
		if s == nil {
			break
		}
		return CalculatePainScore(*s), nil
	case SpendSignal:
		return CalculateSpendScore(s), nil
	case *SpendSignal:
		if s == nil {
			break
		}
		return CalculateSpendScore(*s), nil
	case SearchSignal:
		return CalculateSearchScore(s), nil
	case *SearchSignal:
		if s == nil {
			break
		}
		return CalculateSearchScore(*s), nil
	case ContentSignal:
		return CalculateContentScore(s), nil
	case *ContentSignal:
		if s == nil {
			break
		}
		return CalculateContentScore(*s), nil
	case AppSignal:
		return CalculateAppScore(s), nil
	case *AppSignal:
		if s == nil {
			break
		}
		return CalculateAppScore(*s), nil
	}
	return SignalScore{}, fmt.Errorf("%w: %T", ErrUnknownSignal, sig)
}

// CalculatePainScore scores complaint density in community posts.
// One pain mention per post saturates the density component.
func CalculatePainScore(s PainSignal) SignalScore {
	posts := float64(s.PostCount)
	c := map[string]float64{
		"pain_density":     ratio(float64(s.PainMentions), posts),
		"question_density": ratio(float64(s.QuestionCount), posts),
		"request_density":  ratio(float64(s.RequestCount), posts),
		"engagement":       NormalizeVolume(s.AvgEngagement * 100),
	}
	score := c["pain_density"]*painDensityWeight +
		c["question_density"]*painQuestionWeight +
		c["request_density"]*painRequestWeight +
		c["engagement"]*painEngagementWeight
	return SignalScore{Kind: KindPain, Score: Clamp(score), Components: c}
}

// CalculateSpendScore scores how much advertisers are already paying to reach the niche.
func CalculateSpendScore(s SpendSignal) SignalScore {
	angles := make(map[string]bool, len(s.TopAngles))
	for _, a := range s.TopAngles {
		if a != "" {
			angles[a] = true
		}
	}
	c := map[string]float64{
		"advertisers": ratio(float64(s.AdvertiserCount), advertiserSaturation),
		"longevity":   ratio(s.AvgLongevityDays, longevitySaturation),
		"angles":      ratio(float64(len(angles)), angleSaturation),
		"active_ads":  NormalizeVolume(float64(s.ActiveAds)),
	}
	score := c["advertisers"]*spendAdvertiserWeight +
		c["longevity"]*spendLongevityWeight +
		c["angles"]*spendAngleWeight
	return SignalScore{Kind: KindSpend, Score: Clamp(score), Components: c}
}

// CalculateSearchScore combines volume, growth and commercial intent 40/40/20.
// Growth only counts when there is volume to grow.
func CalculateSearchScore(s SearchSignal) SignalScore {
	c := map[string]float64{
		"volume": NormalizeVolume(s.Volume),
		"growth": 0,
		"intent": CalculateCommercialIntent(s.RelatedQueries),
	}
	if s.Volume > 0 {
		c["growth"] = NormalizeGrowth(s.GrowthRate)
	}
	score := c["volume"]*searchVolumeWeight +
		c["growth"]*searchGrowthWeight +
		c["intent"]*searchIntentWeight
	return SignalScore{Kind: KindSearch, Score: Clamp(score), Components: c}
}

// CalculateContentScore combines audience size, coverage gaps and open questions.
func CalculateContentScore(s ContentSignal) SignalScore {
	var avgViews float64
	if len(s.Videos) > 0 {
		var total float64
		for _, v := range s.Videos {
			if v.Views > 0 {
				total += v.Views
			}
		}
		avgViews = total / float64(len(s.Videos))
	}
	gaps := IdentifyContentGaps(s.Videos)
	c := map[string]float64{
		"view_velocity":     NormalizeViewVelocity(avgViews),
		"gap":               gaps.Score,
		"comment_questions": AnalyzeCommentQuestions(s.Comments),
	}
	score := c["view_velocity"]*contentViewsWeight +
		c["gap"]*contentGapWeight +
		c["comment_questions"]*contentQuestionsWeight
	return SignalScore{Kind: KindContent, Score: Clamp(score), Components: c}
}

// CalculateAppScore scores app-store demand: an existing market whose users
// are unhappy is the strongest opening. No apps means no evidence and scores 0.
func CalculateAppScore(s AppSignal) SignalScore {
	if s.AppCount <= 0 {
		return SignalScore{
			Kind:       KindApp,
			Components: map[string]float64{"presence": 0, "reviews": 0, "dissatisfaction": 0},
		}
	}

	rating := s.AvgRating
	if math.IsNaN(rating) {
		rating = 0
	}
	rating = math.Max(1, math.Min(5, rating))
	complaints := s.ComplaintRatio
	if math.IsNaN(complaints) {
		complaints = 0
	}
	complaints = math.Max(0, math.Min(1, complaints))

	c := map[string]float64{
		"presence":        ratio(float64(s.AppCount), appCountSaturation),
		"reviews":         NormalizeVolume(s.TotalReviews),
		"dissatisfaction": Clamp(((5-rating)/4*100)*0.5 + complaints*100*0.5),
	}
	score := c["presence"]*appPresenceWeight +
		c["reviews"]*appReviewWeight +
		c["dissatisfaction"]*appDissatisfactionWeight
	return SignalScore{Kind: KindApp, Score: Clamp(score), Components: c}
}
