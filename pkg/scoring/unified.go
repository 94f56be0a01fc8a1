package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	// ErrMissingSignal is wrapped by MissingSignalError.
	ErrMissingSignal = errors.New("missing signal")
	// ErrInvalidWeights is returned when a weight set fails validation.
	ErrInvalidWeights = errors.New("invalid weights")
)

// weightEpsilon is the tolerance for the weight-sum check.
const weightEpsilon = 1e-9

// SubScore is one dimension's contribution to the unified score.
type SubScore struct {
	Value        float64 `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Breakdown lists every dimension's sub-score.
type Breakdown struct {
	PainScore    SubScore `json:"pain_score"`
	SpendScore   SubScore `json:"spend_score"`
	SearchScore  SubScore `json:"search_score"`
	ContentScore SubScore `json:"content_score"`
	AppScore     SubScore `json:"app_score"`
}

// Get returns the sub-score for k.
func (b Breakdown) Get(k Kind) SubScore {
	switch k {
	case KindPain:
		return b.PainScore
	case KindSpend:
		return b.SpendScore
	case KindSearch:
		return b.SearchScore
	case KindContent:
		return b.ContentScore
	case KindApp:
		return b.AppScore
	}
	return SubScore{}
}

func (b *Breakdown) set(k Kind, s SubScore) {
	switch k {
	case KindPain:
		b.PainScore = s
	case KindSpend:
		b.SpendScore = s
	case KindSearch:
		b.SearchScore = s
	case KindContent:
		b.ContentScore = s
	case KindApp:
		b.AppScore = s
	}
}

// Total returns the unrounded sum of all contributions.
func (b Breakdown) Total() float64 {
	var sum float64
	for _, k := range AllKinds() {
		sum += b.Get(k).Contribution
	}
	return sum
}

// DemandResult is the unified demand score with its full breakdown.
type DemandResult struct {
	UnifiedScore int       `json:"unified_score"`
	Breakdown    Breakdown `json:"breakdown"`
}

// Weights holds the policy weight of each dimension.
type Weights struct {
	Pain    float64 `json:"pain" yaml:"pain"`
	Spend   float64 `json:"spend" yaml:"spend"`
	Search  float64 `json:"search" yaml:"search"`
	Content float64 `json:"content" yaml:"content"`
	App     float64 `json:"app" yaml:"app"`
}

// DefaultWeights favors direct pain and spend evidence over softer signals.
func DefaultWeights() Weights {
	return Weights{Pain: 0.25, Spend: 0.25, Search: 0.20, Content: 0.15, App: 0.15}
}

// For returns the weight of dimension k.
func (w Weights) For(k Kind) float64 {
	switch k {
	case KindPain:
		return w.Pain
	case KindSpend:
		return w.Spend
	case KindSearch:
		return w.Search
	case KindContent:
		return w.Content
	case KindApp:
		return w.App
	}
	return 0
}

// Sum returns the total of all five weights.
func (w Weights) Sum() float64 {
	return w.Pain + w.Spend + w.Search + w.Content + w.App
}

// Validate checks each weight lies in [0,1] and that they sum to 1.
func (w Weights) Validate() error {
	for _, k := range AllKinds() {
		v := w.For(k)
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s weight %v outside [0,1]", ErrInvalidWeights, k, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightEpsilon {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidWeights, sum)
	}
	return nil
}

// MissingPolicy selects what the aggregator does when a dimension has no value.
type MissingPolicy int

const (
	// MissingFail rejects the aggregation and names the missing dimensions.
	MissingFail MissingPolicy = iota
	// MissingZero scores absent dimensions as 0 (no evidence of demand).
	MissingZero
)

// ParseMissingPolicy maps "fail" or "zero" to a policy; anything else is MissingFail.
func ParseMissingPolicy(s string) MissingPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "zero") {
		return MissingZero
	}
	return MissingFail
}

func (p MissingPolicy) String() string {
	if p == MissingZero {
		return "zero"
	}
	return "fail"
}

// MissingSignalError lists the dimensions that had no value.
type MissingSignalError struct {
	Kinds []Kind
}

func (e *MissingSignalError) Error() string {
	names := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		names[i] = string(k)
	}
	return fmt.Sprintf("%s: %s", ErrMissingSignal, strings.Join(names, ", "))
}

func (e *MissingSignalError) Unwrap() error { return ErrMissingSignal }

// Aggregator combines per-dimension scores into a DemandResult with weights
// fixed at construction.
type Aggregator struct {
	weights Weights
	policy  MissingPolicy
}

// NewAggregator validates w and returns an aggregator using it.
func NewAggregator(w Weights, policy MissingPolicy) (*Aggregator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{weights: w, policy: policy}, nil
}

// Weights returns the aggregator's weight set.
func (a *Aggregator) Weights() Weights { return a.weights }

// Policy returns the aggregator's missing-dimension policy.
func (a *Aggregator) Policy() MissingPolicy { return a.policy }

// Aggregate builds the result from one 0-100 value per dimension. Values are
// clamped; NaN counts as missing.
func (a *Aggregator) Aggregate(values map[Kind]float64) (DemandResult, error) {
	var missing []Kind
	var b Breakdown
	for _, k := range AllKinds() {
		v, ok := values[k]
		if !ok || math.IsNaN(v) {
			if a.policy == MissingFail {
				missing = append(missing, k)
				continue
			}
			v = 0
		}
		w := a.weights.For(k)
		v = Clamp(v)
		b.set(k, SubScore{Value: v, Weight: w, Contribution: v * w})
	}
	if len(missing) > 0 {
		return DemandResult{}, &MissingSignalError{Kinds: missing}
	}
	return DemandResult{UnifiedScore: roundScore(b.Total()), Breakdown: b}, nil
}

// AggregateScores is Aggregate over already computed signal scores. A later
// score for the same dimension replaces an earlier one.
func (a *Aggregator) AggregateScores(scores []SignalScore) (DemandResult, error) {
	values := make(map[Kind]float64, len(scores))
	for _, s := range scores {
		values[s.Kind] = s.Score
	}
	return a.Aggregate(values)
}

// AggregateSignals scores each signal then aggregates the results.
func (a *Aggregator) AggregateSignals(signals ...Signal) (DemandResult, []SignalScore, error) {
	scores := make([]SignalScore, 0, len(signals))
	for _, sig := range signals {
		s, err := Score(sig)
		if err != nil {
			return DemandResult{}, nil, err
		}
		scores = append(scores, s)
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return kindOrder(scores[i].Kind) < kindOrder(scores[j].Kind)
	})
	res, err := a.AggregateScores(scores)
	if err != nil {
		return DemandResult{}, scores, err
	}
	return res, scores, nil
}

// Weights returns the weight carried by each sub-score.
func (b Breakdown) Weights() Weights {
	return Weights{
		Pain:    b.PainScore.Weight,
		Spend:   b.SpendScore.Weight,
		Search:  b.SearchScore.Weight,
		Content: b.ContentScore.Weight,
		App:     b.AppScore.Weight,
	}
}

// Combine recomputes contributions and the unified score from a breakdown
// that carries its own weights. The weights must pass Validate; values are
// clamped into [0,100].
func Combine(b Breakdown) (DemandResult, error) {
	if err := b.Weights().Validate(); err != nil {
		return DemandResult{}, err
	}
	var out Breakdown
	for _, k := range AllKinds() {
		s := b.Get(k)
		v := Clamp(s.Value)
		out.set(k, SubScore{Value: v, Weight: s.Weight, Contribution: v * s.Weight})
	}
	return DemandResult{UnifiedScore: roundScore(out.Total()), Breakdown: out}, nil
}

// roundScore rounds half away from zero and clamps to [0,100].
func roundScore(total float64) int {
	return int(Clamp(math.Round(total)))
}

func kindOrder(k Kind) int {
	for i, kk := range AllKinds() {
		if kk == k {
			return i
		}
	}
	return len(AllKinds())
}
