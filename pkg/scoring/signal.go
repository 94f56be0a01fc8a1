package scoring

// Kind identifies which demand dimension a signal belongs to.
type Kind string

const (
	KindPain    Kind = "pain"
	KindSpend   Kind = "spend"
	KindSearch  Kind = "search"
	KindContent Kind = "content"
	KindApp     Kind = "app"
)

// AllKinds returns the five demand dimensions in breakdown order.
func AllKinds() []Kind {
	return []Kind{KindPain, KindSpend, KindSearch, KindContent, KindApp}
}

// Signal is a per-source summary produced by a collector. The set of
// implementations is closed: PainSignal, SpendSignal, SearchSignal,
// ContentSignal and AppSignal.
type Signal interface {
	Kind() Kind
	signal()
}

// PainSignal summarizes complaint and question activity in communities.
type PainSignal struct {
	PostCount     int      `json:"post_count"`
	PainMentions  int      `json:"pain_mentions"`
	QuestionCount int      `json:"question_count"`
	RequestCount  int      `json:"request_count"`
	AvgEngagement float64  `json:"avg_engagement"`
	Subreddits    []string `json:"subreddits,omitempty"`
}

// SpendSignal summarizes advertiser activity from ad libraries.
type SpendSignal struct {
	AdvertiserCount  int      `json:"advertiser_count"`
	ActiveAds        int      `json:"active_ads"`
	TopAngles        []string `json:"top_angles,omitempty"`
	AvgLongevityDays float64  `json:"avg_longevity_days"`
}

// RelatedQuery is a search query seen alongside the niche query.
// Prominence is a relative weight; zero or negative counts as 1.
type RelatedQuery struct {
	Query      string  `json:"query"`
	Prominence float64 `json:"prominence,omitempty"`
}

// SearchSignal summarizes search interest for the niche.
type SearchSignal struct {
	Volume         float64        `json:"volume"`
	GrowthRate     float64        `json:"growth_rate"` // percent, may be negative
	RelatedQueries []RelatedQuery `json:"related_queries,omitempty"`
}

// Video is one piece of long- or short-form content.
type Video struct {
	Title           string  `json:"title"`
	Views           float64 `json:"views"`
	DurationSeconds int     `json:"duration_seconds,omitempty"`
}

// ContentSignal summarizes existing content coverage and audience questions.
type ContentSignal struct {
	Videos   []Video  `json:"videos,omitempty"`
	Comments []string `json:"comments,omitempty"`
}

// AppSignal summarizes the app-store landscape.
type AppSignal struct {
	AppCount       int     `json:"app_count"`
	AvgRating      float64 `json:"avg_rating"`
	TotalReviews   float64 `json:"total_reviews"`
	ComplaintRatio float64 `json:"complaint_ratio"` // 0-1 share of negative reviews
}

func (PainSignal) Kind() Kind    { return KindPain }
func (SpendSignal) Kind() Kind   { return KindSpend }
func (SearchSignal) Kind() Kind  { return KindSearch }
func (ContentSignal) Kind() Kind { return KindContent }
func (AppSignal) Kind() Kind     { return KindApp }

func (PainSignal) signal()    {}
func (SpendSignal) signal()   {}
func (SearchSignal) signal()  {}
func (ContentSignal) signal() {}
func (AppSignal) signal()     {}

// Payload is the wire form of a full signal set. Absent sections decode as nil.
type Payload struct {
	Pain    *PainSignal    `json:"pain,omitempty"`
	Spend   *SpendSignal   `json:"spend,omitempty"`
	Search  *SearchSignal  `json:"search,omitempty"`
	Content *ContentSignal `json:"content,omitempty"`
	App     *AppSignal     `json:"app,omitempty"`
}

// Signals returns the non-nil sections of p as Signal values.
func (p Payload) Signals() []Signal {
	var out []Signal
	if p.Pain != nil {
		out = append(out, *p.Pain)
	}
	if p.Spend != nil {
		out = append(out, *p.Spend)
	}
	if p.Search != nil {
		out = append(out, *p.Search)
	}
	if p.Content != nil {
		out = append(out, *p.Content)
	}
	if p.App != nil {
		out = append(out, *p.App)
	}
	return out
}
