package demand

import (
	"strings"
	"time"
	"unicode"

	"github.com/elonfeng/gapradar/pkg/insight"
	"github.com/elonfeng/gapradar/pkg/scoring"
	"github.com/elonfeng/gapradar/pkg/source"
)

// Request asks for a niche analysis.
type Request struct {
	Niche string `json:"niche"`
	// Sources restricts collection to these collectors; empty uses all.
	Sources []source.SourceType `json:"sources,omitempty"`
	Limit   int                 `json:"limit,omitempty"`
	// Signals are caller-supplied summaries. A supplied section replaces the
	// one derived from collected items.
	Signals scoring.Payload `json:"signals"`
	// Refresh skips the per-niche cache.
	Refresh bool `json:"refresh,omitempty"`
}

// SourceStat reports what one collector contributed to a run.
type SourceStat struct {
	Source source.SourceType `json:"source"`
	Items  int               `json:"items"`
	Error  string            `json:"error,omitempty"`
}

// Gap is one opportunity proposed by the summarizer.
type Gap struct {
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// Report is the outcome of one analysis run.
type Report struct {
	RunID         string                 `json:"run_id"`
	Niche         string                 `json:"niche"`
	Result        scoring.DemandResult   `json:"result"`
	Signals       []scoring.SignalScore  `json:"signals"`
	ContentGaps   *scoring.ContentGaps   `json:"content_gaps,omitempty"`
	Themes        []string               `json:"themes,omitempty"`
	Intents       map[insight.Intent]int `json:"intents,omitempty"`
	PainClusters  []insight.Cluster      `json:"pain_clusters,omitempty"`
	Opportunities []insight.Opportunity  `json:"opportunities,omitempty"`
	Gaps          []Gap                  `json:"gaps,omitempty"`
	Sources       []SourceStat           `json:"sources"`
	ItemCount     int                    `json:"item_count"`
	CreatedAt     time.Time              `json:"created_at"`
	Took          time.Duration          `json:"took_ns"`
}

// Scored is the result of scoring caller-supplied signals.
type Scored struct {
	scoring.DemandResult
	Signals []scoring.SignalScore `json:"signals"`
}

// NicheKey normalizes a niche for cache and store lookups: lowercase, with
// runs of punctuation and whitespace collapsed to one space.
func NicheKey(niche string) string {
	fields := strings.FieldsFunc(strings.ToLower(niche), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}
