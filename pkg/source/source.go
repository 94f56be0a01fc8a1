package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// SourceType identifies which platform an item came from.
type SourceType string

const (
	SourceReddit     SourceType = "reddit"
	SourceHackerNews SourceType = "hackernews"
	SourceYouTube    SourceType = "youtube"
	SourceRSS        SourceType = "rss"
)

// Item is the standardized data model for all sources.
type Item struct {
	ID          string        `json:"id"`
	Source      SourceType    `json:"source"`
	ExternalID  string        `json:"external_id"`
	Title       string        `json:"title"`
	URL         string        `json:"url"`
	Description string        `json:"description,omitempty"`
	Author      string        `json:"author,omitempty"`
	Score       int           `json:"score"` // upvotes, points or views
	Comments    int           `json:"comments"`
	Community   string        `json:"community,omitempty"` // subreddit, channel or feed
	Duration    time.Duration `json:"duration,omitempty"`  // videos only
	Discussion  []string      `json:"discussion,omitempty"`
	PublishedAt time.Time     `json:"published_at"`
	CollectedAt time.Time     `json:"collected_at"`
}

// Query describes what to collect.
type Query struct {
	Niche string
	Limit int
}

// Source is the interface every collector must implement.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context, q Query) ([]Item, error)
}

// Result is one collector's output from CollectAll.
type Result struct {
	Source SourceType
	Items  []Item
	Err    error
}

// CollectAll runs every source concurrently. Items from failed sources are
// dropped; the returned error joins every failure.
func CollectAll(ctx context.Context, q Query, sources ...Source) ([]Result, error) {
	results := make([]Result, len(sources))
	var wg sync.WaitGroup
	for i, s := range sources {
		wg.Add(1)
		go func(i int, s Source) {
			defer wg.Done()
			items, err := s.Collect(ctx, q)
			if err != nil {
				err = fmt.Errorf("%s: %w", s.Name(), err)
				items = nil
			}
			results[i] = Result{Source: s.Name(), Items: items, Err: err}
		}(i, s)
	}
	wg.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return results, errors.Join(errs...)
}

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceReddit, SourceHackerNews, SourceYouTube, SourceRSS}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
