package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// RSSFeed is a named RSS/Atom feed. A "{niche}" placeholder in URL is
// replaced with the query-escaped niche, so search feeds work too.
type RSSFeed struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// RSS collects niche entries from RSS/Atom feeds, including YouTube channel
// feeds whose media:statistics carry view counts.
type RSS struct {
	client    *http.Client
	parser    *gofeed.Parser
	feeds     []RSSFeed
	maxAge    time.Duration
	userAgent string
}

// NewRSS creates a new RSS collector. Entries older than maxAge are skipped;
// zero keeps everything.
func NewRSS(feeds []RSSFeed, maxAge time.Duration) *RSS {
	return &RSS{
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		feeds:     feeds,
		maxAge:    maxAge,
		userAgent: "gapradar/1.0",
	}
}

func (r *RSS) Name() SourceType { return SourceRSS }

// Collect reads every feed and keeps entries matching the niche. A failing
// feed is skipped unless every feed fails.
func (r *RSS) Collect(ctx context.Context, q Query) ([]Item, error) {
	if len(r.feeds) == 0 {
		return nil, nil
	}
	filter := NewFilter(q.Niche, nil, nil)

	var (
		allItems []Item
		lastErr  error
		failed   int
	)
	for _, feed := range r.feeds {
		items, err := r.collectFeed(ctx, feed, q.Niche, filter)
		if err != nil {
			lastErr = err
			failed++
			continue
		}
		allItems = append(allItems, items...)
	}
	if failed == len(r.feeds) {
		return nil, lastErr
	}
	if q.Limit > 0 && len(allItems) > q.Limit {
		allItems = allItems[:q.Limit]
	}
	return allItems, nil
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed, niche string, filter *Filter) ([]Item, error) {
	feedURL := strings.ReplaceAll(feed.URL, "{niche}", url.QueryEscape(niche))
	templated := feedURL != feed.URL

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	now := time.Now().UTC()
	var items []Item
	for _, entry := range parsed.Items {
		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if r.maxAge > 0 && published.Before(now.Add(-r.maxAge)) {
			continue
		}

		// Search feeds are already about the niche.
		desc := stripTags(entry.Description)
		if !templated && !filter.Matches(entry.Title+" "+desc) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		author := ""
		if entry.Author != nil {
			author = entry.Author.Name
		}
		id := entry.GUID
		if id == "" {
			id = link
		}

		items = append(items, Item{
			ID:          fmt.Sprintf("rss:%s:%s", feed.Name, id),
			Source:      SourceRSS,
			ExternalID:  id,
			Title:       entry.Title,
			URL:         link,
			Description: truncate(desc, 500),
			Author:      author,
			Score:       mediaViews(entry.Extensions),
			Community:   feed.Name,
			PublishedAt: published,
			CollectedAt: now,
		})
	}
	return items, nil
}

// mediaViews reads <media:group><media:community><media:statistics views="">.
func mediaViews(exts ext.Extensions) int {
	for _, group := range exts["media"]["group"] {
		for _, community := range group.Children["community"] {
			for _, stats := range community.Children["statistics"] {
				if n, err := strconv.Atoi(stats.Attrs["views"]); err == nil {
					return n
				}
			}
		}
	}
	return 0
}
