package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const hnSearchURL = "https://hn.algolia.com/api/v1"

// HackerNews searches Hacker News stories and Ask HN threads for a niche.
type HackerNews struct {
	client   *http.Client
	baseURL  string
	comments int // top-level comments fetched per story; 0 disables
}

// NewHackerNews creates a new HN collector. commentsPerStory > 0 also pulls
// that many top-level comments into Item.Discussion.
func NewHackerNews(baseURL string, commentsPerStory int) *HackerNews {
	if baseURL == "" {
		baseURL = hnSearchURL
	}
	return &HackerNews{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		comments: commentsPerStory,
	}
}

func (h *HackerNews) Name() SourceType { return SourceHackerNews }

func (h *HackerNews) Collect(ctx context.Context, q Query) ([]Item, error) {
	if strings.TrimSpace(q.Niche) == "" {
		return nil, fmt.Errorf("hackernews: empty niche")
	}
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	hits, err := h.search(ctx, q.Niche, limit)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	items := make([]Item, 0, len(hits))
	for _, hit := range hits {
		item := Item{
			ID:          "hackernews:" + hit.ObjectID,
			Source:      SourceHackerNews,
			ExternalID:  hit.ObjectID,
			Title:       hit.Title,
			URL:         hit.URL,
			Description: truncate(stripTags(hit.StoryText), 2000),
			Author:      hit.Author,
			Score:       hit.Points,
			Comments:    hit.NumComments,
			Community:   "hackernews",
			PublishedAt: time.Unix(hit.CreatedAtI, 0).UTC(),
			CollectedAt: now,
		}
		if item.URL == "" {
			item.URL = "https://news.ycombinator.com/item?id=" + hit.ObjectID
		}
		items = append(items, item)
	}

	if h.comments > 0 {
		h.attachDiscussion(ctx, items)
	}
	return items, nil
}

type hnHit struct {
	ObjectID    string `json:"objectID"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	StoryText   string `json:"story_text"`
	Author      string `json:"author"`
	Points      int    `json:"points"`
	NumComments int    `json:"num_comments"`
	CreatedAtI  int64  `json:"created_at_i"`
}

func (h *HackerNews) search(ctx context.Context, niche string, limit int) ([]hnHit, error) {
	params := url.Values{}
	params.Set("query", niche)
	params.Set("tags", "(story,ask_hn)")
	params.Set("hitsPerPage", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create hn request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search hn: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn search status %d", resp.StatusCode)
	}

	var result struct {
		Hits []hnHit `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode hn search: %w", err)
	}
	return result.Hits, nil
}

// attachDiscussion fetches comment threads concurrently. Failures leave the
// item without discussion.
func (h *HackerNews) attachDiscussion(ctx context.Context, items []Item) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(10)
	for i := range items {
		if items[i].Comments == 0 {
			continue
		}
		i := i
		g.Go(func() error {
			texts, err := h.fetchComments(ctx, items[i].ExternalID)
			if err == nil {
				items[i].Discussion = texts
			}
			return nil
		})
	}
	_ = g.Wait()
}

type hnNode struct {
	Text     string   `json:"text"`
	Children []hnNode `json:"children"`
}

func (h *HackerNews) fetchComments(ctx context.Context, id string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/items/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("create hn item request: %w", err)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch hn item %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("hn item %s status %d", id, resp.StatusCode)
	}

	var story hnNode
	if err := json.NewDecoder(resp.Body).Decode(&story); err != nil {
		return nil, fmt.Errorf("decode hn item %s: %w", id, err)
	}

	var texts []string
	for _, c := range story.Children {
		if len(texts) == h.comments {
			break
		}
		if t := stripTags(c.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return texts, nil
}
