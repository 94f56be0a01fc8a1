package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditTokenURL  = "https://www.reddit.com/api/v1/access_token"
)

// RedditConfig configures the Reddit collector. Without credentials the
// public JSON endpoints are used.
type RedditConfig struct {
	ClientID     string
	ClientSecret string
	UserAgent    string
	Subreddits   []string // empty: search all of Reddit
	// DiscoverLimit, when Subreddits is empty, searches the top communities
	// found by DiscoverSubreddits instead of all of Reddit.
	DiscoverLimit int
	// RequestsPerMinute caps outgoing requests. Zero means 30.
	RequestsPerMinute int
	// BaseURL and TokenURL override the endpoints, for tests.
	BaseURL  string
	TokenURL string
}

// Reddit searches Reddit posts that mention a niche.
type Reddit struct {
	client    *http.Client
	cfg       RedditConfig
	limiter   *rate.Limiter
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewReddit creates a new Reddit collector.
func NewReddit(cfg RedditConfig) *Reddit {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "gapradar/1.0"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = redditTokenURL
	}
	every := time.Minute / time.Duration(cfg.RequestsPerMinute)
	return &Reddit{
		client:  &http.Client{Timeout: 30 * time.Second},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

func (r *Reddit) Name() SourceType { return SourceReddit }

func (r *Reddit) authenticated() bool {
	return r.cfg.ClientID != "" && r.cfg.ClientSecret != ""
}

func (r *Reddit) baseURL() string {
	switch {
	case r.cfg.BaseURL != "":
		return strings.TrimRight(r.cfg.BaseURL, "/")
	case r.authenticated():
		return redditOAuthURL
	}
	return redditPublicURL
}

// Collect searches each configured subreddit, or all of Reddit, for the
// niche. A failing subreddit is skipped unless every search fails.
func (r *Reddit) Collect(ctx context.Context, q Query) ([]Item, error) {
	if strings.TrimSpace(q.Niche) == "" {
		return nil, fmt.Errorf("reddit: empty niche")
	}
	if r.authenticated() {
		if err := r.authenticate(ctx); err != nil {
			return nil, fmt.Errorf("reddit auth: %w", err)
		}
	}
	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	subs := r.cfg.Subreddits
	if len(subs) == 0 && r.cfg.DiscoverLimit > 0 {
		if found, err := r.discover(ctx, q.Niche, r.cfg.DiscoverLimit); err == nil {
			for _, sub := range found {
				subs = append(subs, sub.Name)
			}
		}
	}
	if len(subs) == 0 {
		subs = []string{""}
	}

	var (
		items   []Item
		lastErr error
		failed  int
		seen    = make(map[string]bool)
	)
	for _, sub := range subs {
		found, err := r.search(ctx, sub, q.Niche, limit)
		if err != nil {
			lastErr = err
			failed++
			continue
		}
		for _, it := range found {
			if !seen[it.ID] {
				seen[it.ID] = true
				items = append(items, it)
			}
		}
	}
	if failed == len(subs) {
		return nil, lastErr
	}
	return items, nil
}

func (r *Reddit) authenticate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Now().Before(r.expiresAt) {
		return nil
	}

	data := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.TokenURL,
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(r.cfg.ClientID, r.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", r.cfg.UserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("reddit token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reddit auth status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return fmt.Errorf("decode reddit token: %w", err)
	}

	r.token = tokenResp.AccessToken
	r.expiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn-60) * time.Second)
	return nil
}

func (r *Reddit) search(ctx context.Context, subreddit, niche string, limit int) ([]Item, error) {
	params := url.Values{}
	params.Set("q", niche)
	params.Set("sort", "relevance")
	params.Set("t", "year")
	params.Set("limit", strconv.Itoa(limit))
	path := "/search.json"
	if subreddit != "" {
		path = "/r/" + url.PathEscape(subreddit) + "/search.json"
		params.Set("restrict_sr", "1")
	}

	var listing redditListing
	if err := r.getJSON(ctx, path, params, &listing); err != nil {
		return nil, fmt.Errorf("reddit search %q: %w", subreddit, err)
	}

	now := time.Now().UTC()
	var items []Item
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}

		items = append(items, Item{
			ID:          "reddit:" + post.ID,
			Source:      SourceReddit,
			ExternalID:  post.ID,
			Title:       post.Title,
			URL:         "https://reddit.com" + post.Permalink,
			Description: truncate(post.Selftext, 2000),
			Author:      post.Author,
			Score:       post.Score,
			Comments:    post.NumComments,
			Community:   post.Subreddit,
			PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
			CollectedAt: now,
		})
	}
	return items, nil
}

// getJSON issues a rate-limited GET against the API and decodes the body.
func (r *Reddit) getJSON(ctx context.Context, path string, params url.Values, v any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL()+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	if r.authenticated() {
		r.mu.Lock()
		req.Header.Set("Authorization", "Bearer "+r.token)
		r.mu.Unlock()
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	Stickied    bool    `json:"stickied"`
}
