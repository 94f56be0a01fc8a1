package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

const youtubeAPIURL = "https://www.googleapis.com/youtube/v3"

// ErrNoAPIKey is returned by collectors that cannot run without credentials.
var ErrNoAPIKey = errors.New("api key required")

// YouTube searches YouTube videos about a niche through the Data API and
// fills in views, duration and top comments.
type YouTube struct {
	client   *http.Client
	apiKey   string
	baseURL  string
	comments int // videos whose comments are fetched
}

// NewYouTube creates a new YouTube collector. commentVideos is how many of
// the most viewed results get their top comments fetched.
func NewYouTube(apiKey, baseURL string, commentVideos int) *YouTube {
	if baseURL == "" {
		baseURL = youtubeAPIURL
	}
	return &YouTube{
		client:   &http.Client{Timeout: 30 * time.Second},
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		comments: commentVideos,
	}
}

func (y *YouTube) Name() SourceType { return SourceYouTube }

func (y *YouTube) Collect(ctx context.Context, q Query) ([]Item, error) {
	if y.apiKey == "" {
		return nil, fmt.Errorf("youtube: %w (set YOUTUBE_API_KEY)", ErrNoAPIKey)
	}
	limit := q.Limit
	if limit <= 0 || limit > 50 {
		limit = 25
	}

	items, err := y.search(ctx, q.Niche, limit)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	if err := y.enrich(ctx, items); err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })

	for i := 0; i < len(items) && i < y.comments; i++ {
		texts, err := y.topComments(ctx, items[i].ExternalID)
		if err != nil {
			continue // comments disabled on the video
		}
		items[i].Discussion = texts
	}
	return items, nil
}

func (y *YouTube) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", y.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create youtube request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch youtube %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("youtube %s status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode youtube %s: %w", path, err)
	}
	return nil
}

func (y *YouTube) search(ctx context.Context, query string, limit int) ([]Item, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", query)
	params.Set("type", "video")
	params.Set("order", "relevance")
	params.Set("maxResults", strconv.Itoa(limit))

	var result ytSearchResult
	if err := y.get(ctx, "/search", params, &result); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var items []Item
	for _, item := range result.Items {
		videoID := item.ID.VideoID
		if videoID == "" {
			continue
		}
		items = append(items, Item{
			ID:          "youtube:" + videoID,
			Source:      SourceYouTube,
			ExternalID:  videoID,
			Title:       item.Snippet.Title,
			URL:         "https://www.youtube.com/watch?v=" + videoID,
			Description: truncate(item.Snippet.Description, 500),
			Author:      item.Snippet.ChannelTitle,
			Community:   item.Snippet.ChannelTitle,
			PublishedAt: item.Snippet.PublishedAt,
			CollectedAt: now,
		})
	}
	return items, nil
}

// enrich adds view counts, comment counts and durations, 50 ids per request.
func (y *YouTube) enrich(ctx context.Context, items []Item) error {
	idx := make(map[string]int, len(items))
	ids := make([]string, 0, len(items))
	for i, item := range items {
		idx[item.ExternalID] = i
		ids = append(ids, item.ExternalID)
	}

	for start := 0; start < len(ids); start += 50 {
		end := min(start+50, len(ids))
		params := url.Values{}
		params.Set("part", "statistics,contentDetails")
		params.Set("id", strings.Join(ids[start:end], ","))

		var result ytVideoResult
		if err := y.get(ctx, "/videos", params, &result); err != nil {
			return err
		}
		for _, video := range result.Items {
			i, ok := idx[video.ID]
			if !ok {
				continue
			}
			items[i].Score = video.Statistics.ViewCount
			items[i].Comments = video.Statistics.CommentCount
			items[i].Duration = ParseISODuration(video.ContentDetails.Duration)
		}
	}
	return nil
}

func (y *YouTube) topComments(ctx context.Context, videoID string) ([]string, error) {
	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("videoId", videoID)
	params.Set("order", "relevance")
	params.Set("textFormat", "plainText")
	params.Set("maxResults", "20")

	var result ytCommentResult
	if err := y.get(ctx, "/commentThreads", params, &result); err != nil {
		return nil, err
	}
	var texts []string
	for _, t := range result.Items {
		if text := strings.TrimSpace(t.Snippet.TopLevelComment.Snippet.TextDisplay); text != "" {
			texts = append(texts, text)
		}
	}
	return texts, nil
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration parses the ISO 8601 durations YouTube reports, such as
// "PT1H2M3S". Anything unparseable is zero.
func ParseISODuration(s string) time.Duration {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, u := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0
		}
		d += time.Duration(n) * u
	}
	return d
}

type ytSearchResult struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet ytSnippet `json:"snippet"`
	} `json:"items"`
}

type ytSnippet struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ChannelTitle string    `json:"channelTitle"`
	PublishedAt  time.Time `json:"publishedAt"`
}

type ytVideoResult struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount    int `json:"viewCount,string"`
			CommentCount int `json:"commentCount,string"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type ytCommentResult struct {
	Items []struct {
		Snippet struct {
			TopLevelComment struct {
				Snippet struct {
					TextDisplay string `json:"textDisplay"`
				} `json:"snippet"`
			} `json:"topLevelComment"`
		} `json:"snippet"`
	} `json:"items"`
}
