package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	discoverVariations = 5
	discoverPerQuery   = 10
	discoverDefaultMax = 20
)

var variationSuffixes = []string{
	"software", "tool", "app", "automation",
	"help", "tips", "for beginners", "problems",
}

// Subreddit is a community found by subreddit discovery.
type Subreddit struct {
	Name        string `json:"name"`
	Subscribers int    `json:"subscribers"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// NicheVariations expands a niche into related search phrases. The
// normalized niche comes first; the order is stable and duplicates are
// dropped.
func NicheVariations(niche string) []string {
	base := strings.Join(strings.Fields(strings.ToLower(niche)), " ")
	if base == "" {
		return nil
	}

	out := []string{base}
	for _, suffix := range variationSuffixes {
		out = append(out, base+" "+suffix)
	}
	out = append(out, "best "+base)

	if strings.HasSuffix(base, "s") {
		out = append(out, strings.TrimSuffix(base, "s"))
	} else {
		out = append(out, base+"s")
	}

	if words := strings.Fields(base); len(words) > 1 {
		out = append(out, words[0], words[len(words)-1])
		reversed := make([]string, len(words))
		for i, w := range words {
			reversed[len(words)-1-i] = w
		}
		out = append(out, strings.Join(reversed, " "))
	}

	seen := make(map[string]bool, len(out))
	uniq := out[:0]
	for _, v := range out {
		if v != "" && !seen[v] {
			seen[v] = true
			uniq = append(uniq, v)
		}
	}
	return uniq
}

// DiscoverSubreddits searches subreddit listings for the leading variations
// of niche and returns the communities found, largest first. max <= 0 means
// 20. A failing variation is skipped unless every search fails.
func (r *Reddit) DiscoverSubreddits(ctx context.Context, niche string, max int) ([]Subreddit, error) {
	if strings.TrimSpace(niche) == "" {
		return nil, fmt.Errorf("reddit: empty niche")
	}
	if r.authenticated() {
		if err := r.authenticate(ctx); err != nil {
			return nil, fmt.Errorf("reddit auth: %w", err)
		}
	}
	return r.discover(ctx, niche, max)
}

func (r *Reddit) discover(ctx context.Context, niche string, max int) ([]Subreddit, error) {
	if max <= 0 {
		max = discoverDefaultMax
	}
	variations := NicheVariations(niche)
	if len(variations) > discoverVariations {
		variations = variations[:discoverVariations]
	}

	var (
		errs  []error
		found = make(map[string]Subreddit)
	)
	for _, v := range variations {
		subs, err := r.searchSubreddits(ctx, v)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		for _, sub := range subs {
			if _, ok := found[sub.Name]; !ok {
				found[sub.Name] = sub
			}
		}
	}
	if len(errs) == len(variations) {
		return nil, errors.Join(errs...)
	}

	out := make([]Subreddit, 0, len(found))
	for _, sub := range found {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Subscribers != out[j].Subscribers {
			return out[i].Subscribers > out[j].Subscribers
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (r *Reddit) searchSubreddits(ctx context.Context, query string) ([]Subreddit, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(discoverPerQuery))

	var listing subredditListing
	if err := r.getJSON(ctx, "/subreddits/search.json", params, &listing); err != nil {
		return nil, fmt.Errorf("reddit subreddit search %q: %w", query, err)
	}

	var subs []Subreddit
	for _, child := range listing.Data.Children {
		d := child.Data
		if d.DisplayName == "" {
			continue
		}
		subs = append(subs, Subreddit{
			Name:        d.DisplayName,
			Subscribers: d.Subscribers,
			Description: truncate(d.PublicDescription, 200),
			URL:         "https://reddit.com/r/" + d.DisplayName,
		})
	}
	return subs, nil
}

type subredditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				DisplayName       string `json:"display_name"`
				Subscribers       int    `json:"subscribers"`
				PublicDescription string `json:"public_description"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}
