package demand

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const gapPrompt = `You are a market researcher looking for underserved product opportunities in the niche "%s".

Demand score: %d/100 (pain %.0f, spend %.0f, search %.0f, content %.0f, apps %.0f).

Recurring complaints:
%s

Open questions people ask:
%s

Content formats nobody covers yet: %s

Common themes: %s

Name at most %d concrete gaps a small team could build a product or content offer around. Each gap needs:
1. "title" (short phrase): the opportunity
2. "reason" (1 sentence): which evidence above supports it

Be strict. Skip anything the evidence does not support.

Respond with a JSON array. Example: [{"title":"Invoice reminders for freelancers","reason":"Several complaints about chasing late payments"}]

Return ONLY the JSON array, no other text.`

// GapSummarizer asks an LLM to turn a report's evidence into a short list of
// product gaps.
type GapSummarizer struct {
	client   *http.Client
	provider string // "openai" or "anthropic"
	model    string
	apiKey   string
	baseURL  string
	maxGaps  int
}

// NewGapSummarizer creates a new summarizer.
func NewGapSummarizer(provider, model, apiKey, baseURL string) *GapSummarizer {
	if model == "" {
		switch provider {
		case "anthropic":
			model = "claude-sonnet-4-20250514"
		default:
			model = "gpt-4o-mini"
		}
	}
	return &GapSummarizer{
		client:   &http.Client{Timeout: 60 * time.Second},
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		baseURL:  baseURL,
		maxGaps:  5,
	}
}

// Summarize returns up to five gaps for the report. Gaps without a title are
// dropped.
func (g *GapSummarizer) Summarize(ctx context.Context, rep *Report) ([]Gap, error) {
	prompt := g.prompt(rep)

	var raw string
	var err error
	switch g.provider {
	case "anthropic":
		raw, err = g.callAnthropic(ctx, prompt)
	default:
		raw, err = g.callOpenAI(ctx, prompt)
	}
	if err != nil {
		return nil, err
	}

	raw = stripCodeFence(raw)
	var gaps []Gap
	if err := json.Unmarshal([]byte(raw), &gaps); err != nil {
		return nil, fmt.Errorf("parse llm response: %w\nraw: %s", err, truncateStr(raw, 500))
	}

	var out []Gap
	for _, gap := range gaps {
		gap.Title = strings.TrimSpace(gap.Title)
		if gap.Title == "" {
			continue
		}
		out = append(out, gap)
		if len(out) == g.maxGaps {
			break
		}
	}
	return out, nil
}

func (g *GapSummarizer) prompt(rep *Report) string {
	var pains, questions []string
	for i, c := range rep.PainClusters {
		if i == 10 {
			break
		}
		pains = append(pains, fmt.Sprintf("- %s (x%d)", truncateStr(c.Label, 200), c.Count))
	}
	for _, o := range rep.Opportunities {
		if o.Type == "question" && len(questions) < 10 {
			questions = append(questions, "- "+truncateStr(o.Signal, 200))
		}
	}

	missing := "unknown"
	if rep.ContentGaps != nil && len(rep.ContentGaps.Missing) > 0 {
		missing = strings.Join(rep.ContentGaps.Missing, ", ")
	}
	b := rep.Result.Breakdown
	return fmt.Sprintf(gapPrompt,
		rep.Niche, rep.Result.UnifiedScore,
		b.PainScore.Value, b.SpendScore.Value, b.SearchScore.Value, b.ContentScore.Value, b.AppScore.Value,
		orNone(pains), orNone(questions), missing, strings.Join(rep.Themes, ", "), g.maxGaps)
}

func orNone(lines []string) string {
	if len(lines) == 0 {
		return "- none collected"
	}
	return strings.Join(lines, "\n")
}

// stripCodeFence removes a markdown code block around the model output.
func stripCodeFence(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if idx := strings.Index(raw[3:], "\n"); idx >= 0 {
			raw = raw[3+idx+1:]
		}
		raw = strings.TrimSuffix(raw, "```")
		raw = strings.TrimSpace(raw)
	}
	return raw
}

func (g *GapSummarizer) callOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       g.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": 0.2,
	}
	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + g.apiKey}
	if err := g.post(ctx, "openai", g.endpoint("https://api.openai.com")+"/v1/chat/completions", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}

func (g *GapSummarizer) callAnthropic(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":      g.model,
		"max_tokens": 1024,
		"messages":   []map[string]string{{"role": "user", "content": prompt}},
	}
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         g.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := g.post(ctx, "anthropic", g.endpoint("https://api.anthropic.com")+"/v1/messages", headers, payload, &result); err != nil {
		return "", err
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("anthropic: no content returned")
	}
	return result.Content[0].Text, nil
}

func (g *GapSummarizer) endpoint(def string) string {
	if g.baseURL != "" {
		return strings.TrimSuffix(g.baseURL, "/")
	}
	return def
}

// post sends payload as JSON and decodes a 200 response into out.
func (g *GapSummarizer) post(ctx context.Context, provider, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", provider, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]any
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("%s status %d: %v", provider, resp.StatusCode, errResp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}

func truncateStr(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
