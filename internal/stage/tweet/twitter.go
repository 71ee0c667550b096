// Package tweet resolves tweet URLs to their attached video assets via
// the Twitter API v2.
package tweet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

var tweetIDPattern = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// Config controls the API client. One fallback strategy is built per
// bearer token, so a rate-limited token hands over to the next one.
type Config struct {
	BearerTokens []string
	APIBase      string
	HTTPTimeout  time.Duration
}

// Resolver is the scrape-tweet stage adapter.
type Resolver struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New constructs a Resolver. client may be nil to use a default client.
func New(cfg Config, client *http.Client, logger *zap.Logger) *Resolver {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.twitter.com"
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, client: client, logger: logger}
}

// Strategies returns one strategy per configured bearer token. With a
// single token this degenerates to a single-strategy chain.
func (r *Resolver) Strategies(tweetURL string) []pipeline.Strategy[pipeline.TweetResult] {
	out := make([]pipeline.Strategy[pipeline.TweetResult], 0, len(r.cfg.BearerTokens))
	for i, token := range r.cfg.BearerTokens {
		out = append(out, pipeline.Strategy[pipeline.TweetResult]{
			Name: fmt.Sprintf("bearer-token-%d", i+1),
			Run: func(ctx context.Context) (pipeline.TweetResult, error) {
				return r.resolve(ctx, token, tweetURL)
			},
		})
	}
	return out
}

func (r *Resolver) resolve(ctx context.Context, token, tweetURL string) (pipeline.TweetResult, error) {
	m := tweetIDPattern.FindStringSubmatch(tweetURL)
	if m == nil {
		return pipeline.TweetResult{}, pipeline.Fatal(fmt.Errorf("not a tweet status URL: %s", tweetURL))
	}
	tweetID := m[1]

	endpoint := fmt.Sprintf(
		"%s/2/tweets/%s?tweet.fields=attachments&expansions=attachments.media_keys&media.fields=type,url,variants",
		r.cfg.APIBase, tweetID,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pipeline.TweetResult{}, pipeline.Fatal(fmt.Errorf("build tweet request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := r.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.TweetResult{}, ctx.Err()
		}
		return pipeline.TweetResult{}, pipeline.Recoverable(fmt.Errorf("twitter api request: %w", err))
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			r.logger.Debug("close twitter response body", zap.Error(closeErr))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return pipeline.TweetResult{}, pipeline.Recoverable(fmt.Errorf("twitter api: token rate limited"))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return pipeline.TweetResult{}, pipeline.Recoverable(fmt.Errorf("twitter api: token rejected (%d)", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return pipeline.TweetResult{}, pipeline.Fatal(fmt.Errorf("tweet %s not found", tweetID))
	case resp.StatusCode != http.StatusOK:
		return pipeline.TweetResult{}, pipeline.Recoverable(fmt.Errorf("twitter api: unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.TweetResult{}, pipeline.Recoverable(fmt.Errorf("read twitter response: %w", err))
	}
	return extractVideo(tweetID, body)
}

type tweetResponse struct {
	Data struct {
		Text        string `json:"text"`
		Attachments struct {
			MediaKeys []string `json:"media_keys"`
		} `json:"attachments"`
	} `json:"data"`
	Includes struct {
		Media []mediaItem `json:"media"`
	} `json:"includes"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

type mediaItem struct {
	MediaKey string    `json:"media_key"`
	Type     string    `json:"type"`
	Variants []variant `json:"variants"`
}

type variant struct {
	BitRate     int64  `json:"bit_rate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

// extractVideo picks the highest-bitrate mp4 variant among the tweet's
// video attachments. A tweet without one is a fatal failure: no other
// token will change what the tweet contains.
func extractVideo(tweetID string, body []byte) (pipeline.TweetResult, error) {
	var tr tweetResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return pipeline.TweetResult{}, pipeline.Recoverable(fmt.Errorf("decode twitter response: %w", err))
	}
	if len(tr.Errors) > 0 {
		return pipeline.TweetResult{}, pipeline.Fatal(fmt.Errorf("twitter api error for tweet %s: %s", tweetID, tr.Errors[0].Title))
	}

	byKey := make(map[string]mediaItem, len(tr.Includes.Media))
	for _, m := range tr.Includes.Media {
		byKey[m.MediaKey] = m
	}

	var candidates []variant
	for _, key := range tr.Data.Attachments.MediaKeys {
		m, ok := byKey[key]
		if !ok || (m.Type != "video" && m.Type != "animated_gif") {
			continue
		}
		for _, v := range m.Variants {
			if v.ContentType == "video/mp4" && v.URL != "" {
				candidates = append(candidates, v)
			}
		}
	}
	if len(candidates) == 0 {
		return pipeline.TweetResult{}, pipeline.Fatal(fmt.Errorf("tweet %s has no video attachment", tweetID))
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].BitRate > candidates[j].BitRate
	})
	return pipeline.TweetResult{VideoURL: candidates[0].URL, TweetText: tr.Data.Text}, nil
}
