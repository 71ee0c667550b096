package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// maxPlainBodyBytes caps the fallback fetch; pages larger than this are
// not articles.
const maxPlainBodyBytes = 5 << 20

// viaPlainFetch is the last-resort strategy: a bare HTTP GET with
// minimal markup stripping, used when the structured strategies are
// unavailable or incompatible with the page.
func (s *Scraper) viaPlainFetch(ctx context.Context, pageURL string) (pipeline.PageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return pipeline.PageResult{}, pipeline.Fatal(fmt.Errorf("build fetch request: %w", err))
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return pipeline.PageResult{}, ctx.Err()
		}
		return pipeline.PageResult{}, pipeline.Recoverable(fmt.Errorf("plain fetch: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return pipeline.PageResult{}, classifyStatus(resp.StatusCode,
			fmt.Errorf("plain fetch: status %d from %s", resp.StatusCode, pageURL))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlainBodyBytes))
	if err != nil {
		return pipeline.PageResult{}, pipeline.Recoverable(fmt.Errorf("read page body: %w", err))
	}

	text, err := stripMarkup(body)
	if err != nil {
		return pipeline.PageResult{}, err
	}
	return pipeline.PageResult{Text: text}, nil
}

// stripMarkup extracts visible text only; no Markdown conversion, this
// strategy stays deliberately minimal.
func stripMarkup(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", pipeline.Recoverable(fmt.Errorf("parse html: %w", err))
	}
	doc.Find(strippedSelectors).Remove()
	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}

	lines := strings.Split(text, "\n")
	cleaned := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	result := strings.Join(cleaned, "\n")
	if result == "" {
		return "", pipeline.Recoverable(fmt.Errorf("page produced no text content"))
	}
	return result, nil
}
