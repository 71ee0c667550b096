// Package scrape extracts cleaned article text from web pages through a
// fallback chain of extraction strategies.
package scrape

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

// Strategy names accepted in the configured chain order.
const (
	StrategyCrawler  = "crawler"
	StrategyHeadless = "headless"
	StrategyPlain    = "plain"
)

// Config controls the scraper. Strategies is the chain order; the
// headless strategy only joins the chain when HeadlessEnabled is set.
type Config struct {
	UserAgent       string
	Strategies      []string
	HeadlessEnabled bool
}

// Scraper is the scrape-page stage adapter.
type Scraper struct {
	cfg      Config
	logger   *zap.Logger
	headless *headlessRenderer
}

// New constructs a Scraper.
func New(cfg Config, logger *zap.Logger) (*Scraper, error) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "mediascribe/1.0"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, name := range cfg.Strategies {
		switch name {
		case StrategyCrawler, StrategyHeadless, StrategyPlain:
		default:
			return nil, fmt.Errorf("unknown scrape strategy %q", name)
		}
	}
	s := &Scraper{cfg: cfg, logger: logger}
	if cfg.HeadlessEnabled {
		s.headless = newHeadlessRenderer(cfg.UserAgent)
	}
	return s, nil
}

// Close tears down the headless browser, if one was started.
func (s *Scraper) Close() {
	if s.headless != nil {
		s.headless.close()
	}
}

// Strategies returns the configured chain for one page URL.
func (s *Scraper) Strategies(pageURL string) []pipeline.Strategy[pipeline.PageResult] {
	names := s.cfg.Strategies
	if len(names) == 0 {
		names = []string{StrategyCrawler, StrategyPlain}
	}
	out := make([]pipeline.Strategy[pipeline.PageResult], 0, len(names))
	for _, name := range names {
		switch name {
		case StrategyCrawler:
			out = append(out, pipeline.Strategy[pipeline.PageResult]{
				Name: StrategyCrawler,
				Run: func(ctx context.Context) (pipeline.PageResult, error) {
					return s.viaCrawler(ctx, pageURL)
				},
			})
		case StrategyHeadless:
			if s.headless == nil {
				s.logger.Debug("headless strategy configured but disabled")
				continue
			}
			out = append(out, pipeline.Strategy[pipeline.PageResult]{
				Name: StrategyHeadless,
				Run: func(ctx context.Context) (pipeline.PageResult, error) {
					return s.viaHeadless(ctx, pageURL)
				},
			})
		case StrategyPlain:
			out = append(out, pipeline.Strategy[pipeline.PageResult]{
				Name: StrategyPlain,
				Run: func(ctx context.Context) (pipeline.PageResult, error) {
					return s.viaPlainFetch(ctx, pageURL)
				},
			})
		}
	}
	return out
}

// boilerplate selectors dropped before conversion; keeps article text and
// discards chrome.
const strippedSelectors = "script, style, noscript, iframe, svg, nav, header, footer, form, aside"

var blankLines = regexp.MustCompile(`\n{3,}`)

// cleanHTML strips boilerplate markup and converts the remainder to
// Markdown, the canonical cleaned-text format.
func cleanHTML(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", pipeline.Recoverable(fmt.Errorf("parse html: %w", err))
	}
	doc.Find(strippedSelectors).Remove()
	content, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(content) == "" {
		// Fragment without a body element; fall back to the whole tree.
		content, err = doc.Html()
		if err != nil {
			return "", pipeline.Recoverable(fmt.Errorf("serialize html: %w", err))
		}
	}
	markdown, err := toMarkdown(content)
	if err != nil {
		return "", pipeline.Recoverable(fmt.Errorf("convert html to markdown: %w", err))
	}
	markdown = strings.TrimSpace(blankLines.ReplaceAllString(markdown, "\n\n"))
	if markdown == "" {
		return "", pipeline.Recoverable(fmt.Errorf("page produced no text content"))
	}
	return markdown, nil
}
