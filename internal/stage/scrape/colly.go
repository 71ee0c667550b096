package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gocolly/colly/v2"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

func toMarkdown(html string) (string, error) {
	return htmltomarkdown.ConvertString(html)
}

// viaCrawler fetches the page through a Colly collector and runs the
// full cleanup conversion on the response body.
func (s *Scraper) viaCrawler(ctx context.Context, pageURL string) (pipeline.PageResult, error) {
	c := colly.NewCollector(colly.UserAgent(s.cfg.UserAgent))
	if deadline, ok := ctx.Deadline(); ok {
		c.SetRequestTimeout(time.Until(deadline))
	}

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	// Visit blocks; run it aside so ctx cancellation is honored.
	done := make(chan error, 1)
	go func() {
		done <- c.Visit(pageURL)
	}()
	select {
	case <-ctx.Done():
		return pipeline.PageResult{}, ctx.Err()
	case visitErr := <-done:
		if fetchErr == nil {
			fetchErr = visitErr
		}
	}

	if fetchErr != nil {
		return pipeline.PageResult{}, classifyStatus(statusCode, fmt.Errorf("crawler fetch: %w", fetchErr))
	}
	if len(body) == 0 {
		return pipeline.PageResult{}, pipeline.Recoverable(fmt.Errorf("crawler fetch: empty response from %s", pageURL))
	}

	text, err := cleanHTML(body)
	if err != nil {
		return pipeline.PageResult{}, err
	}
	return pipeline.PageResult{Text: text}, nil
}

// classifyStatus maps HTTP outcomes to the chain taxonomy: statuses that
// no other fetch method can change are fatal.
func classifyStatus(statusCode int, err error) error {
	switch statusCode {
	case http.StatusNotFound, http.StatusGone:
		return pipeline.Fatal(err)
	default:
		return pipeline.Recoverable(err)
	}
}
