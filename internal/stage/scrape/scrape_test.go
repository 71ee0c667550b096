package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mediascribe/mediascribe/internal/pipeline"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Article</title><style>body { color: red }</style></head>
<body>
	<nav><a href="/">Home</a></nav>
	<header>Site banner</header>
	<article>
		<h1>Go Concurrency Patterns</h1>
		<p>Channels orchestrate; mutexes serialize.</p>
	</article>
	<script>trackVisitor()</script>
	<footer>Copyright</footer>
</body>
</html>`

func TestNewRejectsUnknownStrategy(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Strategies: []string{"crawler", "telnet"}}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "telnet")
}

// TestStrategiesDefaultChain ensures the default chain omits headless and
// the configured chain drops headless when the renderer is disabled.
func TestStrategiesDefaultChain(t *testing.T) {
	t.Parallel()

	s, err := New(Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{StrategyCrawler, StrategyPlain}, strategyNames(s.Strategies("https://example.com")))

	s, err = New(Config{Strategies: []string{StrategyCrawler, StrategyHeadless, StrategyPlain}}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{StrategyCrawler, StrategyPlain}, strategyNames(s.Strategies("https://example.com")))
}

// TestCleanHTMLStripsBoilerplate ensures script/nav/header/footer content
// never reaches the Markdown output while article text survives.
func TestCleanHTMLStripsBoilerplate(t *testing.T) {
	t.Parallel()

	text, err := cleanHTML([]byte(articleHTML))
	require.NoError(t, err)
	require.Contains(t, text, "Go Concurrency Patterns")
	require.Contains(t, text, "Channels orchestrate; mutexes serialize.")
	require.NotContains(t, text, "trackVisitor")
	require.NotContains(t, text, "Site banner")
	require.NotContains(t, text, "Copyright")
	require.NotContains(t, text, "color: red")
}

func TestCleanHTMLEmptyPage(t *testing.T) {
	t.Parallel()

	_, err := cleanHTML([]byte(`<html><body><script>only()</script></body></html>`))
	require.Error(t, err)
	require.Equal(t, pipeline.ClassRecoverable, pipeline.Classify(err))
}

func TestViaCrawlerFetchesAndConverts(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, articleHTML)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{}, nil)
	require.NoError(t, err)

	res, err := s.viaCrawler(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, res.Text, "Go Concurrency Patterns")
	require.NotContains(t, res.Text, "trackVisitor")
}

func TestViaPlainFetchExtractsText(t *testing.T) {
	t.Parallel()

	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		fmt.Fprint(w, articleHTML)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{UserAgent: "test-agent/1.0"}, nil)
	require.NoError(t, err)

	res, err := s.viaPlainFetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "test-agent/1.0", gotUA)
	require.Contains(t, res.Text, "Go Concurrency Patterns")
	require.NotContains(t, res.Text, "trackVisitor")
}

// TestStatusClassification ensures 404/410 stop the chain while transient
// statuses let it continue to the next strategy.
func TestStatusClassification(t *testing.T) {
	t.Parallel()

	cases := map[int]pipeline.FailureClass{
		http.StatusNotFound:            pipeline.ClassFatal,
		http.StatusGone:                pipeline.ClassFatal,
		http.StatusForbidden:           pipeline.ClassRecoverable,
		http.StatusServiceUnavailable:  pipeline.ClassRecoverable,
		http.StatusInternalServerError: pipeline.ClassRecoverable,
	}
	for status, wantClass := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		s, err := New(Config{}, nil)
		require.NoError(t, err)

		_, err = s.viaPlainFetch(context.Background(), srv.URL)
		require.Error(t, err, "status %d", status)
		require.Equal(t, wantClass, pipeline.Classify(err), "status %d", status)
		srv.Close()
	}
}

// TestChainFallsBackToPlain runs the real chain against a server that
// fails the first page fetch, so the crawler strategy hands over to the
// plain one.
func TestChainFallsBackToPlain(t *testing.T) {
	t.Parallel()

	var pageCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		pageCalls++
		if pageCalls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, articleHTML)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{}, nil)
	require.NoError(t, err)

	res, err := pipeline.RunChain(context.Background(), pipeline.ChainConfig{Stage: "scrape_page"}, s.Strategies(srv.URL))
	require.NoError(t, err)
	require.Equal(t, StrategyPlain, res.StrategyUsed)
	require.Len(t, res.Attempts, 1)
	require.Equal(t, StrategyCrawler, res.Attempts[0].Strategy)
	require.Contains(t, res.Value.Text, "Go Concurrency Patterns")
}

func strategyNames(strategies []pipeline.Strategy[pipeline.PageResult]) []string {
	names := make([]string, 0, len(strategies))
	for _, s := range strategies {
		names = append(names, s.Name)
	}
	return names
}
