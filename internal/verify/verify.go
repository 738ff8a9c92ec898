// Package verify re-fetches candidate links and rejects soft failures:
// homepage redirects, thin pages, soft-404 bodies, crawl-block signals.
// Verification is fail-closed: any error on the way is a rejection.
package verify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mypybite/newsriver/internal/canonical"
	"github.com/mypybite/newsriver/internal/logger"
)

// Rejection reasons, tallied in the run diagnostics.
const (
	ReasonFetchFailed       = "fetch_failed"
	ReasonHTTPError         = "http_error"
	ReasonContentType       = "content_type"
	ReasonTooSmall          = "too_small"
	ReasonHomepageRedirect  = "homepage_redirect"
	ReasonCanonicalMismatch = "canonical_mismatch"
	ReasonTooFewWords       = "too_few_words"
	ReasonSoft404           = "soft404"
	ReasonNoIndex           = "noindex"
)

// Result is one link's verification outcome.
type Result struct {
	OK       bool
	FinalURL string
	Reason   string
}

// Options tune the verifier.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MinBodyBytes int
	MinWordCount int
	// LowPayloadHosts get the body-size check relaxed (scoreboards,
	// wire snippets).
	LowPayloadHosts map[string]struct{}
	MaxBody         int64
}

type Verifier struct {
	http *http.Client
	opts Options
}

// Section slugs that mark a top-level landing page rather than an article.
var sectionSlugs = map[string]struct{}{
	"news": {}, "sports": {}, "sport": {}, "business": {}, "world": {}, "video": {},
	"opinion": {}, "local": {}, "politics": {}, "entertainment": {}, "lifestyle": {},
	"money": {}, "tech": {}, "technology": {}, "health": {},
}

var soft404Phrases = []string{
	"page not found",
	"404 not found",
	"error 404",
	"no longer available",
	"content is unavailable",
	"this page does not exist",
	"page you requested could not be found",
	"article not found",
}

// Score pages are legitimately terse; these cues relax the word-count floor.
var finalScoreCues = []string{"final score", "full time", "ft:"}

func New(opts Options) *Verifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MinBodyBytes <= 0 {
		opts.MinBodyBytes = 2048
	}
	if opts.MinWordCount <= 0 {
		opts.MinWordCount = 120
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 2 << 20
	}
	return &Verifier{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
			},
		},
		opts: opts,
	}
}

// Verify fetches the URL once, following redirects, and applies the
// soft-failure checks in order.
func (v *Verifier) Verify(ctx context.Context, rawURL string) Result {
	reqCtx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{Reason: ReasonFetchFailed}
	}
	req.Header.Set("User-Agent", v.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := v.http.Do(req)
	if err != nil {
		return Result{Reason: ReasonFetchFailed}
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{FinalURL: finalURL, Reason: ReasonHTTPError}
	}

	ctype := resp.Header.Get("Content-Type")
	if ctype != "" && !strings.Contains(ctype, "html") {
		return Result{FinalURL: finalURL, Reason: ReasonContentType}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, v.opts.MaxBody))
	if err != nil {
		return Result{FinalURL: finalURL, Reason: ReasonFetchFailed}
	}

	host := canonical.Host(finalURL)
	_, lowPayload := v.opts.LowPayloadHosts[host]
	if !lowPayload && len(body) < v.opts.MinBodyBytes {
		return Result{FinalURL: finalURL, Reason: ReasonTooSmall}
	}

	if homepageLike(finalURL) {
		return Result{FinalURL: finalURL, Reason: ReasonHomepageRedirect}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return Result{FinalURL: finalURL, Reason: ReasonFetchFailed}
	}

	if reason := v.inspect(doc, finalURL); reason != "" {
		return Result{FinalURL: finalURL, Reason: reason}
	}
	return Result{OK: true, FinalURL: finalURL}
}

// inspect applies the document-level checks; empty reason means pass.
func (v *Verifier) inspect(doc *goquery.Document, finalURL string) string {
	if robots, ok := doc.Find(`meta[name="robots"]`).First().Attr("content"); ok {
		if strings.Contains(strings.ToLower(robots), "noindex") {
			return ReasonNoIndex
		}
	}

	declared := canonicalDeclared(doc)
	if declared != "" {
		if canonical.Host(declared) != canonical.Host(finalURL) || homepageLike(declared) {
			return ReasonCanonicalMismatch
		}
	}

	title := strings.ToLower(doc.Find("title").First().Text())
	var textParts []string
	doc.Find("p, h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		textParts = append(textParts, s.Text())
	})
	text := strings.ToLower(strings.Join(textParts, " "))

	for _, phrase := range soft404Phrases {
		if strings.Contains(title, phrase) || strings.Contains(text, phrase) {
			return ReasonSoft404
		}
	}

	minWords := v.opts.MinWordCount
	if looksFinalScore(title) {
		minWords /= 4
	}
	if len(strings.Fields(text)) < minWords {
		return ReasonTooFewWords
	}
	return ""
}

func canonicalDeclared(doc *goquery.Document) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		return strings.TrimSpace(href)
	}
	if og, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok {
		return strings.TrimSpace(og)
	}
	return ""
}

func looksFinalScore(title string) bool {
	for _, cue := range finalScoreCues {
		if strings.Contains(title, cue) {
			return true
		}
	}
	return false
}

// homepageLike reports whether a URL points at a bare homepage or a
// top-level section page.
func homepageLike(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return true
	}
	segments := strings.Split(path, "/")
	if len(segments) != 1 {
		return false
	}
	slug := strings.ToLower(segments[0])
	slug = strings.TrimSuffix(slug, ".html")
	_, ok := sectionSlugs[slug]
	return ok
}

// Pool verifies candidates concurrently under a shared sub-budget.
type Pool struct {
	verifier *Verifier
	workers  int
}

func NewPool(verifier *Verifier, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{verifier: verifier, workers: workers}
}

// VerifyAll returns one Result per URL, index-aligned. URLs never
// attempted because the budget expired are rejected as fetch failures
// (fail-closed).
func (p *Pool) VerifyAll(ctx context.Context, urls []string) []Result {
	results := make([]Result, len(urls))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					results[i] = Result{Reason: ReasonFetchFailed}
					continue
				}
				results[i] = p.verifier.Verify(ctx, urls[i])
			}
		}()
	}

	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if ctx.Err() != nil {
		logger.Warn("verification budget exhausted", "urls", len(urls))
	}
	return results
}
