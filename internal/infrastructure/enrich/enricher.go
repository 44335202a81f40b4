package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"StoryPipeline/internal/domain"
	"StoryPipeline/internal/ports"
)

const defaultTimeout = 10 * time.Second

// Browser-like User-Agent so news sites don't 403 us.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/131.0.0.0 Safari/537.36"

const previewLimit = 500

var (
	urlExpr        = regexp.MustCompile(`https?://[^\s<>"']+`)
	socialExpr     = regexp.MustCompile(`^https?://(?:www\.)?(?:x|twitter)\.com/(\w+)/status/(\d+)`)
	whitespaceExpr = regexp.MustCompile(`\s+`)
)

// Enricher fetches best-effort context for URLs found in discovery output.
// Every failure stays inside this package: one bad URL never affects the
// others, and Enrich itself never reports an error.
type Enricher struct {
	client     *http.Client
	fxBase     string
	oembedBase string
	logger     *slog.Logger
}

var _ ports.Enricher = (*Enricher)(nil)

// New wires an HTTP client; the client timeout bounds each URL fetch.
func New(client *http.Client, logger *slog.Logger) *Enricher {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Enricher{
		client:     client,
		fxBase:     "https://api.fxtwitter.com",
		oembedBase: "https://publish.twitter.com/oembed",
		logger:     logger,
	}
}

// ExtractURLs returns the unique HTTP/HTTPS URLs in text, in order of first
// appearance, with trailing prose punctuation stripped.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}

	var cleaned []string
	seen := map[string]struct{}{}
	for _, raw := range urlExpr.FindAllString(text, -1) {
		u := strings.TrimRight(raw, ".,;:!?)>]}")
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		cleaned = append(cleaned, u)
	}
	return cleaned
}

// Enrich extracts URLs from text and fetches metadata for each. Returns nil
// when no URLs were found or every fetch failed; partial results are valid.
func (e *Enricher) Enrich(ctx context.Context, text string) map[string]domain.Enrichment {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		return nil
	}

	results := make(map[string]domain.Enrichment)
	for _, u := range urls {
		enrichment := e.enrichOne(ctx, u)
		if enrichment == nil {
			e.debug("no enrichment for url", "url", u)
			continue
		}
		results[u] = *enrichment
		e.debug("enriched url", "url", u, "type", enrichment.Type)
	}

	if len(results) == 0 {
		return nil
	}
	return results
}

func (e *Enricher) enrichOne(ctx context.Context, u string) (result *domain.Enrichment) {
	defer func() {
		if rec := recover(); rec != nil {
			e.debug("enrichment panic swallowed", "url", u, "panic", rec)
			result = nil
		}
	}()

	if socialExpr.MatchString(u) {
		return e.enrichSocial(ctx, u)
	}
	return e.enrichWebsite(ctx, u)
}

// enrichSocial tries FxTwitter first (has the post timestamp), then falls
// back to the oEmbed endpoint (no timestamp) before giving up on the URL.
func (e *Enricher) enrichSocial(ctx context.Context, postURL string) *domain.Enrichment {
	m := socialExpr.FindStringSubmatch(postURL)
	if m == nil {
		return nil
	}
	username, statusID := m[1], m[2]

	if body := e.fetch(ctx, fmt.Sprintf("%s/%s/status/%s", e.fxBase, username, statusID), ""); body != nil {
		var decoded struct {
			Tweet struct {
				Text      string `json:"text"`
				CreatedAt string `json:"created_at"`
				Author    struct {
					Name string `json:"name"`
				} `json:"author"`
			} `json:"tweet"`
		}
		if err := json.Unmarshal(body, &decoded); err == nil {
			author := decoded.Tweet.Author.Name
			if author == "" {
				author = username
			}
			return &domain.Enrichment{
				Type:       domain.EnrichmentSocial,
				AuthorName: author,
				Text:       decoded.Tweet.Text,
				CreatedAt:  decoded.Tweet.CreatedAt,
				URL:        postURL,
			}
		}
	}

	query := url.Values{}
	query.Set("url", postURL)
	query.Set("omit_script", "true")
	body := e.fetch(ctx, e.oembedBase+"?"+query.Encode(), "")
	if body == nil {
		return nil
	}

	var decoded struct {
		AuthorName string `json:"author_name"`
		HTML       string `json:"html"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(decoded.HTML))
	if err != nil {
		return nil
	}

	return &domain.Enrichment{
		Type:       domain.EnrichmentSocial,
		AuthorName: decoded.AuthorName,
		Text:       collapseWhitespace(doc.Text()),
		URL:        postURL,
	}
}

// enrichWebsite fetches the page and extracts the title plus the first 500
// characters of visible text, with scripts, nav, header, and footer stripped.
func (e *Enricher) enrichWebsite(ctx context.Context, pageURL string) *domain.Enrichment {
	body := e.fetch(ctx, pageURL, userAgent)
	if body == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, nav, header, footer, noscript").Remove()

	preview := collapseWhitespace(doc.Text())
	if runes := []rune(preview); len(runes) > previewLimit {
		preview = string(runes[:previewLimit])
	}

	return &domain.Enrichment{
		Type:  domain.EnrichmentWebsite,
		Title: title,
		Text:  preview,
		URL:   pageURL,
	}
}

// fetch performs one isolated GET; any transport failure or non-200 status
// yields nil so the caller moves on to the next source.
func (e *Enricher) fetch(ctx context.Context, target, agent string) []byte {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil
	}
	if agent != "" {
		req.Header.Set("User-Agent", agent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.debug("fetch failed", "url", target, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.debug("fetch rejected", "url", target, "status", resp.Status)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		e.debug("fetch read failed", "url", target, "error", err)
		return nil
	}
	return body
}

func collapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(text, " "))
}

func (e *Enricher) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
