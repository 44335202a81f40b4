package enrich

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"StoryPipeline/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExtractURLs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		text string
		want []string
	}{
		{
			"trailing punctuation stripped",
			"See https://a.com. Also https://b.com,",
			[]string{"https://a.com", "https://b.com"},
		},
		{
			"deduped in first-appearance order",
			"https://b.com then https://a.com then https://b.com again",
			[]string{"https://b.com", "https://a.com"},
		},
		{
			"parenthesized",
			"(source: https://example.com/story)",
			[]string{"https://example.com/story"},
		},
		{"no urls", "nothing to see here", nil},
		{"empty", "", nil},
	}

	for _, tc := range cases {
		if got := ExtractURLs(tc.text); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: ExtractURLs(%q) = %v, want %v", tc.name, tc.text, got, tc.want)
		}
	}
}

func TestEnrichWebsite(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
			<title>City approves bond</title>
			<script>ignore()</script>
		</head><body>
			<nav>Home News</nav>
			<p>The council voted 7-2 on Tuesday.</p>
			<footer>Copyright</footer>
		</body></html>`))
	}))
	defer srv.Close()

	e := New(srv.Client(), discardLogger())
	got := e.Enrich(context.Background(), "Coverage at "+srv.URL)
	if len(got) != 1 {
		t.Fatalf("Enrich returned %d entries, want 1", len(got))
	}

	enr, ok := got[srv.URL]
	if !ok {
		t.Fatalf("missing entry for %s: %v", srv.URL, got)
	}
	if enr.Type != domain.EnrichmentWebsite {
		t.Fatalf("type = %q, want website", enr.Type)
	}
	if enr.Title != "City approves bond" {
		t.Fatalf("title = %q", enr.Title)
	}
	if enr.Text != "City approves bond The council voted 7-2 on Tuesday." {
		t.Fatalf("text = %q", enr.Text)
	}
}

func TestEnrichIsolatesFailingURLs(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html><title>Good</title><body>fine</body></html>"))
	}))
	defer srv.Close()

	e := New(srv.Client(), discardLogger())
	got := e.Enrich(context.Background(), srv.URL+"/bad and "+srv.URL+"/good")

	if len(got) != 1 {
		t.Fatalf("Enrich returned %d entries, want 1: %v", len(got), got)
	}
	if _, ok := got[srv.URL+"/good"]; !ok {
		t.Fatalf("good url missing from results: %v", got)
	}
}

func TestEnrichAllFailedReturnsNil(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	e := New(srv.Client(), discardLogger())
	if got := e.Enrich(context.Background(), srv.URL); got != nil {
		t.Fatalf("all-failed enrich = %v, want nil", got)
	}
	if got := e.Enrich(context.Background(), "no links here"); got != nil {
		t.Fatalf("no-url enrich = %v, want nil", got)
	}
}

func TestEnrichSocialPrefersFxTwitter(t *testing.T) {
	t.Parallel()

	fx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reporter/status/123" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"tweet":{"text":"Breaking: vote passed","created_at":"Tue Aug 25 14:00:00 +0000 2026","author":{"name":"Jo Reporter"}}}`))
	}))
	defer fx.Close()

	e := New(fx.Client(), discardLogger())
	e.fxBase = fx.URL

	got := e.enrichOne(context.Background(), "https://x.com/reporter/status/123")
	if got == nil {
		t.Fatal("enrichOne returned nil")
	}
	if got.Type != domain.EnrichmentSocial {
		t.Fatalf("type = %q, want social", got.Type)
	}
	if got.AuthorName != "Jo Reporter" || got.Text != "Breaking: vote passed" {
		t.Fatalf("author=%q text=%q", got.AuthorName, got.Text)
	}
	if got.CreatedAt == "" {
		t.Fatal("created_at should carry through from the primary source")
	}
}

func TestEnrichSocialFallsBackToOEmbed(t *testing.T) {
	t.Parallel()

	fx := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer fx.Close()

	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("url") == "" {
			http.Error(w, "missing url", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"author_name":"Jo Reporter","html":"<blockquote><p>Breaking: vote passed</p></blockquote>"}`))
	}))
	defer oembed.Close()

	e := New(http.DefaultClient, discardLogger())
	e.fxBase = fx.URL
	e.oembedBase = oembed.URL

	got := e.enrichOne(context.Background(), "https://twitter.com/reporter/status/123")
	if got == nil {
		t.Fatal("enrichOne returned nil")
	}
	if got.AuthorName != "Jo Reporter" {
		t.Fatalf("author = %q", got.AuthorName)
	}
	if got.Text != "Breaking: vote passed" {
		t.Fatalf("text = %q", got.Text)
	}
	if got.CreatedAt != "" {
		t.Fatalf("fallback source has no timestamp, got %q", got.CreatedAt)
	}
}
