package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jgourd/leadharvest/internal/harvest"
)

const sitemapBody = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://easyapply.co/job/1</loc></url>
</urlset>`

func TestFetcher_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.UserAgent())
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(sitemapBody))
	}))
	defer srv.Close()

	f := New(Config{Timeout: 5 * time.Second})
	doc, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL + "/sitemap.xml", ExpectXML: true})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, doc.StatusCode)
	require.Contains(t, string(doc.Body), "<urlset")
	require.False(t, doc.Mirrored)
}

func TestFetcher_OversizedBodyIsTerminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	f := New(Config{MaxBodyBytes: 1024})
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	require.Equal(t, harvest.KindOversized, harvest.KindOf(err))
}

func TestFetcher_ForbiddenIsAuthError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})
	require.Error(t, err)
	require.Equal(t, harvest.KindAuth, harvest.KindOf(err))
}

func TestFetcher_RateLimitCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL})
	require.Error(t, err)

	fe := harvest.Classify(err)
	require.Equal(t, harvest.KindRateLimited, fe.Kind)
	require.Equal(t, 7*time.Second, fe.RetryAfter)
}

func TestFetcher_ChallengePageFailsWithoutMirror(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><body>Checking your browser...</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL + "/sitemap.xml", ExpectXML: true})
	require.Error(t, err)
	require.Equal(t, harvest.KindMalformed, harvest.KindOf(err))
}

func TestFetcher_ChallengePageFallsBackToMirror(t *testing.T) {
	t.Parallel()

	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>blocked</html>"))
	}))
	defer blocked.Close()

	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sitemapBody))
	}))
	defer mirror.Close()

	f := New(Config{MirrorBase: mirror.URL})
	doc, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: blocked.URL + "/sitemap.xml", ExpectXML: true})
	require.NoError(t, err)
	require.True(t, doc.Mirrored)
	require.Equal(t, blocked.URL+"/sitemap.xml", doc.URL)
	require.Contains(t, string(doc.Body), "<urlset")
}

func TestFetcher_ChallengeCheckSkippedForHTMLRequests(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html><h1>Acme</h1></html>"))
	}))
	defer srv.Close()

	f := New(Config{})
	doc, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL + "/job/1"})
	require.NoError(t, err)
	require.Contains(t, string(doc.Body), "Acme")
}

func TestFetcher_NotFoundIsTerminal(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), harvest.FetchRequest{URL: srv.URL + "/sitemap_2026-01-01.xml"})
	require.Error(t, err)

	fe := harvest.Classify(err)
	require.False(t, fe.Retriable)
}
