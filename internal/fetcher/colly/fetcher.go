// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/jgourd/leadharvest/internal/harvest"
)

const (
	defaultTimeout   = 25 * time.Second
	defaultBodyCap   = 8 << 20
	challengeWindow  = 512
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
	// MirrorBase, when set, is prefixed to a blocked URL to retry the fetch
	// through a read-only mirror (e.g. "https://r.jina.ai/").
	MirrorBase string
}

// Fetcher performs one bounded retrieval per call using a cloned Colly
// collector. It never follows retries itself; wrap it with
// harvest.NewRetryingFetcher for that.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultBodyCap
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET and applies the content sanity check.
// A challenge page where XML was expected triggers one retry through the
// mirror transport before the fetch fails as malformed.
func (f *Fetcher) Fetch(ctx context.Context, request harvest.FetchRequest) (harvest.Document, error) {
	doc, err := f.visit(ctx, request.URL)
	if err != nil {
		return harvest.Document{}, err
	}

	serr := f.sanity(request, doc)
	if serr == nil {
		return doc, nil
	}
	if f.cfg.MirrorBase == "" {
		return harvest.Document{}, serr
	}

	mirrored, merr := f.visit(ctx, f.mirrorURL(request.URL))
	if merr != nil {
		return harvest.Document{}, serr
	}
	mirrored.URL = request.URL
	mirrored.Mirrored = true
	if err := f.sanity(request, mirrored); err != nil {
		return harvest.Document{}, err
	}
	return mirrored, nil
}

func (f *Fetcher) visit(ctx context.Context, url string) (harvest.Document, error) {
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	// One extra byte so a truncated body is distinguishable from one that
	// fit exactly.
	collector.MaxBodySize = f.cfg.MaxBodyBytes + 1

	var (
		result   harvest.Document
		fetchErr error
	)
	start := time.Now()

	collector.OnResponse(func(r *colly.Response) {
		result = harvest.Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = classifyResponse(r, err)
	})

	if err := f.runCollector(ctx, collector, url); err != nil {
		return harvest.Document{}, err
	}
	if fetchErr != nil {
		return harvest.Document{}, fetchErr
	}
	if result.StatusCode == 0 {
		return harvest.Document{}, harvest.Transient(fmt.Errorf("no response received for %s", url))
	}
	if len(result.Body) > f.cfg.MaxBodyBytes {
		return harvest.Document{}, harvest.Oversized(len(result.Body), f.cfg.MaxBodyBytes)
	}
	return result, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			var fe *harvest.FetchError
			if errors.As(err, &fe) {
				return err
			}
			return harvest.Transient(fmt.Errorf("visit %s: %w", url, err))
		}
		return nil
	}
}

func (f *Fetcher) sanity(request harvest.FetchRequest, doc harvest.Document) error {
	if len(bytes.TrimSpace(doc.Body)) == 0 {
		return harvest.Malformed(fmt.Errorf("empty body from %s", request.URL))
	}
	if request.ExpectXML && looksLikeChallenge(doc.Body) {
		return harvest.Malformed(fmt.Errorf("challenge page where XML was expected at %s", request.URL))
	}
	return nil
}

func (f *Fetcher) mirrorURL(raw string) string {
	return strings.TrimSuffix(f.cfg.MirrorBase, "/") + "/" + raw
}

// looksLikeChallenge reports whether an HTML document sits where XML should
// be. Sources behind anti-bot walls answer sitemap requests with an
// interstitial page.
func looksLikeChallenge(body []byte) bool {
	head := body
	if len(head) > challengeWindow {
		head = head[:challengeWindow]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<html"))
}

func classifyResponse(r *colly.Response, err error) error {
	status := 0
	if r != nil {
		status = r.StatusCode
	}
	switch {
	case status == http.StatusTooManyRequests:
		return harvest.RateLimited(retryAfter(r), err)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return harvest.AuthInvalid(fmt.Errorf("status %d: %w", status, err))
	case status == http.StatusNotFound || status == http.StatusGone:
		// Absent documents are expected (synthesized sitemap paths); no
		// point burning the retry budget on them.
		return &harvest.FetchError{Kind: harvest.KindTransient, Err: fmt.Errorf("status %d: %w", status, err)}
	default:
		return harvest.Transient(fmt.Errorf("status %d: %w", status, err))
	}
}

func retryAfter(r *colly.Response) time.Duration {
	if r == nil || r.Headers == nil {
		return 0
	}
	secs, err := strconv.Atoi(r.Headers.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
