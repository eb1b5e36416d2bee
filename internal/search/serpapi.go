package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jgourd/leadharvest/internal/harvest"
)

const (
	defaultSerpBaseURL  = "https://serpapi.com/search.json"
	defaultSerpEngine   = "google"
	defaultSerpPageSize = 100
	defaultSerpTimeout  = 20 * time.Second

	maxSerpResponseBytes = 4 << 20
)

// SerpConfig configures the SerpAPI-backed search client.
type SerpConfig struct {
	BaseURL string
	APIKey  string
	Engine  string
	// SitePrefix keeps only result links under this prefix. Empty keeps all.
	SitePrefix string
	PageSize   int
	Timeout    time.Duration
}

func (c SerpConfig) withDefaults() SerpConfig {
	if c.BaseURL == "" {
		c.BaseURL = defaultSerpBaseURL
	}
	if c.Engine == "" {
		c.Engine = defaultSerpEngine
	}
	if c.PageSize <= 0 {
		c.PageSize = defaultSerpPageSize
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultSerpTimeout
	}
	return c
}

// SerpClient implements harvest.SearchClient against a SerpAPI-compatible
// endpoint. Each issued call costs one credit regardless of result count.
type SerpClient struct {
	cfg    SerpConfig
	client *http.Client
	logger *zap.Logger
}

// NewSerpClient builds the client.
func NewSerpClient(cfg SerpConfig, logger *zap.Logger) *SerpClient {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SerpClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type serpResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
}

// Search fetches one result page. Pages are 1-based; the offset parameter
// is derived from the configured page size.
func (c *SerpClient) Search(ctx context.Context, query string, page int) (harvest.SearchPage, error) {
	if page < 1 {
		page = 1
	}
	out := harvest.SearchPage{Query: query, Page: page, Credits: 1}

	params := url.Values{}
	params.Set("engine", c.cfg.Engine)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(c.cfg.PageSize))
	params.Set("start", strconv.Itoa((page-1)*c.cfg.PageSize))
	params.Set("api_key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return out, harvest.Transient(fmt.Errorf("build search request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return out, harvest.Transient(fmt.Errorf("search call: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return out, harvest.AuthInvalid(fmt.Errorf("search source returned %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		return out, harvest.RateLimited(retryAfter(resp.Header), fmt.Errorf("search source returned 429"))
	case resp.StatusCode != http.StatusOK:
		return out, harvest.Transient(fmt.Errorf("search source returned %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSerpResponseBytes))
	if err != nil {
		return out, harvest.Transient(fmt.Errorf("read search response: %w", err))
	}

	var parsed serpResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return out, harvest.Malformed(fmt.Errorf("decode search response: %w", err))
	}
	if parsed.Error != "" {
		// The API reports "no more results" as an in-band error on a 200.
		// The issued call was still metered, so surface an empty page.
		c.logger.Debug("search source reported in-band error",
			zap.String("query", query), zap.Int("page", page),
			zap.String("detail", parsed.Error))
		return out, nil
	}

	for _, r := range parsed.OrganicResults {
		link := normalizeLink(r.Link)
		if link == "" {
			continue
		}
		if c.cfg.SitePrefix != "" && !strings.HasPrefix(link, c.cfg.SitePrefix) {
			continue
		}
		out.Links = append(out.Links, link)
	}
	return out, nil
}

// normalizeLink strips tracking query strings and fragments so identical
// pages harvested via different result decorations collapse together.
func normalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	return link
}

func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
