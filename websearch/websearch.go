// Package websearch runs web searches for chat context. DuckDuckGo is
// scraped from its HTML endpoint, Brave goes through its REST API, and any
// JSON endpoint following the {query, max_results} contract can be plugged
// in as a custom provider. Responses are cached in memory with a TTL.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"blackia/config"
)

// ProviderType selects the search backend.
type ProviderType string

const (
	ProviderDuckDuckGo ProviderType = "duckduckgo"
	ProviderBrave      ProviderType = "brave"
	ProviderCustom     ProviderType = "custom"
)

// ProviderConfig describes one search provider.
type ProviderConfig struct {
	ID      string
	Name    string
	Type    ProviderType
	APIKey  string
	BaseURL string
}

// Result is one search hit.
type Result struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Snippet       string `json:"snippet"`
	Source        string `json:"source,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

// Response is a full search response.
type Response struct {
	Query     string    `json:"query"`
	Results   []Result  `json:"results"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	Cached    bool      `json:"cached"`
}

// Options tune one search.
type Options struct {
	MaxResults int
	Language   string
	Region     string
	SafeSearch bool

	// SnippetMaxChars bounds each result snippet before it reaches the
	// prompt. Provider responses are not trusted to be short.
	SnippetMaxChars int
}

func (o Options) withDefaults() Options {
	if o.MaxResults == 0 {
		o.MaxResults = 5
	}
	if o.SnippetMaxChars == 0 {
		o.SnippetMaxChars = 300
	}
	if o.Language == "" {
		o.Language = "en"
	}
	if o.Region == "" {
		o.Region = "en-us"
	}
	return o
}

const (
	duckDuckGoURL = "https://html.duckduckgo.com/html/"
	braveURL      = "https://api.search.brave.com/res/v1/web/search"

	browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// fetchedPageMaxChars caps extracted page text, matching the attachment
	// bound.
	fetchedPageMaxChars = 10000
)

// Service executes searches against one configured provider.
type Service struct {
	provider ProviderConfig
	opts     Options
	client   *http.Client
	cache    *searchCache
	cacheTTL time.Duration

	// endpoint overrides for tests; empty means the real services.
	duckDuckGoURL string
	braveURL      string
}

// NewService creates a search service with a 1-hour response cache.
func NewService(provider ProviderConfig, opts Options) *Service {
	return &Service{
		provider: provider,
		opts:     opts.withDefaults(),
		client:   &http.Client{Timeout: 10 * time.Second},
		cache:    newSearchCache(),
		cacheTTL: time.Hour,
	}
}

// SetCacheTTL changes the cache lifetime; zero disables caching.
func (s *Service) SetCacheTTL(ttl time.Duration) {
	s.cacheTTL = ttl
}

// ClearCache drops every cached response.
func (s *Service) ClearCache() {
	s.cache.clear()
}

// Search runs one query against the configured provider. Cached responses
// come back with Cached set.
func (s *Service) Search(ctx context.Context, query string) (Response, error) {
	cacheKey := fmt.Sprintf("%s:%s:%d:%s:%s",
		s.provider.ID, query, s.opts.MaxResults, s.opts.Language, s.opts.Region)

	if s.cacheTTL > 0 {
		if cached, ok := s.cache.get(cacheKey); ok {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[WebSearch] cache hit for %q", query)
			}
			return cached, nil
		}
	}

	var results []Result
	var err error
	switch s.provider.Type {
	case ProviderDuckDuckGo:
		results, err = s.searchDuckDuckGo(ctx, query)
	case ProviderBrave:
		if s.provider.APIKey == "" {
			return Response{}, fmt.Errorf("brave provider requires an API key")
		}
		results, err = s.searchBrave(ctx, query)
	case ProviderCustom:
		if s.provider.BaseURL == "" {
			return Response{}, fmt.Errorf("custom provider requires a base URL")
		}
		results, err = s.searchCustom(ctx, query)
	default:
		return Response{}, fmt.Errorf("unsupported provider type: %s", s.provider.Type)
	}
	if err != nil {
		return Response{}, err
	}

	for i := range results {
		results[i].Snippet, _ = truncateChars(results[i].Snippet, s.opts.SnippetMaxChars)
	}

	resp := Response{
		Query:     query,
		Results:   results,
		Provider:  s.provider.Name,
		Timestamp: time.Now(),
	}
	if s.cacheTTL > 0 && len(results) > 0 {
		s.cache.set(cacheKey, resp, s.cacheTTL)
	}
	return resp, nil
}

func (s *Service) searchDuckDuckGo(ctx context.Context, query string) ([]Result, error) {
	endpoint := s.duckDuckGoURL
	if endpoint == "" {
		endpoint = duckDuckGoURL
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("kl", strings.ToLower(s.opts.Region))
	params.Set("t", "h_")
	if s.opts.SafeSearch {
		params.Set("kp", "1")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse duckduckgo response: %w", err)
	}

	var results []Result
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(results) >= s.opts.MaxResults {
			return false
		}

		link := sel.Find(".result__a")
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").Text())
		href, _ := link.Attr("href")
		href = unwrapRedirect(href, strings.TrimSpace(sel.Find(".result__url").Text()))

		if title == "" || href == "" || snippet == "" {
			return true
		}
		parsed, err := url.Parse(href)
		if err != nil || parsed.Hostname() == "" {
			return true
		}

		results = append(results, Result{
			Title:   title,
			URL:     href,
			Snippet: snippet,
			Source:  strings.TrimPrefix(parsed.Hostname(), "www."),
		})
		return true
	})
	return results, nil
}

// unwrapRedirect extracts the target from DuckDuckGo's /l/?uddg=... redirect
// links, falling back to the displayed URL.
func unwrapRedirect(href, displayed string) string {
	if !strings.HasPrefix(href, "/l/?") {
		return href
	}
	params, err := url.ParseQuery(href[len("/l/?"):])
	if err == nil {
		if target := params.Get("uddg"); target != "" {
			return target
		}
	}
	if displayed != "" && !strings.HasPrefix(displayed, "http") {
		return "https://" + displayed
	}
	return displayed
}

func (s *Service) searchBrave(ctx context.Context, query string) ([]Result, error) {
	endpoint := s.braveURL
	if endpoint == "" {
		endpoint = braveURL
	}

	safeSearch := "off"
	if s.opts.SafeSearch {
		safeSearch = "strict"
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(s.opts.MaxResults))
	params.Set("search_lang", s.opts.Language)
	params.Set("safesearch", safeSearch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.provider.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("brave request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("brave returned status %d", resp.StatusCode)
	}

	var payload struct {
		Web struct {
			Results []struct {
				Title       string `json:"title"`
				URL         string `json:"url"`
				Description string `json:"description"`
				Age         string `json:"age"`
			} `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode brave response: %w", err)
	}

	var results []Result
	for _, r := range payload.Web.Results {
		parsed, err := url.Parse(r.URL)
		if err != nil {
			continue
		}
		results = append(results, Result{
			Title:         r.Title,
			URL:           r.URL,
			Snippet:       r.Description,
			Source:        strings.TrimPrefix(parsed.Hostname(), "www."),
			PublishedDate: r.Age,
		})
	}
	return results, nil
}

func (s *Service) searchCustom(ctx context.Context, query string) ([]Result, error) {
	body, err := json.Marshal(map[string]any{
		"query":       query,
		"max_results": s.opts.MaxResults,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.provider.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("custom provider request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("custom provider returned status %d", resp.StatusCode)
	}

	var payload struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Snippet     string `json:"snippet"`
			Description string `json:"description"`
			Source      string `json:"source"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode custom provider response: %w", err)
	}

	results := make([]Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		snippet := r.Snippet
		if snippet == "" {
			snippet = r.Description
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: snippet,
			Source:  r.Source,
		})
	}
	return results, nil
}

// FetchURLContent downloads a page and returns its visible text, capped to
// keep it safe for prompt inclusion.
func (s *Service) FetchURLContent(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "BlackIA/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch of %s returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	doc.Find("script, style").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	text, _ = truncateChars(text, fetchedPageMaxChars)
	return text, nil
}

// truncateChars cuts s after max characters, always on a rune boundary.
func truncateChars(s string, max int) (string, bool) {
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
