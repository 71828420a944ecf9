package bilibili

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"lingoflow/internal/services"
)

const (
	defaultSearchBase = "https://search.bilibili.com/all"
	defaultUserAgent  = "Mozilla/5.0"
	defaultLimit      = 20
	requestTimeout    = 10 * time.Second
)

// SearchResult is one candidate from the search results page.
type SearchResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Client scrapes the Bilibili search page for duplicate candidates.
type Client struct {
	searchBase string
	userAgent  string
	limit      int
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSearchBase overrides the search page URL (useful for tests).
func WithSearchBase(base string) Option {
	return func(c *Client) {
		if base = strings.TrimSpace(base); base != "" {
			c.searchBase = base
		}
	}
}

// WithLimit caps the number of candidates returned per query.
func WithLimit(limit int) Option {
	return func(c *Client) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// NewClient constructs a search client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		searchBase: defaultSearchBase,
		userAgent:  defaultUserAgent,
		limit:      defaultLimit,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Query fetches the search page for the given text and extracts candidate
// (title, URL) pairs. Entries with unusable markup are skipped rather than
// failing the whole lookup.
func (c *Client) Query(ctx context.Context, text string) ([]SearchResult, error) {
	endpoint := c.searchBase + "?keyword=" + url.QueryEscape(text)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("bilibili query: new request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "bilibili", "query", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrTransient, "bilibili", "query",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bilibili query: parse page: %w", err)
	}
	return c.extract(doc), nil
}

func (c *Client) extract(doc *goquery.Document) []SearchResult {
	results := make([]SearchResult, 0, c.limit)
	doc.Find("h3.bili-video-card__info--tit").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := strings.TrimSpace(sel.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(sel.Text())
		}
		if title == "" {
			return true
		}
		results = append(results, SearchResult{Title: title, URL: videoLink(sel)})
		return len(results) < c.limit
	})
	return results
}

// videoLink locates the watch URL for a result card, first within the card
// container and then on an enclosing anchor. A missing link yields an empty
// URL rather than dropping the candidate title.
func videoLink(sel *goquery.Selection) string {
	linkSelector := `a[href^="//www.bilibili.com/video/"], a[href^="https://www.bilibili.com/video/"]`
	if card := sel.Closest("div.bili-video-card"); card.Length() > 0 {
		if href, ok := card.Find(linkSelector).First().Attr("href"); ok {
			return normalizeHref(href)
		}
	}
	if anchor := sel.Closest(linkSelector); anchor.Length() > 0 {
		if href, ok := anchor.Attr("href"); ok {
			return normalizeHref(href)
		}
	}
	return ""
}

func normalizeHref(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	return href
}
