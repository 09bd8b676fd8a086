package research

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

	"voxcrew/pkg/logx"
)

// Result is one web-search hit. Fields are plain text sourced externally;
// missing values get placeholder text rather than failing the turn.
type Result struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// Data is the research payload for one conversation turn. Produced at most
// once per turn and immutable afterwards; threading it into a later turn is
// the caller's explicit choice.
type Data struct {
	Query          string   `json:"query"`
	Results        []Result `json:"results"`        // length 1, for display
	AllResults     []Result `json:"allResults"`     // up to 5, metadata only
	TotalAvailable int      `json:"totalAvailable"` // count reported by the engine
	Summary        string   `json:"summary"`        // flattened top result for prompts
}

// Searcher is the web-search collaborator. Failures must be catchable
// without crashing the caller.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// maxResults bounds the metadata slice carried in Data.
const maxResults = 5

// Client queries the Brave Search REST API.
type Client struct {
	httpClient *http.Client
	logger     *logx.Logger
	apiKey     string
	baseURL    string
}

// DefaultBaseURL is the production Brave web-search endpoint.
const DefaultBaseURL = "https://api.search.brave.com/res/v1/web/search"

// NewClient creates a search client. The base URL is overridable for tests.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logx.NewLogger("research"),
		apiKey:     apiKey,
		baseURL:    baseURL,
	}
}

// braveResponse mirrors the subset of the Brave API response we consume.
type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search implements Searcher against the Brave API.
func (c *Client) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search API key not configured")
	}

	endpoint := c.baseURL + "?q=" + url.QueryEscape(query) + "&count=" + strconv.Itoa(count)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for i := range parsed.Web.Results {
		r := &parsed.Web.Results[i]
		results = append(results, Result{
			Title:       orPlaceholder(r.Title, "Untitled result"),
			URL:         orPlaceholder(r.URL, "No URL available"),
			Description: orPlaceholder(r.Description, "No description available"),
		})
	}

	c.logger.Debug("Search %q returned %d results", query, len(results))
	return results, nil
}

// BuildData shapes raw search results into the per-turn research payload:
// one display result, up to five metadata entries, and a flattened summary
// of the top result for prompt inclusion. Returns nil for empty input.
func BuildData(query string, results []Result) *Data {
	if len(results) == 0 {
		return nil
	}

	all := results
	if len(all) > maxResults {
		all = all[:maxResults]
	}

	top := all[0]
	summary := fmt.Sprintf("%s — %s (%s)", top.Title, top.Description, top.URL)

	return &Data{
		Query:          query,
		Results:        []Result{top},
		AllResults:     all,
		TotalAvailable: len(results),
		Summary:        summary,
	}
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
