// Package websearch adapts Google Custom Search as the optional secondary
// knowledge source. It is queried only when the decision engine selects
// web search.
package websearch

import (
	"context"
	"fmt"
	"net/url"

	customsearch "google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Result is one web search hit.
type Result struct {
	Title   string
	Link    string
	Snippet string
	Source  string
}

// Searcher is the interface consumed by the context builder.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}

// GoogleClient performs searches against the Google Custom Search API.
type GoogleClient struct {
	apiKey   string
	engineID string
}

// NewGoogleClient creates a GoogleClient with the given API key and
// custom search engine ID.
func NewGoogleClient(apiKey, engineID string) *GoogleClient {
	return &GoogleClient{apiKey: apiKey, engineID: engineID}
}

// Search runs one query and returns up to count results in provider order.
func (c *GoogleClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if count <= 0 {
		count = 5
	}

	svc, err := customsearch.NewService(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}

	call := svc.Cse.List().Context(ctx)
	call.Q(query)
	call.Cx(c.engineID)
	call.Num(int64(count))

	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
			Source:  hostOf(item.Link),
		})
	}
	return results, nil
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
