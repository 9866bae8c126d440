package websearch

import (
	"context"
	"fmt"

	"blackia/compose"
)

// ChatSearcher adapts a Service to the shape the conversation engine expects
// for its web context.
type ChatSearcher struct {
	Service *Service
}

// Search runs the query and converts the hits into prompt snippets. The
// provenance descriptor records which provider answered and how many results
// it returned.
func (c *ChatSearcher) Search(ctx context.Context, query string) ([]compose.Snippet, string, error) {
	resp, err := c.Service.Search(ctx, query)
	if err != nil {
		return nil, "", err
	}
	if len(resp.Results) == 0 {
		return nil, "", nil
	}

	snippets := make([]compose.Snippet, 0, len(resp.Results))
	for _, r := range resp.Results {
		source := r.Source
		if source == "" {
			source = r.URL
		}
		snippets = append(snippets, compose.Snippet{
			Source: source,
			Text:   fmt.Sprintf("%s: %s", r.Title, r.Snippet),
		})
	}

	provenance := fmt.Sprintf("%s: %d results", resp.Provider, len(resp.Results))
	return snippets, provenance, nil
}
