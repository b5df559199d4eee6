package search

import (
	"context"
	"fmt"
)

// MockProvider is a search provider for tests and offline runs. Results can
// be preloaded per query; unknown queries return a deterministic placeholder.
type MockProvider struct {
	Results map[string][]Result
	Err     error
	Calls   []string
}

// NewMockProvider creates a mock search provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{Results: make(map[string][]Result)}
}

// GetName returns the name of this provider
func (m *MockProvider) GetName() string {
	return "Mock"
}

// Search returns preloaded results for the query, or a placeholder result.
func (m *MockProvider) Search(ctx context.Context, query string, config Config) ([]Result, error) {
	m.Calls = append(m.Calls, query)
	if m.Err != nil {
		return nil, m.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if results, ok := m.Results[query]; ok {
		if config.MaxResults > 0 && len(results) > config.MaxResults {
			results = results[:config.MaxResults]
		}
		return results, nil
	}
	return []Result{{
		URL:     fmt.Sprintf("https://example.com/search?q=%s", query),
		Title:   fmt.Sprintf("Mock result for %q", query),
		Snippet: "Placeholder search result.",
		Domain:  "example.com",
		Rank:    1,
	}}, nil
}
