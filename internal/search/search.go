package search

import (
	"context"
	"time"
)

// Provider defines the unified interface for search providers used by the
// enrichment step.
type Provider interface {
	// Search performs a search with configuration
	Search(ctx context.Context, query string, config Config) ([]Result, error)

	// GetName returns the name of the search provider
	GetName() string
}

// Config holds configuration for search requests
type Config struct {
	MaxResults int           // Maximum number of results to return
	RateLimit  time.Duration // Minimum gap between consecutive requests
}

// Result represents a unified search result
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Domain  string `json:"domain"`
	Rank    int    `json:"rank"` // Position in search results
}

// ProviderType represents the type of search provider
type ProviderType string

const (
	ProviderTypeDuckDuckGo ProviderType = "duckduckgo"
	ProviderTypeMock       ProviderType = "mock"
)

// NewProvider creates a search provider of the specified type.
func NewProvider(providerType ProviderType) (Provider, error) {
	switch providerType {
	case ProviderTypeDuckDuckGo:
		return NewDuckDuckGoProvider(), nil
	case ProviderTypeMock:
		return NewMockProvider(), nil
	default:
		return nil, ErrUnsupportedProvider
	}
}
