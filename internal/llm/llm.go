package llm

import (
	"context"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"

	"bookdigest/internal/core"
)

const (
	// DefaultModel is the default model for summarization.
	DefaultModel = "gemini-2.5-pro"
	// DefaultLightModel is the cheaper model used for low-signal records.
	DefaultLightModel = "gemini-2.5-flash"
)

// Client wraps the Gemini SDK for structured generation calls.
type Client struct {
	gClient     *genai.Client
	timeout     time.Duration
	maxTokens   int32
	temperature float32
}

// Options configures a new Client.
type Options struct {
	APIKey      string        // Falls back to GEMINI_API_KEY and friends
	Timeout     time.Duration // Per-call timeout; 0 means 60s
	MaxTokens   int32         // Max output tokens; 0 means 4096
	Temperature float32
}

// NewClient creates a Gemini client. A missing API key is a configuration
// error: fatal, never retried.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := opts.APIKey
	if apiKey == "" {
		for _, env := range []string{"GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY"} {
			if apiKey = os.Getenv(env); apiKey != "" {
				break
			}
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or ai.gemini.api_key in the config file")
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	return &Client{
		gClient:     gClient,
		timeout:     opts.Timeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}, nil
}

// GenerateStructured sends a prompt expecting JSON constrained by schema and
// returns the raw JSON text together with the call's token usage.
func (c *Client) GenerateStructured(ctx context.Context, model, prompt string, schema *genai.Schema) (string, core.TokenUsage, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	temp := c.temperature
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
		MaxOutputTokens:  c.maxTokens,
		Temperature:      &temp,
	}

	resp, err := c.gClient.Models.GenerateContent(callCtx, model, contents, config)
	if err != nil {
		return "", core.TokenUsage{}, fmt.Errorf("failed to generate content: %w", err)
	}

	usage := usageFromResponse(resp)
	text := resp.Text()
	if text == "" {
		return "", usage, fmt.Errorf("empty response from model %s", model)
	}
	return text, usage, nil
}

func usageFromResponse(resp *genai.GenerateContentResponse) core.TokenUsage {
	if resp == nil || resp.UsageMetadata == nil {
		return core.TokenUsage{}
	}
	return core.TokenUsage{
		InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
		OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
	}
}
