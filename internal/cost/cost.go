package cost

import (
	"math"
	"strings"
	"unicode/utf8"

	"bookdigest/internal/core"
)

// ModelPricing represents per-model token pricing.
type ModelPricing struct {
	Model                 string
	InputCostPer1MTokens  float64 // Cost per 1M input tokens in USD
	OutputCostPer1MTokens float64 // Cost per 1M output tokens in USD
}

// PricingTable contains Gemini pricing as of 2025.
var PricingTable = map[string]ModelPricing{
	"gemini-2.5-pro": {
		Model:                 "gemini-2.5-pro",
		InputCostPer1MTokens:  1.25,
		OutputCostPer1MTokens: 10.00,
	},
	"gemini-2.5-flash": {
		Model:                 "gemini-2.5-flash",
		InputCostPer1MTokens:  0.30,
		OutputCostPer1MTokens: 2.50,
	},
	"gemini-2.0-flash": {
		Model:                 "gemini-2.0-flash",
		InputCostPer1MTokens:  0.10,
		OutputCostPer1MTokens: 0.40,
	},
}

const defaultPricingModel = "gemini-2.5-flash"

// EstimateTokenCount provides a rough estimation of token count for text.
// Roughly 1 token per 3.5 characters, with a buffer for special tokens.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")

	charCount := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(charCount) / 3.5))
}

// UsageCost converts accumulated token usage for a model into USD.
// Unknown models fall back to flash pricing.
func UsageCost(model string, usage core.TokenUsage) float64 {
	pricing, ok := PricingTable[model]
	if !ok {
		pricing = PricingTable[defaultPricingModel]
	}
	in := float64(usage.InputTokens) / 1e6 * pricing.InputCostPer1MTokens
	out := float64(usage.OutputTokens) / 1e6 * pricing.OutputCostPer1MTokens
	return in + out
}
