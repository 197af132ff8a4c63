// Package ai holds token counting and cost estimation. Estimates feed the
// ledger's pre-check; actual cost always comes from the backend adapter.
package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// CountTokens returns the number of tokens in a string for a specific model.
func CountTokens(model, text string) int {
	tkm, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Unknown model: fall back to the cl100k_base encoding.
		tkm, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		// Tokenizer data unavailable (e.g. offline): byte heuristic.
		return len(text)/4 + 1
	}
	return len(tkm.Encode(text, nil, nil))
}

// Pricing is the per-1k-token USD pricing for one backend model.
type Pricing struct {
	InputPer1K  float64 `mapstructure:"input_per_1k" json:"input_per_1k"`
	OutputPer1K float64 `mapstructure:"output_per_1k" json:"output_per_1k"`
}

// EstimateCost prices a prospective call pessimistically: the actual input
// token count plus the largest output the caller allowed.
func EstimateCost(inputTokens, maxOutputTokens int, p Pricing) float64 {
	return float64(inputTokens)/1000.0*p.InputPer1K +
		float64(maxOutputTokens)/1000.0*p.OutputPer1K
}
