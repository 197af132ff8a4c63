// Package gateway is the resilience and governance core: the fallback
// router that orchestrates circuit breaking, retries, the cost ledger, the
// response cache and the moderation gate, plus the facade callers use.
package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/skathuria/modelgw/pkg/backend"
	"github.com/skathuria/modelgw/pkg/moderation"
)

// GenerationRequest describes one logical generation. Value semantics:
// construct it, hand it to the facade, never mutate it afterwards.
type GenerationRequest struct {
	Prompt string

	// Primary is the preferred backend; Fallbacks are tried in order after
	// it fails or is skipped.
	Primary   string
	Fallbacks []string

	Options  backend.Options
	CallerID string

	// Moderate requests the post-generation moderation gate.
	Moderate bool
}

// Chain returns the full ordered backend chain for the request.
func (r GenerationRequest) Chain() []string {
	chain := make([]string, 0, 1+len(r.Fallbacks))
	chain = append(chain, r.Primary)
	return append(chain, r.Fallbacks...)
}

// Fingerprint is the stable cache key: a sha256 over the normalized prompt,
// the primary backend id and the generation options. It is a pure function
// of the request's semantic content.
func (r GenerationRequest) Fingerprint() string {
	h := sha256.New()
	io.WriteString(h, normalizePrompt(r.Prompt))
	io.WriteString(h, "\x00")
	io.WriteString(h, r.Primary)
	fmt.Fprintf(h, "\x00%d\x00%g\x00%g", r.Options.MaxTokens, r.Options.Temperature, r.Options.TopP)
	return hex.EncodeToString(h.Sum(nil))
}

// normalizePrompt collapses whitespace so trivially reformatted prompts
// share a cache entry.
func normalizePrompt(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// GenerationResult is what callers get back. Immutable once returned.
type GenerationResult struct {
	Payload       []byte              `json:"payload"`
	Backend       string              `json:"backend"`
	CorrelationID string              `json:"correlation_id"`
	TokensIn      int                 `json:"tokens_in"`
	TokensOut     int                 `json:"tokens_out"`
	CostUSD       float64             `json:"cost_usd"`
	Cached        bool                `json:"cached"`
	Moderation    *moderation.Verdict `json:"moderation,omitempty"`
}
