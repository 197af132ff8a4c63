package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skathuria/modelgw/pkg/backend"
)

func TestChain_PrimaryFirstThenFallbacks(t *testing.T) {
	req := GenerationRequest{Primary: "a", Fallbacks: []string{"b", "c"}}
	assert.Equal(t, []string{"a", "b", "c"}, req.Chain())

	solo := GenerationRequest{Primary: "a"}
	assert.Equal(t, []string{"a"}, solo.Chain())
}

func TestFingerprint_StableAcrossWhitespace(t *testing.T) {
	a := GenerationRequest{Prompt: "summarize   this\n\ttext", Primary: "gpt-large"}
	b := GenerationRequest{Prompt: "summarize this text", Primary: "gpt-large"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_PureFunction(t *testing.T) {
	req := GenerationRequest{
		Prompt:  "hello",
		Primary: "gpt-large",
		Options: backend.Options{MaxTokens: 100, Temperature: 0.7},
	}
	assert.Equal(t, req.Fingerprint(), req.Fingerprint())
}

func TestFingerprint_DivergesOnSemanticChanges(t *testing.T) {
	base := GenerationRequest{
		Prompt:  "hello",
		Primary: "gpt-large",
		Options: backend.Options{MaxTokens: 100, Temperature: 0.7, TopP: 0.9},
	}

	prompt := base
	prompt.Prompt = "goodbye"
	assert.NotEqual(t, base.Fingerprint(), prompt.Fingerprint())

	primary := base
	primary.Primary = "gpt-small"
	assert.NotEqual(t, base.Fingerprint(), primary.Fingerprint())

	opts := base
	opts.Options.Temperature = 0.2
	assert.NotEqual(t, base.Fingerprint(), opts.Fingerprint())

	tokens := base
	tokens.Options.MaxTokens = 200
	assert.NotEqual(t, base.Fingerprint(), tokens.Fingerprint())
}

func TestFingerprint_IgnoresFallbacksAndCaller(t *testing.T) {
	a := GenerationRequest{Prompt: "hello", Primary: "gpt-large"}
	b := GenerationRequest{
		Prompt:    "hello",
		Primary:   "gpt-large",
		Fallbacks: []string{"gpt-small"},
		CallerID:  "svc-1",
	}

	// Fallbacks and caller identity do not change what is generated.
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}
