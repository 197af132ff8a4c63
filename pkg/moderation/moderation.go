// Package moderation gates successful generations behind the external
// content-moderation collaborator. The moderation decision itself is not
// made here; this package owns the policy applied to the verdict.
package moderation

import (
	"context"
	"fmt"
)

// Moderator is the external moderation collaborator.
type Moderator interface {
	ModerateText(ctx context.Context, text string) (Verdict, error)
}

// Func adapts a plain function to the Moderator interface.
type Func func(ctx context.Context, text string) (Verdict, error)

func (f Func) ModerateText(ctx context.Context, text string) (Verdict, error) {
	return f(ctx, text)
}

// Verdict is the moderation outcome for one payload.
type Verdict struct {
	Flagged    bool     `json:"flagged"`
	Categories []string `json:"categories,omitempty"`
	Confidence float64  `json:"confidence"`
}

// PolicyViolationError reports a generation rejected by the gate. The
// generation happened and was paid for; the committed cost is not refunded.
type PolicyViolationError struct {
	Verdict Verdict
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("moderation: content flagged (confidence %.2f, categories %v)",
		e.Verdict.Confidence, e.Verdict.Categories)
}

// Gate applies the confidence-threshold policy on top of a Moderator.
type Gate struct {
	moderator Moderator
	threshold float64
}

// NewGate creates a gate. The threshold must be within 0-1.
func NewGate(m Moderator, confidenceThreshold float64) (*Gate, error) {
	if m == nil {
		return nil, fmt.Errorf("moderation: moderator is required")
	}
	if confidenceThreshold < 0 || confidenceThreshold > 1 {
		return nil, fmt.Errorf("moderation: confidence threshold %.2f outside 0-1", confidenceThreshold)
	}
	return &Gate{moderator: m, threshold: confidenceThreshold}, nil
}

// Check moderates text and returns a *PolicyViolationError when it is
// flagged at or above the configured confidence. The verdict is returned
// alongside the error so callers can attach it to results either way.
// A failing moderation service fails closed: the generation is not released.
func (g *Gate) Check(ctx context.Context, text string) (*Verdict, error) {
	v, err := g.moderator.ModerateText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("moderation: %w", err)
	}
	if v.Flagged && v.Confidence >= g.threshold {
		flaggedTotal.Inc()
		return &v, &PolicyViolationError{Verdict: v}
	}
	return &v, nil
}
