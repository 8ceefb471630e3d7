// Package completion is the boundary to the external text-generation
// service. The engine treats it as opaque: one request in, generated text
// or an error out. Agent, skill, and external-tool nodes all go through
// this single operation.
package completion

import "context"

// Tier selects a model class without naming a concrete model. The mapping
// to real model ids lives in Config so tests and deployments can override
// it.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierPowerful Tier = "powerful"
)

// ParseTier maps a user-supplied string to a Tier, defaulting to balanced.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierFast, TierBalanced, TierPowerful:
		return Tier(s)
	}
	return TierBalanced
}

// Request is one completion exchange.
type Request struct {
	// System is the instruction preamble. May be empty.
	System string
	// Message is the user-facing message.
	Message string
	// Tier selects the model class.
	Tier Tier
	// MaxTokens bounds the response; 0 uses the client's default.
	MaxTokens int
}

// Client performs a single synchronous completion exchange. There is no
// retry or backoff here; retry policy belongs to the caller.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
