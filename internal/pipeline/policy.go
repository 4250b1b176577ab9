package pipeline

import (
	"time"

	"codescope/internal/analysis"
	"codescope/internal/config"
)

// Policy is the failure policy of one stage.
type Policy struct {
	Required bool          `json:"required"`
	Timeout  time.Duration `json:"timeout"`
}

// DefaultPolicies are the built-in policies. Complexity and the graph feed
// every downstream component, so they are required; the others degrade.
var DefaultPolicies = map[analysis.StageID]Policy{
	analysis.StageComplexity: {Required: true, Timeout: 60 * time.Second},
	analysis.StageGraph:      {Required: true, Timeout: 60 * time.Second},
	analysis.StageChurn:      {Required: false, Timeout: 30 * time.Second},
	analysis.StageDebt:       {Required: false, Timeout: 30 * time.Second},
	analysis.StageDeadCode:   {Required: false, Timeout: 60 * time.Second},
	analysis.StageDuplicates: {Required: false, Timeout: 120 * time.Second},
}

// fallbackPolicy applies to stages registered without a default.
var fallbackPolicy = Policy{Required: false, Timeout: 60 * time.Second}

// PolicyFor resolves the policy of id, applying config overrides.
func PolicyFor(id analysis.StageID, cfg *config.Config) Policy {
	p, ok := DefaultPolicies[id]
	if !ok {
		p = fallbackPolicy
	}
	if cfg == nil {
		return p
	}
	if o, ok := cfg.Pipeline.Stages[string(id)]; ok {
		if o.Required != nil {
			p.Required = *o.Required
		}
		if o.TimeoutMs > 0 {
			p.Timeout = time.Duration(o.TimeoutMs) * time.Millisecond
		}
	}
	return p
}
