package compression

import "codescope/internal/config"

// Budget bounds the summed size estimates of the selected items. Callers
// bounding rendered output subtract their own framing first.
type Budget struct {
	// MaxBytes of 0 means unlimited.
	MaxBytes int
}

// Unlimited reports whether the budget accepts everything.
func (b Budget) Unlimited() bool {
	return b.MaxBytes <= 0
}

// BudgetFromConfig reads the output budget; an override above zero wins.
func BudgetFromConfig(cfg *config.Config, override int) Budget {
	if override > 0 {
		return Budget{MaxBytes: override}
	}
	if cfg == nil {
		return Budget{}
	}
	return Budget{MaxBytes: cfg.Output.MaxBytes}
}
