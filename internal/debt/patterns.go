package debt

import (
	"regexp"

	"codescope/internal/analysis"
)

// Category classifies a debt comment.
type Category string

const (
	CategoryDesign      Category = "design"
	CategoryDefect      Category = "defect"
	CategoryRequirement Category = "requirement"
	CategoryTest        Category = "test"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
)

// Pattern defines one debt marker.
type Pattern struct {
	Category    Category
	Severity    analysis.Severity
	Regex       *regexp.Regexp
	Description string
}

// BuiltinPatterns are tried in order; the first match classifies the comment.
var BuiltinPatterns = []Pattern{
	{
		Category:    CategoryDesign,
		Severity:    analysis.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)\b(hack|kludge|smell)\b`),
		Description: "Architectural compromise",
	},
	{
		Category:    CategoryDefect,
		Severity:    analysis.SeverityHigh,
		Regex:       regexp.MustCompile(`(?i)\b(fixme|broken|bug)\b`),
		Description: "Known defect",
	},
	{
		Category:    CategoryRequirement,
		Severity:    analysis.SeverityLow,
		Regex:       regexp.MustCompile(`(?i)\btodo\b`),
		Description: "Missing feature",
	},
	{
		Category:    CategorySecurity,
		Severity:    analysis.SeverityCritical,
		Regex:       regexp.MustCompile(`(?i)\b(security|vuln|cve)\b`),
		Description: "Security concern",
	},
	{
		Category:    CategoryPerformance,
		Severity:    analysis.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)\bperformance\s+(issue|problem)\b`),
		Description: "Performance issue",
	},
	{
		Category:    CategoryTest,
		Severity:    analysis.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)\btest.*\b(disabled|skipped|failing)\b`),
		Description: "Test debt",
	},
	{
		Category:    CategoryDesign,
		Severity:    analysis.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)\btechnical\s+debt\b`),
		Description: "Explicit technical debt",
	},
	{
		Category:    CategoryDesign,
		Severity:    analysis.SeverityMedium,
		Regex:       regexp.MustCompile(`(?i)\bcode\s+smell\b`),
		Description: "Code smell",
	},
	{
		Category:    CategoryDesign,
		Severity:    analysis.SeverityLow,
		Regex:       regexp.MustCompile(`(?i)\b(workaround|temp|temporary)\b`),
		Description: "Temporary solution",
	},
	{
		Category:    CategoryPerformance,
		Severity:    analysis.SeverityLow,
		Regex:       regexp.MustCompile(`(?i)\b(optimize|slow)\b`),
		Description: "Performance optimization needed",
	},
}

// sensitiveFunction marks code where a debt note is more dangerous.
var sensitiveFunction = regexp.MustCompile(`(?i)(auth|crypt|password|secret|token|sanitize|validate|permission)`)

// Classify returns the first pattern matching text.
func Classify(text string) (Pattern, bool) {
	for _, p := range BuiltinPatterns {
		if p.Regex.MatchString(text) {
			return p, true
		}
	}
	return Pattern{}, false
}
