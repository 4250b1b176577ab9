package report

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"codescope/internal/compression"
	"codescope/internal/version"
)

// SARIF 2.1.0 schema types
// See: https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html

const sarifSchema = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"

// SARIFReport is the top-level SARIF document.
type SARIFReport struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []SARIFRun `json:"runs"`
}

// SARIFRun represents a single analysis run.
type SARIFRun struct {
	Tool        SARIFTool         `json:"tool"`
	Results     []SARIFResult     `json:"results"`
	Invocations []SARIFInvocation `json:"invocations,omitempty"`
}

// SARIFTool describes the analysis tool.
type SARIFTool struct {
	Driver SARIFDriver `json:"driver"`
}

// SARIFDriver describes the primary analysis component.
type SARIFDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	Rules           []SARIFRule `json:"rules,omitempty"`
}

// SARIFRule describes a rule that detected an issue.
type SARIFRule struct {
	ID                   string                  `json:"id"`
	Name                 string                  `json:"name,omitempty"`
	ShortDescription     *SARIFMessage           `json:"shortDescription,omitempty"`
	DefaultConfiguration *SARIFRuleConfiguration `json:"defaultConfiguration,omitempty"`
	Properties           map[string]interface{}  `json:"properties,omitempty"`
}

// SARIFRuleConfiguration describes the default configuration for a rule.
type SARIFRuleConfiguration struct {
	Level string `json:"level,omitempty"` // error, warning, note, none
}

// SARIFResult represents a single finding.
type SARIFResult struct {
	RuleID       string            `json:"ruleId"`
	RuleIndex    int               `json:"ruleIndex"`
	Level        string            `json:"level,omitempty"`
	Message      SARIFMessage      `json:"message"`
	Locations    []SARIFLocation   `json:"locations,omitempty"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
}

// SARIFMessage contains text in various formats.
type SARIFMessage struct {
	Text string `json:"text,omitempty"`
}

// SARIFLocation describes where a result was found.
type SARIFLocation struct {
	PhysicalLocation *SARIFPhysicalLocation `json:"physicalLocation,omitempty"`
}

// SARIFPhysicalLocation identifies a file and region.
type SARIFPhysicalLocation struct {
	ArtifactLocation *SARIFArtifactLocation `json:"artifactLocation,omitempty"`
	Region           *SARIFRegion           `json:"region,omitempty"`
}

// SARIFArtifactLocation identifies a file.
type SARIFArtifactLocation struct {
	URI       string `json:"uri,omitempty"`
	URIBaseID string `json:"uriBaseId,omitempty"`
}

// SARIFRegion identifies a region within a file.
type SARIFRegion struct {
	StartLine int `json:"startLine,omitempty"`
}

// SARIFInvocation describes a single invocation of the tool.
type SARIFInvocation struct {
	ExecutionSuccessful bool                   `json:"executionSuccessful"`
	WorkingDirectory    *SARIFArtifactLocation `json:"workingDirectory,omitempty"`
	Machine             string                 `json:"machine,omitempty"`
}

var ruleDescriptions = map[string]string{
	"risk":       "File has an elevated defect-risk score",
	"graph":      "Files depend on each other in a cycle",
	"duplicates": "Duplicated code",
	"debt":       "Self-admitted technical debt",
	"deadcode":   "Symbol is not reachable from any entry point",
}

// renderSARIF emits every selected item that carries a rule.
func renderSARIF(r *Report) ([]byte, error) {
	var findings []compression.Item
	seen := make(map[string]bool)
	for _, sec := range r.Sections {
		for _, it := range sec.Items {
			if it.Rule != "" && !seen[it.ID] {
				seen[it.ID] = true
				findings = append(findings, it)
			}
		}
	}

	ruleIndex := make(map[string]int)
	var rules []SARIFRule
	for _, it := range findings {
		if _, ok := ruleIndex[it.Rule]; !ok {
			ruleIndex[it.Rule] = -1
			rules = append(rules, SARIFRule{ID: it.Rule})
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	for i := range rules {
		family, name, _ := strings.Cut(rules[i].ID, "/")
		rules[i].Name = name
		rules[i].ShortDescription = &SARIFMessage{Text: ruleDescriptions[family]}
		rules[i].Properties = map[string]interface{}{"tags": []string{family}}
		ruleIndex[rules[i].ID] = i
	}

	results := make([]SARIFResult, 0, len(findings))
	for _, it := range findings {
		res := SARIFResult{
			RuleID:    it.Rule,
			RuleIndex: ruleIndex[it.Rule],
			Level:     it.Level,
			Message:   SARIFMessage{Text: message(it)},
			Fingerprints: map[string]string{
				"codescope/v1": fingerprint(it),
			},
		}
		if it.Path != "" {
			loc := &SARIFPhysicalLocation{
				ArtifactLocation: &SARIFArtifactLocation{URI: it.Path, URIBaseID: "%SRCROOT%"},
			}
			if it.Line > 0 {
				loc.Region = &SARIFRegion{StartLine: it.Line}
			}
			res.Locations = []SARIFLocation{{PhysicalLocation: loc}}
		}
		results = append(results, res)
	}
	for i := range rules {
		rules[i].DefaultConfiguration = &SARIFRuleConfiguration{Level: defaultLevel(results, rules[i].ID)}
	}

	doc := SARIFReport{
		Schema:  sarifSchema,
		Version: "2.1.0",
		Runs: []SARIFRun{
			{
				Tool: SARIFTool{
					Driver: SARIFDriver{
						Name:            version.Name,
						Version:         r.Metadata.Version,
						SemanticVersion: r.Metadata.Version,
						Rules:           rules,
					},
				},
				Results: results,
				Invocations: []SARIFInvocation{
					{
						ExecutionSuccessful: len(r.Metadata.Partial) == 0,
						WorkingDirectory:    &SARIFArtifactLocation{URI: r.Metadata.Root},
						Machine:             runtime.GOOS + "/" + runtime.GOARCH,
					},
				},
			},
		},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal SARIF: %w", err)
	}
	return append(data, '\n'), nil
}

func message(it compression.Item) string {
	if it.Body == "" {
		return it.Title
	}
	return it.Title + ": " + it.Body
}

// fingerprint is stable across runs for the same finding.
func fingerprint(it compression.Item) string {
	return fmt.Sprintf("%016x", xxh3.HashString(fmt.Sprintf("%s:%d:%s:%s", it.Path, it.Line, it.Rule, it.Title)))
}

// defaultLevel is the most severe level among a rule's results.
func defaultLevel(results []SARIFResult, rule string) string {
	rank := map[string]int{"note": 1, "warning": 2, "error": 3}
	best := "note"
	for _, res := range results {
		if res.RuleID == rule && rank[res.Level] > rank[best] {
			best = res.Level
		}
	}
	return best
}
