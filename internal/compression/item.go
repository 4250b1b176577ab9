// Package compression ranks report items by relevance and prunes them to a
// byte budget without ever separating an item from its file.
package compression

import "math"

// Kind identifies what a report item describes.
type Kind string

const (
	KindPublicAPI      Kind = "public_api"
	KindEntryPoint     Kind = "entry_point"
	KindCoreType       Kind = "core_type"
	KindFunction       Kind = "function"
	KindHotspot        Kind = "hotspot"
	KindCycle          Kind = "cycle"
	KindCloneGroup     Kind = "clone_group"
	KindRecommendation Kind = "recommendation"
	KindDebt           Kind = "debt"
	KindContainer      Kind = "container"
)

var baseScores = map[Kind]float64{
	KindPublicAPI:      10,
	KindEntryPoint:     8,
	KindCoreType:       6,
	KindFunction:       5,
	KindHotspot:        7,
	KindCycle:          6,
	KindCloneGroup:     4,
	KindRecommendation: 4,
	KindDebt:           3,
	KindContainer:      1,
}

// BaseScore returns the relevance of a kind before context is applied.
// Functions gain ln(cyclomatic) so complex code ranks higher.
func BaseScore(kind Kind, cyclomatic int) float64 {
	score := baseScores[kind]
	if kind == KindFunction {
		score += math.Log(math.Max(1, float64(cyclomatic)))
	}
	return score
}

// itemOverhead approximates the framing a renderer adds around an item.
const itemOverhead = 16

// Item is one candidate entry of the report.
type Item struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
	// Container is the ID of the item this one belongs under, usually the
	// file container. Empty for top-level items.
	Container string `json:"container,omitempty"`
	// Path is the file whose centrality and debt affect the score.
	Path string `json:"path,omitempty"`
	Line int    `json:"line,omitempty"`
	// Rule names the diagnostic an item reports, if any (debt/fixme,
	// deadcode/zero_refs). Level is its SARIF level.
	Rule  string `json:"rule,omitempty"`
	Level string `json:"level,omitempty"`
	// Term is the identifier used for the IDF bonus.
	Term       string  `json:"term,omitempty"`
	Cyclomatic int     `json:"cyclomatic,omitempty"`
	Score      float64 `json:"score"`
	Size       int     `json:"size"`
	Selected   bool    `json:"selected"`
}

// EstimateSize fills Size from the rendered text when it is unset.
func (it *Item) EstimateSize() int {
	if it.Size <= 0 {
		it.Size = len(it.Title) + len(it.Body) + itemOverhead
	}
	return it.Size
}

// ContainerID is the item ID of a file container.
func ContainerID(path string) string {
	return "file:" + path
}

// NewContainer creates the container item of a file.
func NewContainer(path string) Item {
	return Item{ID: ContainerID(path), Kind: KindContainer, Title: path, Path: path}
}

// IsContainer reports whether the item is a file container.
func (it Item) IsContainer() bool {
	return it.Kind == KindContainer
}

