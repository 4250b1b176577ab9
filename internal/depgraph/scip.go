package depgraph

import (
	"fmt"
	"os"
	"strings"

	scippb "github.com/sourcegraph/scip/bindings/go/scip"
	"google.golang.org/protobuf/proto"
)

// EdgeWeights defines weights for different edge kinds.
type EdgeWeights struct {
	Import    float64 // importer -> imported file
	Call      float64 // caller -> file defining the callee
	Reference float64 // SCIP reference -> file defining the symbol
}

// DefaultEdgeWeights returns the default edge weights.
func DefaultEdgeWeights() EdgeWeights {
	return EdgeWeights{
		Import:    1.0,
		Call:      1.0,
		Reference: 0.8,
	}
}

// loadSCIP reads a SCIP index and returns file-level reference edges between
// documents in keep. Local symbols never cross files and are skipped.
func loadSCIP(indexPath string, keep map[string]bool, weights EdgeWeights) ([]rawEdge, error) {
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, err
	}
	var index scippb.Index
	if err := proto.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("parse SCIP index %s: %w", indexPath, err)
	}

	definitions := make(map[string]string)
	for _, doc := range index.Documents {
		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) != 0 && !isLocal(occ.Symbol) {
				definitions[occ.Symbol] = doc.RelativePath
			}
		}
	}

	var edges []rawEdge
	for _, doc := range index.Documents {
		if !keep[doc.RelativePath] {
			continue
		}
		for _, occ := range doc.Occurrences {
			if occ.SymbolRoles&int32(scippb.SymbolRole_Definition) != 0 || isLocal(occ.Symbol) {
				continue
			}
			target, ok := definitions[occ.Symbol]
			if !ok || target == doc.RelativePath || !keep[target] {
				continue
			}
			edges = append(edges, rawEdge{from: doc.RelativePath, to: target, weight: weights.Reference, kind: "reference"})
		}
	}
	return edges, nil
}

func isLocal(symbol string) bool {
	return symbol == "" || strings.HasPrefix(symbol, "local ")
}
