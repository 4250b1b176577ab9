package depgraph

import "strings"

// FileScores folds node scores of any granularity onto files. Function
// nodes add to their file, file nodes map directly and module nodes are
// split evenly across the files of the module.
func FileScores(scores map[string]float64, files []string) map[string]float64 {
	known := make(map[string]bool, len(files))
	byModule := make(map[string][]string)
	for _, f := range files {
		known[f] = true
		m := ModuleOf(f)
		byModule[m] = append(byModule[m], f)
	}

	out := make(map[string]float64, len(files))
	for node, score := range scores {
		switch {
		case strings.Contains(node, "#"):
			out[NodeFile(node)] += score
		case known[node]:
			out[node] += score
		default:
			members := byModule[node]
			for _, f := range members {
				out[f] += score / float64(len(members))
			}
		}
	}
	return out
}
