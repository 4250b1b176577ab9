package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"codescope/internal/analysis"
	scopeerrors "codescope/internal/errors"
)

// AllStages is the selector for every registered stage.
const AllStages = "all"

// Registry maps stage identifiers to implementations.
type Registry struct {
	stages map[analysis.StageID]analysis.Stage
}

// NewRegistry registers stages. A duplicate identifier panics: registries
// are assembled at startup.
func NewRegistry(stages ...analysis.Stage) *Registry {
	r := &Registry{stages: make(map[analysis.StageID]analysis.Stage)}
	for _, s := range stages {
		r.Register(s)
	}
	return r
}

// Register adds a stage.
func (r *Registry) Register(s analysis.Stage) {
	if _, dup := r.stages[s.ID()]; dup {
		panic(fmt.Sprintf("pipeline: stage %q registered twice", s.ID()))
	}
	r.stages[s.ID()] = s
}

// Get returns the stage registered under id.
func (r *Registry) Get(id analysis.StageID) (analysis.Stage, bool) {
	s, ok := r.stages[id]
	return s, ok
}

// IDs returns every registered identifier in sorted order.
func (r *Registry) IDs() []analysis.StageID {
	ids := make([]analysis.StageID, 0, len(r.stages))
	for id := range r.stages {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResolveStages turns selector strings into a validated, sorted stage set.
// Each entry may itself be a comma-separated list; an empty include list or
// "all" selects every stage. Unknown identifiers fail with INVALID_OPTIONS.
func (r *Registry) ResolveStages(include, exclude []string) ([]analysis.StageID, error) {
	inc, incAll, err := r.parse(include)
	if err != nil {
		return nil, err
	}
	exc, excAll, err := r.parse(exclude)
	if err != nil {
		return nil, err
	}

	selected := make(map[analysis.StageID]bool)
	if incAll || len(inc) == 0 {
		for id := range r.stages {
			selected[id] = true
		}
	}
	for _, id := range inc {
		selected[id] = true
	}
	if excAll {
		selected = map[analysis.StageID]bool{}
	}
	for _, id := range exc {
		delete(selected, id)
	}

	if len(selected) == 0 {
		return nil, scopeerrors.New(scopeerrors.InvalidOptions, "stage selection is empty", nil)
	}
	ids := make([]analysis.StageID, 0, len(selected))
	for id := range selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *Registry) parse(specs []string) ([]analysis.StageID, bool, error) {
	var ids []analysis.StageID
	all := false
	var unknown []string
	for _, spec := range specs {
		for _, part := range strings.Split(spec, ",") {
			name := strings.ToLower(strings.TrimSpace(part))
			switch {
			case name == "":
			case name == AllStages:
				all = true
			default:
				id := analysis.StageID(name)
				if _, ok := r.stages[id]; !ok {
					unknown = append(unknown, name)
					continue
				}
				ids = append(ids, id)
			}
		}
	}
	if len(unknown) > 0 {
		return nil, false, scopeerrors.New(scopeerrors.InvalidOptions,
			fmt.Sprintf("unknown stage(s): %s (known: %s)", strings.Join(unknown, ", "), r.known()), nil).
			WithDetails(map[string]interface{}{"unknown": unknown})
	}
	return ids, all, nil
}

func (r *Registry) known() string {
	ids := r.IDs()
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
