// Package duplicates detects cloned code fragments: exact copies, renamed
// copies and near-miss copies found through MinHash locality-sensitive
// hashing.
package duplicates

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/iter"
	"github.com/zeebo/xxh3"

	"codescope/internal/analysis"
	"codescope/internal/config"
)

// Defaults mirror config.DefaultConfig().Duplicates.
const (
	DefaultMinTokens   = 50
	DefaultThreshold   = 0.70
	DefaultShingleSize = 5
	DefaultNumHashes   = 200
	DefaultBands       = 20
)

// Options tunes detection.
type Options struct {
	MinTokens   int
	Threshold   float64
	ShingleSize int
	NumHashes   int
	Bands       int
}

// OptionsFrom reads the duplicates section, filling zero values.
func OptionsFrom(cfg *config.Config) Options {
	opts := Options{}
	if cfg != nil {
		d := cfg.Duplicates
		opts = Options{MinTokens: d.MinTokens, Threshold: d.Threshold, ShingleSize: d.ShingleSize, NumHashes: d.NumHashes, Bands: d.Bands}
	}
	if opts.MinTokens <= 0 {
		opts.MinTokens = DefaultMinTokens
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	if opts.ShingleSize <= 0 {
		opts.ShingleSize = DefaultShingleSize
	}
	if opts.NumHashes <= 0 || opts.Bands <= 0 || opts.NumHashes%opts.Bands != 0 {
		opts.NumHashes, opts.Bands = DefaultNumHashes, DefaultBands
	}
	return opts
}

// Stage is the clone detector.
type Stage struct{}

// NewStage creates the duplicates stage.
func NewStage() *Stage {
	return &Stage{}
}

func (s *Stage) ID() analysis.StageID { return analysis.StageDuplicates }

// Scope is project-wide: clones span files.
func (s *Stage) Scope() analysis.Scope { return analysis.ScopeProject }

type fragment struct {
	analysis.Fragment
	exact   uint64
	renamed uint64
	sig     []uint64
}

type pair struct {
	a, b       int
	kind       analysis.CloneType
	similarity float64
}

// Run extracts function fragments, finds candidate pairs and groups them.
func (s *Stage) Run(ctx context.Context, in *analysis.Input) (*analysis.Output, error) {
	opts := OptionsFrom(in.Config)

	var frags []*fragment
	for _, f := range in.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.AST == nil {
			continue
		}
		abs := f.AbsPath
		if abs == "" {
			abs = filepath.Join(in.Root, filepath.FromSlash(f.Path))
		}
		src, err := os.ReadFile(abs)
		if err != nil {
			in.Logger.Warn("Skipping unreadable file", "path", f.Path, "error", err.Error())
			continue
		}
		frags = append(frags, extract(f, string(src), opts)...)
	}

	// Signatures dominate the cost and are independent per fragment
	iter.ForEach(frags, func(fr **fragment) {
		if ctx.Err() != nil {
			return
		}
		(*fr).sig = signature((*fr).sig, opts.NumHashes)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := group(frags, candidates(frags, opts))
	in.Logger.Debug("Clone detection completed", "fragments", len(frags), "groups", len(groups))
	return &analysis.Output{Clones: groups}, nil
}

// extract cuts one fragment per function, or one for the whole file when no
// function is large enough.
func extract(f *analysis.SourceFile, src string, opts Options) []*fragment {
	lines := strings.SplitAfter(src, "\n")
	var out []*fragment
	for _, fn := range f.AST.Functions {
		if fn.StartLine < 1 || fn.EndLine < fn.StartLine || fn.StartLine > len(lines) {
			continue
		}
		end := min(fn.EndLine, len(lines))
		body := strings.Join(lines[fn.StartLine-1:end], "")
		if fr := newFragment(f, fn.QualifiedName(), fn.StartLine, end, body, opts); fr != nil {
			out = append(out, fr)
		}
	}
	if len(out) == 0 {
		if fr := newFragment(f, "", 1, max(1, f.AST.Lines), src, opts); fr != nil {
			out = append(out, fr)
		}
	}
	return out
}

func newFragment(f *analysis.SourceFile, name string, start, end int, body string, opts Options) *fragment {
	raw := tokenize(body, f.Language)
	if len(raw) < opts.MinTokens {
		return nil
	}
	norm := normalize(raw)
	return &fragment{
		Fragment: analysis.Fragment{
			Path:      f.Path,
			Function:  name,
			StartLine: start,
			EndLine:   end,
			Tokens:    len(raw),
		},
		exact:   hashTokens(raw),
		renamed: hashTokens(norm),
		// Holds the shingles until the signature replaces them
		sig: shingles(norm, opts.ShingleSize),
	}
}

// overlaps rejects nested fragments of the same file.
func overlaps(a, b *fragment) bool {
	return a.Path == b.Path && a.StartLine <= b.EndLine && b.StartLine <= a.EndLine
}

// candidates returns verified pairs, strongest first: exact copies, then
// renamed copies, then LSH band collisions above the threshold.
func candidates(frags []*fragment, opts Options) []pair {
	sort.SliceStable(frags, func(i, j int) bool {
		if frags[i].Path != frags[j].Path {
			return frags[i].Path < frags[j].Path
		}
		return frags[i].StartLine < frags[j].StartLine
	})

	var pairs []pair
	seen := make(map[[2]int]bool)
	add := func(a, b int, kind analysis.CloneType, sim float64) {
		if a > b {
			a, b = b, a
		}
		key := [2]int{a, b}
		if seen[key] || overlaps(frags[a], frags[b]) {
			return
		}
		seen[key] = true
		pairs = append(pairs, pair{a: a, b: b, kind: kind, similarity: sim})
	}

	chain := func(key func(*fragment) uint64, kind analysis.CloneType) {
		buckets := make(map[uint64][]int)
		for i, fr := range frags {
			buckets[key(fr)] = append(buckets[key(fr)], i)
		}
		for _, members := range buckets {
			for _, other := range members[1:] {
				add(members[0], other, kind, 1)
			}
		}
	}
	chain(func(fr *fragment) uint64 { return fr.exact }, analysis.CloneExact)
	chain(func(fr *fragment) uint64 { return fr.renamed }, analysis.CloneRenamed)

	buckets := make(map[uint64][]int)
	for i, fr := range frags {
		for _, k := range bandKeys(fr.sig, opts.Bands) {
			buckets[k] = append(buckets[k], i)
		}
	}
	for _, members := range buckets {
		for x := 0; x < len(members); x++ {
			for y := x + 1; y < len(members); y++ {
				a, b := members[x], members[y]
				if frags[a].renamed == frags[b].renamed {
					continue
				}
				if sim := similarity(frags[a].sig, frags[b].sig); sim >= opts.Threshold {
					add(a, b, analysis.CloneGapped, sim)
				}
			}
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		p, q := pairs[i], pairs[j]
		if p.kind != q.kind {
			return p.kind < q.kind
		}
		if p.similarity != q.similarity {
			return p.similarity > q.similarity
		}
		if p.a != q.a {
			return p.a < q.a
		}
		return p.b < q.b
	})
	return pairs
}

// group unions pairs into clone groups. A group's type is its weakest
// spanning link and its similarity the lowest one.
func group(frags []*fragment, pairs []pair) []analysis.CloneGroup {
	uf := newUnionFind(len(frags))
	type agg struct {
		kind analysis.CloneType
		sim  float64
	}
	links := make(map[int]*agg)
	var spanning []pair
	for _, p := range pairs {
		if uf.union(p.a, p.b) {
			spanning = append(spanning, p)
		}
	}
	for _, p := range spanning {
		root := uf.find(p.a)
		a := links[root]
		if a == nil {
			a = &agg{kind: p.kind, sim: p.similarity}
			links[root] = a
		}
		a.kind = max(a.kind, p.kind)
		a.sim = min(a.sim, p.similarity)
	}

	members := make(map[int][]int)
	for i := range frags {
		root := uf.find(i)
		if links[root] != nil {
			members[root] = append(members[root], i)
		}
	}

	groups := make([]analysis.CloneGroup, 0, len(members))
	for root, idx := range members {
		g := analysis.CloneGroup{
			Type:       links[root].kind,
			Similarity: links[root].sim,
		}
		h := xxh3.New()
		for _, i := range idx {
			g.Fragments = append(g.Fragments, frags[i].Fragment)
			h.WriteString(fmt.Sprintf("%s:%d-%d|", frags[i].Path, frags[i].StartLine, frags[i].EndLine))
		}
		g.ID = fmt.Sprintf("clone-%016x", h.Sum64())
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	return groups
}
