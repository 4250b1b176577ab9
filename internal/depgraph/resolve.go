package depgraph

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"codescope/internal/analysis"
	"codescope/internal/project"
)

// jsExtensions are tried, in order, for extensionless relative imports.
var jsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".mts", ".cts"}

// resolver maps import strings to project files through suffix indexes, so
// a lookup costs the depth of the import rather than the size of the tree.
type resolver struct {
	files map[string]bool
	// stems maps every path-segment suffix of an extensionless file path
	// to the files carrying it.
	stems map[string][]string
	// dirs maps every path-segment suffix of a directory to the
	// directories carrying it.
	dirs map[string][]string
	// dirFiles lists the non-test files of each directory.
	dirFiles map[string][]string
	goModule string
}

func newResolver(root string, files []*analysis.SourceFile) *resolver {
	r := &resolver{
		files:    make(map[string]bool, len(files)),
		stems:    make(map[string][]string),
		dirs:     make(map[string][]string),
		dirFiles: make(map[string][]string),
		goModule: readGoModule(root),
	}
	seenDir := make(map[string]bool)
	for _, f := range files {
		r.files[f.Path] = true
		stem := strings.TrimSuffix(f.Path, path.Ext(f.Path))
		for _, s := range suffixes(stem) {
			r.stems[s] = append(r.stems[s], f.Path)
		}

		dir := path.Dir(f.Path)
		if !project.IsTestPath(f.Path) {
			r.dirFiles[dir] = append(r.dirFiles[dir], f.Path)
		}
		if !seenDir[dir] {
			seenDir[dir] = true
			for _, s := range suffixes(dir) {
				r.dirs[s] = append(r.dirs[s], dir)
			}
		}
	}
	for _, list := range r.dirFiles {
		sort.Strings(list)
	}
	return r
}

// readGoModule returns the module path declared in root/go.mod, if any.
func readGoModule(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// suffixes returns "a/b/c", "b/c" and "c" for "a/b/c".
func suffixes(p string) []string {
	if p == "." || p == "" {
		return nil
	}
	out := []string{p}
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, p[i+1:])
		}
	}
	return out
}

// resolve returns the project files an import in from refers to.
func (r *resolver) resolve(from string, lang project.Language, imp string) []string {
	imp = strings.TrimSpace(imp)
	if imp == "" {
		return nil
	}
	var out []string
	switch lang.Family() {
	case project.LangGo:
		out = r.resolveGo(imp)
	case project.LangTypeScript, project.LangJavaScript:
		out = r.resolveJS(from, imp)
	case project.LangPython:
		out = r.resolvePython(from, imp)
	case project.LangRust:
		out = r.resolveRust(from, imp)
	case project.LangJava, project.LangKotlin:
		out = r.resolveQualified(imp)
	}
	return without(out, from)
}

func (r *resolver) resolveGo(imp string) []string {
	if r.goModule != "" {
		if imp == r.goModule {
			return r.dirFiles["."]
		}
		if rest, ok := strings.CutPrefix(imp, r.goModule+"/"); ok {
			return r.dirFiles[rest]
		}
		return nil
	}
	// Without go.mod, the longest directory suffix of the import wins
	segs := strings.Split(imp, "/")
	for i := range segs {
		if dirs := r.dirs[strings.Join(segs[i:], "/")]; len(dirs) == 1 {
			return r.dirFiles[dirs[0]]
		}
	}
	return nil
}

func (r *resolver) resolveJS(from, imp string) []string {
	if !strings.HasPrefix(imp, ".") {
		return nil // package import
	}
	base := path.Join(path.Dir(from), imp)
	if r.files[base] {
		return []string{base}
	}
	trimmed := strings.TrimSuffix(base, path.Ext(base))
	for _, candidate := range []string{base, trimmed, base + "/index"} {
		for _, ext := range jsExtensions {
			if r.files[candidate+ext] {
				return []string{candidate + ext}
			}
		}
	}
	return nil
}

func (r *resolver) resolvePython(from, imp string) []string {
	dots := len(imp) - len(strings.TrimLeft(imp, "."))
	mod := strings.ReplaceAll(imp[dots:], ".", "/")
	if dots > 0 {
		dir := path.Dir(from)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		target := path.Join(dir, mod)
		for _, candidate := range []string{target + ".py", target + "/__init__.py"} {
			if r.files[candidate] {
				return []string{candidate}
			}
		}
		return nil
	}
	if out := r.unique(mod); out != nil {
		return out
	}
	return r.unique(mod + "/__init__")
}

func (r *resolver) resolveRust(from, imp string) []string {
	if i := strings.Index(imp, "::{"); i >= 0 {
		imp = imp[:i]
	}
	segs := strings.Split(imp, "::")
	switch segs[0] {
	case "crate":
		segs = segs[1:]
	case "self":
		segs = segs[1:]
		// Out-of-line modules live next to the declaring file
		dir := path.Dir(from)
		for _, candidate := range []string{path.Join(dir, path.Join(segs...)) + ".rs", path.Join(dir, path.Join(segs...), "mod.rs")} {
			if r.files[candidate] {
				return []string{candidate}
			}
		}
	case "super":
		segs = segs[1:]
	case "std", "core", "alloc":
		return nil
	}
	// The last segments may name items inside the module, so shorten until a file matches
	for n := len(segs); n > 0; n-- {
		mod := strings.Join(segs[:n], "/")
		if out := r.unique(mod); out != nil {
			return out
		}
		if out := r.unique(mod + "/mod"); out != nil {
			return out
		}
	}
	return nil
}

func (r *resolver) resolveQualified(imp string) []string {
	imp = strings.TrimPrefix(imp, "static ")
	if wildcard, ok := strings.CutSuffix(imp, ".*"); ok {
		if dirs := r.dirs[strings.ReplaceAll(wildcard, ".", "/")]; len(dirs) == 1 {
			return r.dirFiles[dirs[0]]
		}
		return nil
	}
	segs := strings.Split(imp, ".")
	for n := len(segs); n > 0; n-- {
		if out := r.unique(strings.Join(segs[:n], "/")); out != nil {
			return out
		}
	}
	return nil
}

// unique returns the file matching stem suffix s, or nil if none or several do.
func (r *resolver) unique(s string) []string {
	if files := r.stems[s]; len(files) == 1 {
		return files
	}
	return nil
}

func without(list []string, drop string) []string {
	out := list[:0:0]
	for _, p := range list {
		if p != drop {
			out = append(out, p)
		}
	}
	return out
}
