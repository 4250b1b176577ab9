package project

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Pass weights. Each pass is normalized to a share before weighting.
const (
	manifestWeight  = 0.5
	extensionWeight = 0.4
	heuristicWeight = 0.1

	// DefaultMinConfidence is the cut-off below which a language is dropped.
	DefaultMinConfidence = 0.05
	// DefaultHeuristicSample bounds the number of files whose content is sniffed.
	DefaultHeuristicSample = 200

	maxManifestDepth = 2
	sniffBytes       = 2048
)

// Score is one detected language.
type Score struct {
	Language   Language `json:"language"`
	Confidence float64  `json:"confidence"`
	Files      int      `json:"files"`
	Manifests  []string `json:"manifests,omitempty"`
}

// Detection is the ordered detector output.
type Detection struct {
	Languages  []Score `json:"languages"`
	Undetected bool    `json:"undetected,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Primary returns the highest-confidence language, or LangUnknown.
func (d Detection) Primary() Language {
	if len(d.Languages) == 0 {
		return LangUnknown
	}
	return d.Languages[0].Language
}

// Options tunes detection.
type Options struct {
	MinConfidence   float64
	HeuristicSample int
}

type manifestRule struct {
	name     string
	lang     Language
	validate func(root, rel string) (Language, bool)
}

// manifests in priority order
var manifests = []manifestRule{
	{"go.mod", LangGo, nil},
	{"package.json", LangJavaScript, validatePackageJSON},
	{"pnpm-workspace.yaml", LangJavaScript, validatePnpmWorkspace},
	{"Cargo.toml", LangRust, validateCargo},
	{"pyproject.toml", LangPython, validatePyproject},
	{"requirements.txt", LangPython, nil},
	{"setup.py", LangPython, nil},
	{"pom.xml", LangJava, nil},
	{"build.gradle", LangJava, nil},
	{"build.gradle.kts", LangKotlin, nil},
}

var manifestByName = func() map[string]manifestRule {
	m := make(map[string]manifestRule, len(manifests))
	for _, r := range manifests {
		m[r.name] = r
	}
	return m
}()

// Detect scores candidate languages for the tree at root. files are
// slash-separated paths relative to root, as produced by file discovery.
// It never fails: an empty result is reported as Undetected.
func Detect(ctx context.Context, root string, files []string, opts Options) Detection {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = DefaultMinConfidence
	}
	if opts.HeuristicSample <= 0 {
		opts.HeuristicSample = DefaultHeuristicSample
	}

	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	manifestScores := make(map[Language]float64)
	manifestFiles := make(map[Language][]string)
	extScores := make(map[Language]float64)
	fileCounts := make(map[Language]int)
	heurScores := make(map[Language]float64)

	sniffed := 0
	for _, rel := range sorted {
		if ctx.Err() != nil {
			break
		}
		depth := Depth(rel)
		decay := 1.0 / float64(1+depth)

		// Pass 1: manifests
		if rule, ok := manifestByName[path.Base(rel)]; ok && depth <= maxManifestDepth {
			lang, weight := rule.lang, decay
			if rule.validate != nil {
				refined, valid := rule.validate(root, rel)
				lang = refined
				if !valid {
					weight *= 0.5
				}
			}
			manifestScores[lang] += weight
			manifestFiles[lang] = append(manifestFiles[lang], rel)
			continue
		}

		// Pass 2: extension histogram
		lang := LanguageFromPath(rel).Family()
		if lang.Known() {
			w := decay
			if IsTestPath(rel) {
				w *= 0.5
			}
			extScores[lang] += w
			fileCounts[lang]++
		}

		// Pass 3: content heuristics on a bounded sample
		if sniffed < opts.HeuristicSample && (path.Ext(rel) == "" || lang.Known()) {
			sniffed++
			for _, l := range sniff(filepath.Join(root, filepath.FromSlash(rel)), lang) {
				heurScores[l]++
			}
		}
	}

	// A package.json next to TypeScript sources is a TypeScript manifest.
	if manifestScores[LangJavaScript] > 0 && extScores[LangTypeScript] > extScores[LangJavaScript] {
		manifestScores[LangTypeScript] += manifestScores[LangJavaScript]
		manifestFiles[LangTypeScript] = append(manifestFiles[LangTypeScript], manifestFiles[LangJavaScript]...)
		delete(manifestScores, LangJavaScript)
		delete(manifestFiles, LangJavaScript)
	}

	passes := []struct {
		weight float64
		scores map[Language]float64
	}{
		{manifestWeight, manifestScores},
		{extensionWeight, extScores},
		{heuristicWeight, heurScores},
	}

	var activeWeight float64
	totals := make([]float64, len(passes))
	for i, p := range passes {
		for _, v := range p.scores {
			totals[i] += v
		}
		if totals[i] > 0 {
			activeWeight += p.weight
		}
	}

	var result Detection
	if activeWeight == 0 {
		result.Undetected = true
		result.Reason = "no recognizable source files or manifests"
		return result
	}

	candidates := make(map[Language]bool)
	for _, p := range passes {
		for l := range p.scores {
			candidates[l] = true
		}
	}

	for lang := range candidates {
		var conf float64
		for i, p := range passes {
			if totals[i] > 0 {
				conf += p.weight * p.scores[lang] / totals[i]
			}
		}
		conf /= activeWeight
		if conf < opts.MinConfidence {
			continue
		}
		manifestsFor := manifestFiles[lang]
		sort.Strings(manifestsFor)
		result.Languages = append(result.Languages, Score{
			Language:   lang,
			Confidence: conf,
			Files:      fileCounts[lang],
			Manifests:  manifestsFor,
		})
	}

	sort.Slice(result.Languages, func(i, j int) bool {
		a, b := result.Languages[i], result.Languages[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Files != b.Files {
			return a.Files > b.Files
		}
		return a.Language < b.Language
	})

	if len(result.Languages) == 0 {
		result.Undetected = true
		result.Reason = "no language scored above the confidence threshold"
	}
	return result
}

var (
	shebangs = []struct {
		re   *regexp.Regexp
		lang Language
	}{
		{regexp.MustCompile(`python[0-9.]*\b`), LangPython},
		{regexp.MustCompile(`\b(ts-node|deno|tsx)\b`), LangTypeScript},
		{regexp.MustCompile(`\bnode\b`), LangJavaScript},
	}

	importSyntax = map[Language]*regexp.Regexp{
		LangGo:         regexp.MustCompile(`(?m)^package \w+$|^import \($`),
		LangPython:     regexp.MustCompile(`(?m)^from [\w.]+ import |^import [\w.]+$|^def \w+\(`),
		LangRust:       regexp.MustCompile(`(?m)^use [\w:]+(::\{[^}]*\})?;|^fn \w+|^pub (fn|struct|mod) `),
		LangJava:       regexp.MustCompile(`(?m)^import [\w.]+(\.\*)?;$|^public (final )?class `),
		LangKotlin:     regexp.MustCompile(`(?m)^import [\w.]+$|^fun \w+|^data class `),
		LangTypeScript: regexp.MustCompile(`(?m)^import .* from ['"].+['"];?$|^export (interface|type) \w+`),
		LangJavaScript: regexp.MustCompile(`(?m)\brequire\(['"][^'"]+['"]\)|^module\.exports`),
	}
)

// sniff returns the languages whose shebang or import syntax matches the
// head of the file. known narrows the import check to avoid cross-language
// false positives once the extension is certain.
func sniff(absPath string, known Language) []Language {
	f, err := os.Open(absPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	head := make([]byte, sniffBytes)
	n, _ := bufio.NewReader(f).Read(head)
	head = head[:n]
	if len(head) == 0 || bytes.IndexByte(head, 0) >= 0 {
		return nil
	}

	if bytes.HasPrefix(head, []byte("#!")) {
		line := head
		if i := bytes.IndexByte(head, '\n'); i >= 0 {
			line = head[:i]
		}
		for _, s := range shebangs {
			if s.re.Match(line) {
				return []Language{s.lang}
			}
		}
	}

	if known.Known() {
		if re, ok := importSyntax[known]; ok && re.Match(head) {
			return []Language{known}
		}
		return nil
	}

	var hits []Language
	for _, lang := range Languages {
		if re, ok := importSyntax[lang]; ok && re.Match(head) {
			hits = append(hits, lang)
		}
	}
	return hits
}

func readManifest(root, rel string) []byte {
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil
	}
	return data
}

func validatePackageJSON(root, rel string) (Language, bool) {
	dir := path.Dir(rel)
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(path.Join(dir, "tsconfig.json")))); err == nil {
		return LangTypeScript, true
	}

	var pkg struct {
		Name            string            `json:"name"`
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	data := readManifest(root, rel)
	if err := json.Unmarshal(data, &pkg); err != nil {
		return LangJavaScript, false
	}
	if _, ok := pkg.DevDependencies["typescript"]; ok {
		return LangTypeScript, true
	}
	if _, ok := pkg.Dependencies["typescript"]; ok {
		return LangTypeScript, true
	}
	return LangJavaScript, true
}

func validatePnpmWorkspace(root, rel string) (Language, bool) {
	var ws struct {
		Packages []string `yaml:"packages"`
	}
	if err := yaml.Unmarshal(readManifest(root, rel), &ws); err != nil {
		return LangJavaScript, false
	}
	return LangJavaScript, len(ws.Packages) > 0
}

func validateCargo(root, rel string) (Language, bool) {
	var manifest map[string]interface{}
	if err := toml.Unmarshal(readManifest(root, rel), &manifest); err != nil {
		return LangRust, false
	}
	_, hasPackage := manifest["package"]
	_, hasWorkspace := manifest["workspace"]
	return LangRust, hasPackage || hasWorkspace
}

func validatePyproject(root, rel string) (Language, bool) {
	var manifest struct {
		Project     map[string]interface{} `toml:"project"`
		BuildSystem map[string]interface{} `toml:"build-system"`
		Tool        struct {
			Poetry map[string]interface{} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(readManifest(root, rel), &manifest); err != nil {
		return LangPython, false
	}
	return LangPython, manifest.Project != nil || manifest.BuildSystem != nil || manifest.Tool.Poetry != nil
}
