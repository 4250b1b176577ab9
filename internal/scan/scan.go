// Package scan discovers the files of a project tree.
package scan

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"codescope/internal/project"
)

// DefaultMaxFileBytes skips generated or vendored blobs.
const DefaultMaxFileBytes = 1 << 20

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".codescope":   true,
	".scip":        true,
	".idea":        true,
	".vscode":      true,
	"node_modules": true,
	"vendor":       true,
	"target":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	".tox":         true,
	".gradle":      true,
	".next":        true,
	"coverage":     true,
}

// File is one discovered file.
type File struct {
	Path     string           `json:"path"` // slash-separated, relative to the root
	AbsPath  string           `json:"-"`
	Size     int64            `json:"size"`
	ModTime  time.Time        `json:"modTime"`
	Language project.Language `json:"language"`
}

// Options tunes discovery.
type Options struct {
	MaxFileBytes int64
	// Ignore holds extra gitignore-style patterns.
	Ignore []string
}

type ignoreScope struct {
	dir     string // slash-separated, "" for the root
	matcher *ignore.GitIgnore
}

// Walk lists the files under root, honouring .gitignore files at any level.
// The result is sorted by path.
func Walk(ctx context.Context, root string, opts Options) ([]File, error) {
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}

	var files []File
	err := walk(ctx, root, opts, nil, func(p, rel string, d fs.DirEntry) {
		info, err := d.Info()
		if err != nil || info.Size() > opts.MaxFileBytes {
			return
		}
		files = append(files, File{
			Path:     rel,
			AbsPath:  p,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Language: project.LanguageFromPath(rel),
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Dirs lists the absolute paths of the directories Walk descends into,
// root included, in walk order.
func Dirs(ctx context.Context, root string, opts Options) ([]string, error) {
	var dirs []string
	err := walk(ctx, root, opts, func(p string) { dirs = append(dirs, p) }, nil)
	return dirs, err
}

// SkippedDir reports whether a directory with this base name is never
// descended into, regardless of ignore files.
func SkippedDir(name string) bool {
	return skipDirs[name]
}

func walk(ctx context.Context, root string, opts Options, onDir func(p string), onFile func(p, rel string, d fs.DirEntry)) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}

	var scopes []ignoreScope
	if len(opts.Ignore) > 0 {
		scopes = append(scopes, ignoreScope{matcher: ignore.CompileIgnoreLines(opts.Ignore...)})
	}

	return filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Unreadable entries are skipped, not fatal
			if d != nil && d.IsDir() && p != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if p == absRoot {
				scopes = appendScope(scopes, p, "")
			} else {
				if skipDirs[d.Name()] || ignored(scopes, rel+"/") {
					return filepath.SkipDir
				}
				scopes = appendScope(scopes, p, rel)
			}
			if onDir != nil {
				onDir(p)
			}
			return nil
		}

		if !d.Type().IsRegular() || ignored(scopes, rel) || onFile == nil {
			return nil
		}
		onFile(p, rel, d)
		return nil
	})
}

// Stat builds a File for a single relative path.
func Stat(root, rel string) (File, error) {
	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return File{}, err
	}
	return File{
		Path:     rel,
		AbsPath:  abs,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Language: project.LanguageFromPath(rel),
	}, nil
}

// Paths returns the relative paths of files.
func Paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

// Sources keeps only files in a supported language.
func Sources(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		if f.Language.Known() {
			out = append(out, f)
		}
	}
	return out
}

func appendScope(scopes []ignoreScope, absDir, rel string) []ignoreScope {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(absDir, ".gitignore"))
	if err != nil {
		return scopes
	}
	return append(scopes, ignoreScope{dir: rel, matcher: gi})
}

// ignored checks rel against every .gitignore whose directory contains it.
func ignored(scopes []ignoreScope, rel string) bool {
	for _, s := range scopes {
		local := rel
		if s.dir != "" {
			if !strings.HasPrefix(rel, s.dir+"/") {
				continue
			}
			local = strings.TrimPrefix(rel, s.dir+"/")
		}
		if s.matcher.MatchesPath(local) || s.matcher.MatchesPath(strings.TrimSuffix(local, "/")) {
			return true
		}
	}
	return false
}

// Module returns the directory that groups a file for module-level views.
func Module(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return "/"
	}
	return dir
}
