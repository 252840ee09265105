package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"journalrag/internal/port"
)

// Walker finds chunk files. Include and exclude patterns are doublestar
// globs matched against paths relative to the walked root.
type Walker struct {
	includes []string
	excludes []string
}

var _ port.FileWalker = (*Walker)(nil)

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*.json"}
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if info.IsDir() {
			if relPath != "." && w.shouldExclude(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if w.shouldInclude(relPath) && !w.shouldExclude(relPath) {
			files = append(files, fileInfo(path, info))
		}

		return nil
	})

	return files, err
}

// Expand resolves command line arguments to files. A directory is walked
// with the include patterns, a glob is expanded, and anything else must be
// an existing file. Results are deduplicated and sorted by path.
func (w *Walker) Expand(args []string) ([]port.FileInfo, error) {
	seen := make(map[string]struct{})
	var files []port.FileInfo

	add := func(f port.FileInfo) {
		if _, ok := seen[f.Path]; ok {
			return
		}
		seen[f.Path] = struct{}{}
		files = append(files, f)
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			found, err := w.Walk(arg)
			if err != nil {
				return nil, err
			}
			for _, f := range found {
				add(f)
			}

		case err == nil:
			abs, err := filepath.Abs(arg)
			if err != nil {
				return nil, err
			}
			add(fileInfo(abs, info))

		default:
			matches, globErr := doublestar.FilepathGlob(arg)
			if globErr != nil {
				return nil, fmt.Errorf("bad pattern %q: %w", arg, globErr)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("no files match %q", arg)
			}
			for _, m := range matches {
				mi, err := os.Stat(m)
				if err != nil {
					return nil, err
				}
				if mi.IsDir() || w.shouldExclude(filepath.ToSlash(m)) {
					continue
				}
				abs, err := filepath.Abs(m)
				if err != nil {
					return nil, err
				}
				add(fileInfo(abs, mi))
			}
		}
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

func fileInfo(path string, info os.FileInfo) port.FileInfo {
	return port.FileInfo{
		Path:    path,
		ModTime: info.ModTime().Unix(),
		Size:    info.Size(),
	}
}

func (w *Walker) shouldInclude(path string) bool {
	for _, pattern := range w.includes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) shouldExclude(path string) bool {
	for _, pattern := range w.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
