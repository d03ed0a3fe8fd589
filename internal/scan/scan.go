// Package scan lists a local checkout the same way the GitHub client lists a
// remote repository, so a working tree can be graphed without the API.
package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"repolens/internal/filegraph"
)

// skipDirs are VCS and dependency directories never worth graphing.
var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "vendor": true, "target": true,
	"build": true, ".next": true, ".cache": true,
}

type Options struct {
	// Exclude holds glob patterns matched against repo-relative paths.
	Exclude []string
	// Limit stops the walk after this many files; 0 walks everything.
	Limit int
}

// ListDir walks root and returns its files as repo-relative, slash-separated
// entries in lexical walk order. Type is "blob" to match remote listings.
func ListDir(root string, opts Options) ([]filegraph.FileEntry, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("scan: root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, p := range opts.Exclude {
		g, err := glob.Compile(strings.TrimSpace(p), '/')
		if err != nil {
			return nil, fmt.Errorf("scan: exclude %q: %w", p, err)
		}
		excludes = append(excludes, g)
	}

	var out []filegraph.FileEntry
	errLimit := errors.New("limit reached")
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != abs && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		for _, g := range excludes {
			if g.Match(rel) {
				return nil
			}
		}
		out = append(out, filegraph.FileEntry{Path: rel, Type: "blob"})
		if opts.Limit > 0 && len(out) >= opts.Limit {
			return errLimit
		}
		return nil
	})
	if err != nil && err != errLimit {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("scan: no files under %s", root)
	}
	return out, nil
}
