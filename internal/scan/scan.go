// Package scan collects the files of a target directory in traversal order.
package scan

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/src-d/enry/v2"
)

// DefaultExtensions are analyzed when no filter is configured.
var DefaultExtensions = []string{".py", ".cpp", ".h", ".java", ".js", ".html", ".css"}

// Options controls which files are collected.
type Options struct {
	Extensions []string
	SkipVendor bool // skip vendored/third-party paths as classified by enry
}

// NormalizeExtensions lowercases entries and adds a missing leading dot.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.TrimSpace(strings.ToLower(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func matches(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, e := range exts {
		if strings.HasSuffix(lower, e) {
			return true
		}
	}
	return false
}

// Files walks root in lexical order and returns the absolute paths of
// regular files whose names end with one of the extensions.
func Files(root string, opts Options) ([]string, error) {
	exts := NormalizeExtensions(opts.Extensions)
	if len(exts) == 0 {
		exts = DefaultExtensions
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", root, err)
	}

	var files []string
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if opts.SkipVendor && path != abs {
			rel, relErr := filepath.Rel(abs, path)
			if relErr == nil {
				rel = filepath.ToSlash(rel)
				if d.IsDir() {
					rel += "/"
				}
				if enry.IsVendor(rel) {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if matches(d.Name(), exts) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", abs, err)
	}
	return files, nil
}
