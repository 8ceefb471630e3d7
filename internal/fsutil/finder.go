// Package fsutil provides small file system helpers.
package fsutil

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FindFilesByExtension recursively collects all files under root whose
// name ends with ext. The returned paths keep root as their prefix.
func FindFilesByExtension(root, ext string) ([]string, error) {
	if ext == "" {
		panic("ext must not be empty")
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
