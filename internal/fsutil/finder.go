// Package fsutil provides file system utility functions.
package fsutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FindFiles recursively searches rootPath for files whose slash-separated
// path relative to rootPath satisfies match. Hidden directories and any
// directory listed in skip are not descended into. Results are relative,
// slash-separated paths in lexical order.
func FindFiles(rootPath string, match func(rel string) bool, skip ...string) ([]string, error) {
	if match == nil {
		panic("match must not be nil")
	}
	skipped := make(map[string]struct{}, len(skip))
	for _, s := range skip {
		skipped[filepath.Clean(s)] = struct{}{}
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == rootPath {
				return nil
			}
			if _, ok := skipped[filepath.Clean(path)]; ok || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if match(rel) {
			files = append(files, rel)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	return files, nil
}

// Hash returns the hex SHA-256 of data, truncated to n characters when n > 0.
func Hash(data []byte, n int) string {
	sum := sha256.Sum256(data)
	s := hex.EncodeToString(sum[:])
	if n > 0 && n < len(s) {
		return s[:n]
	}
	return s
}

// EmptyDir removes dir and everything in it, then recreates it empty.
func EmptyDir(dir string) (string, error) {
	if err := os.RemoveAll(dir); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}
