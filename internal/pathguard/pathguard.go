// Package pathguard normalizes and validates that host paths lie under a
// configured allow-list before the Container Driver ever touches them.
// It is the only defense between the HTTP surface and the host
// filesystem (spec §9 "Security"), so it is pure and stateless: no
// package state, no I/O beyond filepath normalization.
package pathguard

import (
	"path/filepath"
	"strings"

	"github.com/Mgeezy9/CLIBoard/internal/apierr"
)

// Validate normalizes path and confirms it is absolute and lies under at
// least one root in allowList (also normalized). It returns the
// normalized absolute path on success.
func Validate(path string, allowList []string) (string, error) {
	clean := filepath.Clean(strings.TrimSpace(path))
	if !filepath.IsAbs(clean) {
		return "", apierr.New(apierr.KindInvalidPath, "path is not absolute: "+path)
	}
	for _, root := range allowList {
		cleanRoot := filepath.Clean(strings.TrimSpace(root))
		if cleanRoot == "" || !filepath.IsAbs(cleanRoot) {
			continue
		}
		if isSelfOrDescendant(clean, cleanRoot) {
			return clean, nil
		}
	}
	return "", apierr.New(apierr.KindPathNotAllowed, "path not under any allowed root: "+path)
}

// isSelfOrDescendant reports whether candidate equals root or is a strict
// descendant of it, both already filepath.Clean'd. It rejects the
// classic "/a/b" vs "/a/bc" prefix-match bug by comparing path segments
// via filepath.Rel rather than raw string prefixes.
func isSelfOrDescendant(candidate, root string) bool {
	if candidate == root {
		return true
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return true
}
