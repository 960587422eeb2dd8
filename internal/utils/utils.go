// Package utils holds small path helpers shared by the assembly package
// that don't warrant their own package.
package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// SplitAbs splits an absolute path into its directory and base name,
// trimming trailing separators so dir never ends in one (except the root
// itself).
func SplitAbs(abs string) (string, string) {
	if abs == "" {
		return "", ""
	}

	pathSep := string(os.PathSeparator)
	dir, base := filepath.Split(strings.TrimRight(abs, pathSep))
	dir = strings.TrimRight(dir, pathSep)
	if len(dir) == 0 {
		dir = string(os.PathSeparator)
	}

	return dir, base
}
