package usecase

import (
	"slices"
	"strings"
)

//nolint:gochecknoglobals // fixed allow-list
var allowedExtensions = []string{"txt", "ps1"}

// IsValidExtension reports whether filename ends in an allowed extension.
//
// The extension is whatever follows the last dot, compared case-insensitively.
// A name without a dot has no extension and is rejected.
func IsValidExtension(filename string) bool {
	i := strings.LastIndexByte(filename, '.')
	if i < 0 {
		return false
	}

	return slices.Contains(allowedExtensions, strings.ToLower(filename[i+1:]))
}
