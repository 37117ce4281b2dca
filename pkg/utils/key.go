package utils

import (
	"regexp"
	"strings"
)

// MaxKeyLength bounds resource keys so they always fit into a file name
const MaxKeyLength = 128

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// IsValidKey reports whether key can name a resource: a flat file name
// without path separators or parent references.
func IsValidKey(key string) bool {
	return len(key) <= MaxKeyLength &&
		keyPattern.MatchString(key) &&
		!strings.Contains(key, "..")
}
