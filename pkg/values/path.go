// Package values implements dotted-path access over nested form value trees.
//
// A tree is built from map[string]any, []any and scalar leaves (strings,
// numbers, booleans, time.Time). Paths address keys and list indices with
// dots ("items.0.name"). Bracket syntax ("items[0].name") and quoted keys
// are accepted and normalised to the dotted form.
//
// A nil leaf is treated as absent: Get falls back past it and dirty
// tracking ignores it.
package values

import (
	"regexp"
	"strconv"
	"strings"
)

var keyPattern = regexp.MustCompile(`^\w*$`)

var pathCleaner = strings.NewReplacer(`"`, "", `'`, "", "|", "", "]", "")

// IsKey reports whether path is a single segment that needs no parsing.
func IsKey(path string) bool {
	return keyPattern.MatchString(path)
}

// Parse splits path into its segments. Empty segments are dropped.
func Parse(path string) []string {
	if path == "" {
		return nil
	}
	if IsKey(path) {
		return []string{path}
	}
	raw := strings.FieldsFunc(pathCleaner.Replace(path), func(r rune) bool {
		return r == '.' || r == '['
	})
	return raw
}

// Normalize returns the canonical dotted form of path.
func Normalize(path string) string {
	if IsKey(path) {
		return path
	}
	return strings.Join(Parse(path), ".")
}

// Join appends key to prefix with a dot.
func Join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// IsIndex reports whether segment addresses a list element.
func IsIndex(segment string) bool {
	i, err := strconv.Atoi(segment)
	return err == nil && i >= 0
}

// HasPrefix reports whether path equals prefix or lies beneath it.
func HasPrefix(path, prefix string) bool {
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+".")
}
