package slug

import (
	"regexp"
	"strings"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Generate derives a URL-safe slug from a category or product name.
// The slug is a pure function of the name: lowercase, non-alphanumeric runs
// collapsed to single hyphens, no leading or trailing hyphens.
//
// Examples:
//   - "Home Decoration" → "home-decoration"
//   - "Mens  Shirts!"   → "mens-shirts"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
