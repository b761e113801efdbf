// Package validate holds the pure checks applied to every value before it is
// written to the store.
package validate

import "regexp"

var (
	urlExpr      = regexp.MustCompile(`^(http|https)://[^\s/$.?#].[^\s]*$`)
	disallowExpr = regexp.MustCompile(`[^\p{L}\p{N}_\s\-.,@#]`)
)

// IsValidURL reports whether s is an http(s) URL with a non-empty host part.
func IsValidURL(s string) bool {
	return urlExpr.MatchString(s)
}

// Sanitize strips every character other than word characters, whitespace
// and "-.,@#".
func Sanitize(s string) string {
	return disallowExpr.ReplaceAllString(s, "")
}
