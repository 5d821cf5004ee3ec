// Package domain contains the provisioning records shared by the shell.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import "strings"

// =============================================================================
// Slug Generation
// =============================================================================

// Slugify converts a topology name to a stack-name-safe slug.
//
// The transformation rules are:
//   - ASCII letters are lowercased, digits and hyphens are kept
//   - Spaces and underscores become hyphens
//   - All other characters are removed
//   - Leading and trailing hyphens are trimmed
//
// Example:
//
//	Slugify("RPA Stack")   // returns "rpa-stack"
//	Slugify("my_app 2.0!") // returns "my-app-20"
func Slugify(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(r + ('a' - 'A'))
		case r == ' ' || r == '_':
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}
