package topology

import "regexp"

// =============================================================================
// Variable Substitution
// =============================================================================

// placeholderRegex matches ${VAR} and ${VAR:-default}.
// Groups:
//   - Group 1: variable name
//   - Group 2: ":-default" when present (may have an empty default)
//   - Group 3: default value
var placeholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// Substitute replaces ${VAR} and ${VAR:-default} placeholders in value.
//
// Behavior:
//   - ${VAR} - replaced with variables["VAR"] if set, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if set, otherwise "default"
//
// injected reports whether at least one placeholder was filled from variables.
//
//	Substitute("jdbc:postgresql://${DB_HOST:-postgres-service}:5432/", nil)
//	// Returns: "jdbc:postgresql://postgres-service:5432/", false
func Substitute(value string, variables map[string]string) (result string, injected bool) {
	result = placeholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		sub := placeholderRegex.FindStringSubmatch(match)
		if val, ok := variables[sub[1]]; ok {
			injected = true
			return val
		}
		if sub[2] != "" {
			return sub[3]
		}
		return match
	})
	return result, injected
}

// Placeholders returns the variable names of placeholders left in value,
// in order of appearance without duplicates.
func Placeholders(value string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRegex.FindAllStringSubmatch(value, -1) {
		if m[2] != "" || seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		names = append(names, m[1])
	}
	return names
}
