// Package pattern implements the wildcard matching used for release asset
// selection and APK file ordering.
package pattern

import "strings"

// Match reports whether name matches pattern, case-sensitively. This is the
// policy used for release asset names.
//
// Supported forms: "*" (everything), "*suffix", "prefix*", "*infix*",
// "prefix*suffix", and exact match when the pattern has no wildcard.
func Match(name, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if strings.Contains(pattern, "*") {
		parts := strings.Split(pattern, "*")

		switch {
		case len(parts) == 2:
			prefix, suffix := parts[0], parts[1]

			switch {
			case prefix == "" && suffix == "":
				return true
			case prefix == "":
				return strings.HasSuffix(name, suffix)
			case suffix == "":
				return strings.HasPrefix(name, prefix)
			default:
				return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
			}
		case len(parts) == 3 && parts[0] == "" && parts[2] == "":
			return strings.Contains(name, parts[1])
		}
	}

	return name == pattern
}

// MatchFold reports whether name matches pattern, case-insensitively. This is
// the policy used for APK filename ordering and exclusion.
//
// Unlike Match it does not support "prefix*suffix"; such a pattern only
// matches as a literal. The two policies are intentionally not unified.
func MatchFold(name, pattern string) bool {
	lower := strings.ToLower(name)

	switch {
	case strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) >= 2:
		infix := strings.ToLower(pattern[1 : len(pattern)-1])

		return strings.Contains(lower, infix)
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(lower, strings.ToLower(pattern[1:]))
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(lower, strings.ToLower(pattern[:len(pattern)-1]))
	default:
		return strings.EqualFold(name, pattern)
	}
}
