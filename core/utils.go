package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanStringPtr cleans the string pointed to by `s`, if any.
func CleanStringPtr(s *string, lower ...bool) {
	if s != nil {
		*s = CleanString(*s, lower...)
	}
}

// StringIsBlank reports whether `s` is nil or only holds whitespace.
func StringIsBlank(s *string) bool {
	return s == nil || CleanString(*s) == ""
}
