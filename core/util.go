package core

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CleanString trims all leading and trailing white space in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CapitalizeFirst upper-cases the first letter of `s` and lower-cases the rest: "gÓMEZ" -> "Gómez".
func CapitalizeFirst(s string) string {
	s = CleanString(s)
	if s == "" {
		return s
	}
	_, size := utf8.DecodeRuneInString(s)
	// a Caser is stateful: never share one between goroutines
	return cases.Upper(language.Spanish).String(s[:size]) + cases.Lower(language.Spanish).String(s[size:])
}
