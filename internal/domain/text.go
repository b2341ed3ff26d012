package domain

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns the case-folded form of s used for free-text matching.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether s contains substr, ignoring case. An empty substr matches.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(Fold(s), Fold(substr))
}
