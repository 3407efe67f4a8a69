// Package moderation screens video metadata against a keyword denylist.
package moderation

import (
	"strings"
)

// Scanner performs case-insensitive substring matching against a denylist
type Scanner struct {
	terms []string
}

// NewScanner creates a scanner for the given denylist. Blank terms are
// ignored.
func NewScanner(denylist []string) *Scanner {
	terms := make([]string, 0, len(denylist))
	for _, term := range denylist {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return &Scanner{terms: terms}
}

// Scan reports whether every text is safe. Empty text is safe.
func (s *Scanner) Scan(texts ...string) bool {
	_, found := s.Match(texts...)
	return !found
}

// Match returns the first denylisted term found in any of the texts
func (s *Scanner) Match(texts ...string) (string, bool) {
	for _, text := range texts {
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		for _, term := range s.terms {
			if strings.Contains(lower, term) {
				return term, true
			}
		}
	}
	return "", false
}
