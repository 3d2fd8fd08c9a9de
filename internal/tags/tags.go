// Package tags converts between the stored comma-separated tag string and
// the ordered token list the rest of the code works with.
//
// Parsing happens once, at the storage boundary. Every other package sees
// []string and never splits on commas itself.
package tags

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator joins tokens in the stored representation.
const Separator = ","

// Parse splits a stored tag string into tokens.
// Tokens are trimmed and NFC-normalised; empty tokens and repeats are dropped.
// Order of first appearance is kept.
func Parse(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	return Normalize(strings.Split(s, Separator))
}

// Normalize cleans a caller-supplied token list the same way Parse does.
// A token containing the separator is split, so Join(Normalize(x)) always
// round-trips through Parse.
func Normalize(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, raw := range in {
		for _, part := range strings.Split(raw, Separator) {
			tok := norm.NFC.String(strings.TrimSpace(part))
			if tok == "" {
				continue
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			out = append(out, tok)
		}
	}
	return out
}

// Join renders tokens in the stored representation.
func Join(list []string) string {
	return strings.Join(Normalize(list), Separator)
}

// Set is an unordered collection of tokens.
type Set map[string]struct{}

// Add inserts every token of list.
func (s Set) Add(list ...string) {
	for _, t := range list {
		s[t] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}
