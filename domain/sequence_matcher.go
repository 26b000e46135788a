package domain

import (
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// SequenceRatio returns the Ratcliff/Obershelp similarity of a and b,
// 2*M/T, where M is the number of runes in the matching blocks found by
// taking the longest common substring and recursing on both sides of it,
// and T is the total rune count. Two empty strings are identical (1.0).
//
// Popular runes are not treated as junk, so long snippets are compared
// rune for rune.
func SequenceRatio(a, b string) float64 {
	m := difflib.NewMatcherWithJunk(runeSeq(a), runeSeq(b), false, nil)
	return m.Ratio()
}

// runeSeq splits s into one element per rune.
func runeSeq(s string) []string {
	seq := make([]string, 0, utf8.RuneCountInString(s))
	for _, r := range s {
		seq = append(seq, string(r))
	}
	return seq
}
