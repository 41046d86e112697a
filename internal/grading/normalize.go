package grading

import (
	"strings"
	"unicode"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
)

// fold case-folds s. A Caser keeps state, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}

// normalizeChoice folds case, collapses whitespace runs and trims
// punctuation around the answer, so " b. " matches the key "B".
func normalizeChoice(s string) string {
	s = strings.Join(strings.Fields(fold(s)), " ")
	return strings.TrimFunc(s, unicode.IsPunct)
}

// KeywordCoverage returns the share of rubric keywords found in answer and
// the matched keywords in rubric order. Matching is a case-insensitive
// substring test. Blank keywords are ignored and duplicates count once.
func KeywordCoverage(answer string, keywords []string) (float64, []string) {
	trimmed := lo.Map(keywords, func(k string, _ int) string { return strings.TrimSpace(k) })
	unique := lo.UniqBy(
		lo.Filter(trimmed, func(k string, _ int) bool { return k != "" }),
		fold,
	)
	if len(unique) == 0 {
		return 0, []string{}
	}

	folded := fold(answer)
	matched := lo.Filter(unique, func(k string, _ int) bool {
		return strings.Contains(folded, fold(k))
	})
	return float64(len(matched)) / float64(len(unique)), matched
}
