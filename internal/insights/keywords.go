package insights

import (
	"cmp"
	"slices"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"it": {}, "we": {}, "they": {}, "me": {}, "him": {}, "her": {}, "us": {}, "them": {},
}

// ExtractKeywords returns up to topK of the most frequent words in text.
// Words are lower-cased runs of letters, digits or underscores; stop words
// and words of two characters or fewer are dropped. Ties keep the order of
// first appearance.
func ExtractKeywords(text string, topK int) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	words = lo.Filter(words, func(w string, _ int) bool {
		if len([]rune(w)) <= 2 {
			return false
		}
		_, stop := stopWords[w]
		return !stop
	})
	return mostCommon(words, topK)
}

// mostCommon ranks distinct items by count, breaking ties by first
// appearance, and keeps the first k.
func mostCommon(items []string, k int) []string {
	counts := lo.CountValues(items)
	distinct := lo.Uniq(items)
	slices.SortStableFunc(distinct, func(a, b string) int {
		return cmp.Compare(counts[b], counts[a])
	})
	if len(distinct) > k {
		distinct = distinct[:k]
	}
	return distinct
}
