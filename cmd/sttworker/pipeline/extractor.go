package pipeline

import (
	"strings"
)

// ExtractNew computes the suffix of the STT's window text that is not
// already implied by everything previously emitted (C6, spec.md §4.6).
// prior is emittedHistory+sentenceBuffer, current is the STT's raw
// window text; both are compared case- and whitespace-normalized, but
// the returned text preserves current's original casing.
func ExtractNew(prior, current string) string {
	p := normalize(prior)
	c := normalize(current)

	// Rule 1: empty prior.
	if p == "" {
		return current
	}

	// Rule 2: full containment.
	if strings.Contains(p, c) {
		return ""
	}

	// Rule 3: full prefix.
	if strings.HasPrefix(c, p) {
		return mapNormalizedSuffixToOriginal(current, len(p))
	}

	// Rule 4: word-boundary overlap.
	if s, ok := wordBoundaryOverlap(p, c, current); ok {
		return s
	}

	// Rule 5: character-tail overlap.
	if s, ok := characterTailOverlap(p, c, current); ok {
		return s
	}

	// Rule 6: high-redundancy skip.
	if highRedundancy(p, c) {
		return ""
	}

	// Rule 7: default.
	return current
}

// normalize lowercases, collapses whitespace runs to a single space,
// and trims. Rules 2-6 compare only on normalized strings.
func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

// wordBoundaryOverlap implements rule 4: tokenize on whitespace; for
// len from min(|P_words|,|C_words|,50) down to 3, if the last len words
// of P equal the first len words of C, return the join of the
// original-case C words from index len onward.
func wordBoundaryOverlap(p, c, current string) (string, bool) {
	pWords := strings.Fields(p)
	cWords := strings.Fields(c)
	origWords := strings.Fields(current)

	maxLen := min3(len(pWords), len(cWords), 50)
	for l := maxLen; l >= 3; l-- {
		if l > len(pWords) || l > len(cWords) {
			continue
		}
		if equalSlices(pWords[len(pWords)-l:], cWords[:l]) {
			return strings.Join(origWords[l:], " "), true
		}
	}
	return "", false
}

// characterTailOverlap implements rule 5: let pt = last 200 chars of
// P, ch = first 200 chars of C. For len from min(|pt|,|ch|) down to
// 20, if pt[-len:] == ch[:len], return the original-case suffix of C
// starting at the first whitespace after position len; if no
// whitespace, return from position len.
func characterTailOverlap(p, c, current string) (string, bool) {
	pt := lastNChars(p, 200)
	ch := firstNChars(c, 200)

	maxLen := min2(len(pt), len(ch))
	for l := maxLen; l >= 20; l-- {
		if lastNChars(pt, l) == firstNChars(ch, l) {
			return originalSuffixAfterOverlap(current, l), true
		}
	}
	return "", false
}

// originalSuffixAfterOverlap returns the suffix of current starting at
// the first whitespace after normalized position l in current's
// normalized form, or from position l verbatim if no whitespace
// follows (the mid-word-cut quirk noted in spec.md §9, preserved
// as-is).
func originalSuffixAfterOverlap(current string, l int) string {
	normalized := normalize(current)
	if l >= len(normalized) {
		return ""
	}
	rest := normalized[l:]
	if idx := strings.IndexByte(rest, ' '); idx >= 0 {
		return mapNormalizedSuffixToOriginal(current, l+idx+1)
	}
	// rest lies inside current's last word: cut that word at the same
	// distance from its end.
	words := strings.Fields(current)
	last := words[len(words)-1]
	if len(rest) > len(last) {
		return rest
	}
	return last[len(last)-len(rest):]
}

// mapNormalizedSuffixToOriginal maps a byte offset into normalize(current)
// back onto the corresponding word boundary of current's original text.
func mapNormalizedSuffixToOriginal(current string, normalizedOffset int) string {
	words := strings.Fields(current)
	consumed := 0
	for i, w := range words {
		if i > 0 {
			consumed++
		}
		if consumed >= normalizedOffset {
			return strings.Join(words[i:], " ")
		}
		consumed += len(strings.ToLower(w))
	}
	return ""
}

// highRedundancy implements rule 6: r = |unique words of C that also
// appear in P| / |unique words of C|. If r > 0.7 and |C_words| <=
// |P_words|, the window is treated as paraphrase drift and dropped.
func highRedundancy(p, c string) bool {
	pWords := strings.Fields(p)
	cWords := strings.Fields(c)
	if len(cWords) > len(pWords) {
		return false
	}

	pSet := make(map[string]struct{}, len(pWords))
	for _, w := range pWords {
		pSet[w] = struct{}{}
	}

	cUnique := make(map[string]struct{}, len(cWords))
	for _, w := range cWords {
		cUnique[w] = struct{}{}
	}
	if len(cUnique) == 0 {
		return false
	}

	var overlap int
	for w := range cUnique {
		if _, ok := pSet[w]; ok {
			overlap++
		}
	}

	ratio := float64(overlap) / float64(len(cUnique))
	return ratio > 0.7
}

func lastNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

func firstNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func min2(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func min3(a, b, c int) int {
	return min2(min2(a, b), c)
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
