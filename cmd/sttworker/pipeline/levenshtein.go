package pipeline

// levenshtein computes the edit distance between a and b over runes.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

// WERProxy is the word-error-rate proxy of spec.md §4.9/glossary:
// Levenshtein distance between the raw STT text and the cleaned text,
// divided by the larger length. Identical strings score 0.
func WERProxy(original, cleaned string) float64 {
	a := []rune(original)
	b := []rune(cleaned)

	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}

	return float64(levenshtein(a, b)) / float64(maxLen)
}
