package pipeline

import (
	"regexp"
	"strings"
)

// sentenceSpan matches one complete sentence: a run of non-terminator
// characters followed by one or more terminators, per spec.md §4.7.
var sentenceSpan = regexp.MustCompile(`[^.!?]+[.!?]+`)

// releasePredicate matches a terminator followed by whitespace or
// end-of-string, the condition that makes a buffer releasable.
var releasePredicate = regexp.MustCompile(`[.!?](\s|$)`)

// SentenceBuffer accumulates extractor output until at least one
// sentence terminator is present and the blended confidence meets the
// configured threshold (C7). It belongs to the owning session, not to
// any one track.
type SentenceBuffer struct {
	confidenceThreshold float64

	text       string
	confidence float64
}

// NewSentenceBuffer constructs an empty buffer.
func NewSentenceBuffer(confidenceThreshold float64) *SentenceBuffer {
	return &SentenceBuffer{confidenceThreshold: confidenceThreshold}
}

// Text returns the buffer's current (unreleased) contents.
func (b *SentenceBuffer) Text() string {
	return b.text
}

// Append joins newText to the buffer with a single space and blends
// the confidence: c' = 0.5*c + 0.5*c_new.
func (b *SentenceBuffer) Append(newText string, cNew float64) {
	if newText == "" {
		return
	}
	if b.text == "" {
		b.text = newText
	} else {
		b.text = b.text + " " + newText
	}
	b.confidence = 0.5*b.confidence + 0.5*cNew
}

// Release reports whether the buffer should be flushed, and if so,
// returns the complete sentences and blends the retained confidence to
// blend(1, c_new) per spec.md §4.7's reset rule.
func (b *SentenceBuffer) Release(cNew float64) (completeSentences string, released bool) {
	if !releasePredicate.MatchString(b.text) || b.confidence < b.confidenceThreshold {
		return "", false
	}

	matches := sentenceSpan.FindAllStringIndex(b.text, -1)
	if len(matches) == 0 {
		return "", false
	}

	var sb strings.Builder
	lastEnd := 0
	for _, m := range matches {
		sb.WriteString(b.text[m[0]:m[1]])
		lastEnd = m[1]
	}

	remainder := strings.TrimLeft(b.text[lastEnd:], " ")
	b.text = remainder
	b.confidence = 0.5*1 + 0.5*cNew

	return sb.String(), true
}
