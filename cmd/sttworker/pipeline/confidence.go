package pipeline

import "strings"

// ConfidenceForText is the length-weighted average of the confidences
// of STT segments that cover text, per spec.md §4.7. Segments without
// a confidence value are ignored; if none cover text, falls back to
// the unweighted average of every segment that does carry a
// confidence, and to 0 if none do.
func ConfidenceForText(segments []STTSegment, text string) float64 {
	if text == "" {
		return 0
	}
	normText := normalize(text)

	var weightedSum, totalWeight float64
	var matched bool
	for _, seg := range segments {
		if seg.Confidence == nil {
			continue
		}
		normSeg := normalize(seg.Text)
		if normSeg == "" {
			continue
		}
		if strings.Contains(normText, normSeg) || strings.Contains(normSeg, normText) {
			w := float64(len([]rune(seg.Text)))
			if w == 0 {
				w = 1
			}
			weightedSum += w * *seg.Confidence
			totalWeight += w
			matched = true
		}
	}
	if matched && totalWeight > 0 {
		return weightedSum / totalWeight
	}

	var sum float64
	var n int
	for _, seg := range segments {
		if seg.Confidence != nil {
			sum += *seg.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// MaxConfidence returns the maximum confidence carried by any of the
// window's STT segments, used as the emitted segment's confidence
// (spec.md §4.9). Returns 0 if no segment carries a confidence.
func MaxConfidence(segments []STTSegment) float64 {
	var max float64
	for _, seg := range segments {
		if seg.Confidence != nil && *seg.Confidence > max {
			max = *seg.Confidence
		}
	}
	return max
}
