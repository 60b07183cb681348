// Package session holds the state that spec.md §3 calls process-global
// (emittedHistory, sentenceBuffer, recentSegments, counters) but which
// §9's design notes recommend re-architecting into a single owned
// struct served by one task via a mailbox. A Session is that owner:
// pipelines send it chunk results and get back whatever should be
// emitted, with no lock ever taken by the caller.
package session

import (
	"time"

	"github.com/mattermost/calls-live-transcript/cmd/sttworker/pipeline"
)

const (
	emittedHistoryMaxChars = 1000
	recentSegmentsMaxLen   = 40
	correctionContextLen   = 10
)

// ChunkResult is the message a pipeline sends to the session once a
// window has been transcribed: the raw STT output plus the window's
// timing. An empty Text means the STT returned nothing for this
// window.
type ChunkResult struct {
	ChunkID  string
	Text     string
	Segments []pipeline.STTSegment
	StartMs  int64
	EndMs    int64
}

// EmitResult is what the session hands back. Released is false when
// nothing should be emitted for this chunk (extractor produced
// nothing new, or the sentence buffer isn't ready to release).
type EmitResult struct {
	Released  bool
	Segment   pipeline.TranscriptSegment
	RawText   string
	CleanText string
	Context   []pipeline.TranscriptSegment
}

// Counters reports the session's processed/skipped chunk totals.
type Counters struct {
	ChunksProcessed int
	ChunksSkipped   int
}

type request struct {
	result ChunkResult
	reply  chan EmitResult
}

type resetRequest struct {
	done chan struct{}
}

// Session is the single owner of emittedHistory, the sentence buffer
// and recentSegments. It runs its own goroutine and serializes every
// mutation through its inbox, so emissions across tracks are totally
// ordered without a mutex (spec.md §5).
type Session struct {
	confidenceThreshold float64

	inbox chan request
	stats chan chan Counters
	reset chan resetRequest
	done  chan struct{}
}

// New starts a Session and its owning goroutine.
func New(confidenceThreshold float64) *Session {
	s := &Session{
		confidenceThreshold: confidenceThreshold,
		inbox:               make(chan request),
		stats:               make(chan chan Counters),
		reset:               make(chan resetRequest),
		done:                make(chan struct{}),
	}
	go s.run()
	return s
}

// Submit sends a chunk result to the session and blocks for the
// resulting emission (or non-emission). Safe to call concurrently from
// multiple track pipelines; the session serializes internally.
func (s *Session) Submit(result ChunkResult) EmitResult {
	reply := make(chan EmitResult, 1)
	s.inbox <- request{result: result, reply: reply}
	return <-reply
}

// Stats returns a snapshot of the session's counters.
func (s *Session) Stats() Counters {
	reply := make(chan Counters, 1)
	s.stats <- reply
	return <-reply
}

// Reset zeroes emittedHistory, the sentence buffer and recentSegments
// and resets the counters, per spec.md §3 invariant 5 (all process
// state resets when every track disconnects).
func (s *Session) Reset() {
	done := make(chan struct{})
	s.reset <- resetRequest{done: done}
	<-done
}

// Close stops the session's goroutine. Submit must not be called after
// Close returns.
func (s *Session) Close() {
	close(s.done)
}

func (s *Session) run() {
	confidenceThreshold := s.confidenceThreshold
	st := newState(confidenceThreshold)

	for {
		select {
		case req := <-s.inbox:
			req.reply <- st.process(req.result)
		case reply := <-s.stats:
			reply <- st.counters
		case r := <-s.reset:
			st = newState(confidenceThreshold)
			close(r.done)
		case <-s.done:
			return
		}
	}
}

func newState(confidenceThreshold float64) *state {
	return &state{sentenceBuf: pipeline.NewSentenceBuffer(confidenceThreshold)}
}

// state is the mutable data the session goroutine owns exclusively;
// it is never touched from any other goroutine.
type state struct {
	emittedHistory string
	sentenceBuf    *pipeline.SentenceBuffer
	recentSegments []pipeline.TranscriptSegment
	counters       Counters
}

// process implements C6 (extraction against emittedHistory+buffer), C7
// (sentence release), C8 (cleanup) and the bookkeeping half of C9
// (history/recentSegments/counters). Broadcasting and correction
// forwarding are the orchestrator's job, not the session's: the
// session only owns state, not I/O.
func (st *state) process(result ChunkResult) EmitResult {
	if result.Text == "" {
		st.counters.ChunksSkipped++
		return EmitResult{}
	}

	prior := st.emittedHistory + st.sentenceBuf.Text()
	extracted := pipeline.ExtractNew(prior, result.Text)
	st.counters.ChunksProcessed++

	if extracted == "" {
		return EmitResult{}
	}

	cNew := pipeline.ConfidenceForText(result.Segments, extracted)
	st.sentenceBuf.Append(extracted, cNew)

	complete, released := st.sentenceBuf.Release(cNew)
	if !released {
		return EmitResult{}
	}

	cleaned := pipeline.Cleanup(complete, cNew)
	if cleaned == "" {
		return EmitResult{}
	}

	st.appendHistory(cleaned)

	seg := pipeline.TranscriptSegment{
		ID:         result.ChunkID,
		Text:       cleaned,
		StartMs:    result.StartMs,
		EndMs:      result.EndMs,
		IsFinal:    true,
		Revision:   0,
		Source:     "stt",
		Confidence: confidencePtr(pipeline.MaxConfidence(result.Segments)),
		CreatedAt:  time.Now().UnixMilli(),
	}
	st.pushSegment(seg)

	return EmitResult{
		Released:  true,
		Segment:   seg,
		RawText:   complete,
		CleanText: cleaned,
		Context:   st.lastContext(correctionContextLen),
	}
}

func (st *state) appendHistory(text string) {
	st.emittedHistory = st.emittedHistory + text
	if len(st.emittedHistory) > emittedHistoryMaxChars {
		st.emittedHistory = st.emittedHistory[len(st.emittedHistory)-emittedHistoryMaxChars:]
	}
}

func (st *state) pushSegment(seg pipeline.TranscriptSegment) {
	st.recentSegments = append(st.recentSegments, seg)
	if len(st.recentSegments) > recentSegmentsMaxLen {
		st.recentSegments = st.recentSegments[len(st.recentSegments)-recentSegmentsMaxLen:]
	}
}

func (st *state) lastContext(n int) []pipeline.TranscriptSegment {
	if len(st.recentSegments) <= n {
		out := make([]pipeline.TranscriptSegment, len(st.recentSegments))
		copy(out, st.recentSegments)
		return out
	}
	out := make([]pipeline.TranscriptSegment, n)
	copy(out, st.recentSegments[len(st.recentSegments)-n:])
	return out
}

func confidencePtr(v float64) *float64 {
	return &v
}
