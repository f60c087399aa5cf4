// Package stream provides the input-stream abstraction the recognizer
// consumes: a decoded-code-point UTF-8 source for a lexical grammar, and a
// recognizer-backed source that lets a syntactic grammar consume a lexical
// grammar's reductions as its own terminals.
package stream

import (
	"bufio"
	"io"
	"unicode/utf8"

	"github.com/dekarrin/gotower/grammar"
	"github.com/dekarrin/gotower/graph"
	"github.com/dekarrin/gotower/recognizer"
)

// Stream is an alias for the read contract package recognizer consumes, so
// callers assembling a pipeline don't need to import recognizer just to
// name the interface.
type Stream = recognizer.Stream

// UTF8Stream decodes one Unicode code point per Read call from an
// underlying io.Reader. start/length address byte offsets into the
// underlying source; consecutive non-EOF reads never overlap.
type UTF8Stream struct {
	r          *bufio.Reader
	offset     int
	exhausted  bool
	sawInvalid bool
}

// NewUTF8Stream wraps r as a code-point Stream.
func NewUTF8Stream(r io.Reader) *UTF8Stream {
	return &UTF8Stream{r: bufio.NewReader(r)}
}

// InvalidUTF8Seen reports whether a malformed encoding was ever
// encountered. A bad sequence is surfaced by flagging rather than
// silently dropping bytes: Read still advances past the bad byte and
// keeps decoding, but this flag stays true for the rest of the stream's
// life once set.
func (s *UTF8Stream) InvalidUTF8Seen() bool { return s.sawInvalid }

// Read decodes and returns the next code point, or grammar.EOF with
// length 0 once the underlying reader is exhausted.
func (s *UTF8Stream) Read() (uint32, int, int, *graph.Node) {
	if s.exhausted {
		return grammar.EOF, s.offset, 0, nil
	}

	r, size, err := s.r.ReadRune()
	if err != nil {
		s.exhausted = true
		return grammar.EOF, s.offset, 0, nil
	}

	start := s.offset
	if r == utf8.RuneError && size == 1 {
		s.sawInvalid = true
	}

	s.offset += size
	return uint32(r), start, size, nil
}

// RecognizerStream drives an inner *recognizer.Recognizer to completion of
// one whole parse and surfaces that parse as a single Match-carrying
// terminal read for an outer grammar — the mechanism for stacking a
// lexical layer underneath a syntactic one: inner recognizes one lexeme
// under a lexical grammar (e.g. a WORD or NUMBER production, however many
// internal reduces that takes), the outer grammar sees it as one terminal.
// matchID maps the rule index of the last reduction before accept — i.e.
// the production that completed the lexeme — to the terminal id the outer
// grammar should see for it (typically the lexical grammar's chosen
// non-terminal for that token class).
//
// A RecognizerStream is good for exactly one parse: once inner accepts or
// errors, every subsequent Read reports exhaustion. Continuous
// tokenization over a longer source is obtained by constructing a fresh
// inner *recognizer.Recognizer (and RecognizerStream) over the remaining
// input for each successive token.
type RecognizerStream struct {
	inner     *recognizer.Recognizer
	matchID   func(ruleIndex int) uint32
	exhausted bool
}

// NewRecognizerStream wraps inner as a Stream for an outer recognizer.
func NewRecognizerStream(inner *recognizer.Recognizer, matchID func(ruleIndex int) uint32) *RecognizerStream {
	return &RecognizerStream{inner: inner, matchID: matchID}
}

// Read steps inner to completion, surfacing the production that completed
// the lexeme (the last reduce before accept) as a single Match-carrying
// terminal read. Once inner accepts or errors, every subsequent Read
// reports exhaustion.
func (s *RecognizerStream) Read() (uint32, int, int, *graph.Node) {
	if s.exhausted {
		return grammar.EOF, 0, 0, nil
	}

	var last recognizer.StepResult
	haveReduce := false

	for {
		res, err := s.inner.Step()
		if err != nil {
			s.exhausted = true
			return grammar.EOF, 0, 0, nil
		}

		switch res.Kind {
		case recognizer.StepShift:
			continue
		case recognizer.StepReduce:
			last = res
			haveReduce = true
			continue
		case recognizer.StepAccept:
			s.exhausted = true
			if !haveReduce {
				return grammar.EOF, 0, 0, nil
			}
			id := s.matchID(last.Rule)
			node := recognizer.NewMatchNode(id, last.Start, last.Length)
			return id, last.Start, last.Length, node
		case recognizer.StepError:
			s.exhausted = true
			return grammar.EOF, 0, 0, nil
		default:
			s.exhausted = true
			return grammar.EOF, 0, 0, nil
		}
	}
}
