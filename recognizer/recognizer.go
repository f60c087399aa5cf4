// Package recognizer implements the table-driven shift/reduce/accept
// machine that walks a compiled table.Table against a stream of terminal
// reads, one step at a time.
//
// Recognizer never consumes more than one unit of lookahead, and reads
// happen only on construction and on a shift.
package recognizer

import (
	"fmt"
	"sort"

	"github.com/dekarrin/gotower/grammar"
	"github.com/dekarrin/gotower/graph"
	"github.com/dekarrin/gotower/table"
)

// Stream is the minimal read contract a Recognizer drives. Defined here
// rather than in a shared package so that package stream's implementations
// satisfy it structurally without this package importing stream (stream, in
// turn, needs to import recognizer for the recognizer-backed layering
// implementation, so the dependency can only run one way).
//
// A read returning id == grammar.EOF and length == 0 signals exhaustion;
// every subsequent read must also report exhaustion.
type Stream interface {
	Read() (id uint32, start, length int, node *graph.Node)
}

// StepKind discriminates the event a Step call produced.
type StepKind int

const (
	StepShift StepKind = iota
	StepReduce
	StepAccept
	StepError
)

func (k StepKind) String() string {
	switch k {
	case StepShift:
		return "shift"
	case StepReduce:
		return "reduce"
	case StepAccept:
		return "accept"
	case StepError:
		return "error"
	default:
		return "unknown"
	}
}

// StepResult reports what a single Step call did.
type StepResult struct {
	Kind StepKind

	// Rule is the reduced rule index, meaningful only when Kind ==
	// StepReduce or StepAccept (StepAccept is always a reduce of rule 0).
	Rule int

	// Start/Length are the source-coordinate span of the symbol just
	// shifted or produced by reduction, meaningful for Kind == StepShift or
	// StepReduce. A layered stream.RecognizerStream uses this span directly
	// rather than re-deriving it from a parse tree.
	Start  int
	Length int

	// ErrorState/ErrorTerminal are populated only when Kind == StepError:
	// the state that had no edge for ErrorTerminal.
	ErrorState    int
	ErrorTerminal uint32

	// Running is false once the recognizer has accepted or halted on
	// error; further Step calls are a no-op returning the same terminal
	// result.
	Running bool
}

type stackEntry struct {
	state int
	start int
	end   int // start + length
}

type readAhead struct {
	id     uint32
	start  int
	length int
	node   *graph.Node
}

// Recognizer drives table against stream one Step at a time. The stack is
// never empty once constructed; its bottom is always state 0.
type Recognizer struct {
	table  *table.Table
	stream Stream

	stack []stackEntry
	ahead readAhead

	running    bool
	lastResult StepResult
}

// NewRecognizer places state 0 on the stack and performs one read from s.
func NewRecognizer(t *table.Table, s Stream) *Recognizer {
	r := &Recognizer{
		table:   t,
		stream:  s,
		stack:   []stackEntry{{state: 0}},
		running: true,
	}
	r.readNext()
	return r
}

func (r *Recognizer) readNext() {
	id, start, length, node := r.stream.Read()
	r.ahead = readAhead{id: id, start: start, length: length, node: node}
}

// Running reports whether the recognizer is still accepting Step calls.
func (r *Recognizer) Running() bool { return r.running }

// State returns the state currently on top of the stack.
func (r *Recognizer) State() int { return r.stack[len(r.stack)-1].state }

// ExpectedTerminals lists the terminals that have a non-error ACTION entry
// in the current state, for friendlier diagnostics than a bare "no edge"
// fact.
func (r *Recognizer) ExpectedTerminals() []grammar.Terminal {
	state := r.table.States[r.State()]
	var out []grammar.Terminal

	codes := make([]uint32, 0, len(state.Transitions.Direct))
	for code := range state.Transitions.Direct {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		out = append(out, grammar.Terminal{Start: code, End: code})
	}
	for _, re := range state.Transitions.Ranges {
		out = append(out, re.Term)
	}
	return out
}

// Step advances the recognizer by exactly one of: shift the current
// lookahead and read the next one, reduce a completed rule and consult the
// goto table, signal accept on a reduction of the synthetic start rule, or
// signal a parse error when no edge exists for the current lookahead in the
// current state.
//
// Once the recognizer has accepted or errored, further Step calls return
// the same terminal StepResult without touching the stack or the stream.
func (r *Recognizer) Step() (StepResult, error) {
	if !r.running {
		return r.lastResult, nil
	}

	top := r.stack[len(r.stack)-1]
	state := r.table.States[top.state]

	edge, ok := state.Transitions.Lookup(r.ahead.id)
	if !ok {
		r.running = false
		r.lastResult = StepResult{
			Kind:          StepError,
			ErrorState:    top.state,
			ErrorTerminal: r.ahead.id,
			Running:       false,
		}
		return r.lastResult, nil
	}

	switch edge.Kind {
	case table.EdgeShift:
		entry := stackEntry{state: edge.Shift, start: r.ahead.start, end: r.ahead.start + r.ahead.length}
		r.stack = append(r.stack, entry)

		// A non-nil ahead.node (from a layered recognizer-backed Stream)
		// is handed to us with a strong reference; BuildTree takes shared
		// ownership via AttachMember before this runs, so releasing our
		// claim here either drops the last reference (plain Step, nobody
		// else wanted it) or leaves the tree node as sole owner.
		consumedNode := r.ahead.node
		r.readNext()
		if consumedNode != nil {
			consumedNode.Release()
		}

		r.lastResult = StepResult{Kind: StepShift, Start: entry.start, Length: entry.end - entry.start, Running: true}
		return r.lastResult, nil

	case table.EdgeAccept:
		r.running = false
		r.lastResult = StepResult{Kind: StepAccept, Rule: 0, Running: false}
		return r.lastResult, nil

	case table.EdgeReduce:
		rule := r.table.Grammar.Rules[edge.Reduce]
		n := len(rule.Symbols)

		span := stackEntry{}
		if n > 0 {
			first := r.stack[len(r.stack)-n]
			last := r.stack[len(r.stack)-1]
			span.start, span.end = first.start, last.end
		} else {
			span.start, span.end = r.ahead.start, r.ahead.start
		}
		r.stack = r.stack[:len(r.stack)-n]

		newTop := r.stack[len(r.stack)-1]
		gotoState, ok := r.table.States[newTop.state].Gotos[rule.NonTerminal]
		if !ok {
			panic(fmt.Sprintf("recognizer: no goto from state %d on non-terminal %d after reducing rule %d", newTop.state, rule.NonTerminal, edge.Reduce))
		}
		r.stack = append(r.stack, stackEntry{state: gotoState, start: span.start, end: span.end})

		r.lastResult = StepResult{Kind: StepReduce, Rule: edge.Reduce, Start: span.start, Length: span.end - span.start, Running: true}
		return r.lastResult, nil

	default:
		panic(fmt.Sprintf("recognizer: state %d has edge of unknown kind %v", top.state, edge.Kind))
	}
}
