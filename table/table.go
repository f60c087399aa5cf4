// Package table consolidates an LR(0) canonical collection and its
// discovered LALR(1) lookaheads into a compacted shift/reduce/goto table:
// single-code terminals populate a direct-lookup map, multi-code terminal
// ranges are kept as a sorted, binary-searchable list, and states whose
// entire transition set is structurally identical share one Transitions
// value instead of each holding a copy.
package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dekarrin/gotower/automaton"
	"github.com/dekarrin/gotower/grammar"
	"github.com/dekarrin/gotower/lalr"
	"github.com/dekarrin/rosed"
)

// EdgeKind discriminates the meaning of a StateEdge.
type EdgeKind int

const (
	EdgeNone EdgeKind = iota
	EdgeShift
	EdgeReduce
	EdgeAccept
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeShift:
		return "shift"
	case EdgeReduce:
		return "reduce"
	case EdgeAccept:
		return "accept"
	default:
		return "none"
	}
}

// StateEdge is one ACTION table cell: exactly one of Shift/Reduce is
// meaningful, discriminated by Kind (EdgeAccept needs neither).
type StateEdge struct {
	Kind   EdgeKind
	Shift  int
	Reduce int
}

// RangeEdge pairs a multi-code terminal range with the edge it produces.
type RangeEdge struct {
	Term grammar.Terminal
	Edge StateEdge
}

// Transitions is one state's full compacted ACTION row: single-code
// terminals in Direct, everything else in sorted, non-overlapping Ranges.
type Transitions struct {
	Direct map[uint32]StateEdge
	Ranges []RangeEdge
}

// Lookup finds the edge, if any, for the given terminal code: Direct is
// checked first, then Ranges via binary search.
func (t *Transitions) Lookup(code uint32) (StateEdge, bool) {
	if e, ok := t.Direct[code]; ok {
		return e, true
	}
	lo, hi := 0, len(t.Ranges)
	for lo < hi {
		mid := (lo + hi) / 2
		if t.Ranges[mid].Term.End < code {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(t.Ranges) && t.Ranges[lo].Term.Contains(code) {
		return t.Ranges[lo].Edge, true
	}
	return StateEdge{}, false
}

// State is one row of the compiled table.
type State struct {
	Transitions *Transitions
	Gotos       map[int]int // non-terminal index -> destination state
	// Symbol is the symbol that was shifted/goto'd over to reach this
	// state from whichever predecessor first discovered it, kept only for
	// diagnostics and table rendering; nil for state 0.
	Symbol *grammar.Symbol
}

// Table is the fully compiled LALR(1) parse table for a grammar.
type Table struct {
	Grammar grammar.Grammar
	States  []State
}

// ConflictError reports a shift/reduce or reduce/reduce conflict
// discovered while compacting a state's transitions — the grammar is not
// LALR(1).
type ConflictError struct {
	State    int
	Code     uint32
	Existing StateEdge
	New      StateEdge
}

func (e *ConflictError) Error() string {
	kind := "reduce/reduce"
	if e.Existing.Kind == EdgeShift || e.New.Kind == EdgeShift {
		kind = "shift/reduce"
	}
	return fmt.Sprintf("%s conflict in state %d on code %d (existing %s, new %s)",
		kind, e.State, e.Code, e.Existing.Kind, e.New.Kind)
}

func setEdge(direct map[uint32]StateEdge, ranges *[]RangeEdge, term grammar.Terminal, edge StateEdge, stateIdx int) error {
	if term.IsSingle() {
		if existing, ok := direct[term.Start]; ok && existing != edge {
			return &ConflictError{State: stateIdx, Code: term.Start, Existing: existing, New: edge}
		}
		for _, r := range *ranges {
			if r.Term.Contains(term.Start) && r.Edge != edge {
				return &ConflictError{State: stateIdx, Code: term.Start, Existing: r.Edge, New: edge}
			}
		}
		direct[term.Start] = edge
		return nil
	}

	for _, r := range *ranges {
		if r.Term.Start <= term.End && term.Start <= r.Term.End && r.Edge != edge {
			return &ConflictError{State: stateIdx, Code: term.Start, Existing: r.Edge, New: edge}
		}
	}
	for code, existing := range direct {
		if term.Contains(code) && existing != edge {
			return &ConflictError{State: stateIdx, Code: code, Existing: existing, New: edge}
		}
	}
	*ranges = append(*ranges, RangeEdge{Term: term, Edge: edge})
	return nil
}

func transitionsKey(t *Transitions) string {
	codes := make([]uint32, 0, len(t.Direct))
	for c := range t.Direct {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	var b strings.Builder
	for _, c := range codes {
		e := t.Direct[c]
		fmt.Fprintf(&b, "d%d:%d:%d:%d;", c, e.Kind, e.Shift, e.Reduce)
	}
	for _, r := range t.Ranges {
		fmt.Fprintf(&b, "r%d-%d:%d:%d:%d;", r.Term.Start, r.Term.End, r.Edge.Kind, r.Edge.Shift, r.Edge.Reduce)
	}
	return b.String()
}

// Build compiles coll and lookaheads into a Table, reporting the first
// shift/reduce or reduce/reduce conflict encountered as a *ConflictError.
func Build(g grammar.Grammar, coll *automaton.Collection, lookaheads *lalr.Lookaheads) (*Table, error) {
	reachSymbol := make([]*grammar.Symbol, len(coll.States))
	for _, autoState := range coll.States {
		for _, sym := range autoState.Symbols {
			destIdx := autoState.Goto[automaton.SymbolKey(sym)]
			if reachSymbol[destIdx] == nil {
				s := sym
				reachSymbol[destIdx] = &s
			}
		}
	}

	pool := make(map[string]*Transitions)
	states := make([]State, len(coll.States))

	for stateIdx, autoState := range coll.States {
		direct := make(map[uint32]StateEdge)
		var ranges []RangeEdge
		gotos := make(map[int]int)

		for _, sym := range autoState.Symbols {
			destIdx := autoState.Goto[automaton.SymbolKey(sym)]
			if sym.IsTerminal() {
				edge := StateEdge{Kind: EdgeShift, Shift: destIdx}
				if err := setEdge(direct, &ranges, sym.Term, edge, stateIdx); err != nil {
					return nil, err
				}
			} else {
				gotos[sym.NonTerminal.Index] = destIdx
			}
		}

		for _, kernelItem := range autoState.Items.Kernels {
			if !kernelItem.AtEnd(g) {
				continue
			}
			kind := EdgeReduce
			if kernelItem.Rule == 0 {
				kind = EdgeAccept
			}
			for _, la := range lookaheads.For(stateIdx, kernelItem) {
				if la.Start == grammar.LookaheadMarker {
					panic(fmt.Sprintf("table: sentinel lookahead survived discovery for rule %d in state %d", kernelItem.Rule, stateIdx))
				}
				edge := StateEdge{Kind: kind, Reduce: kernelItem.Rule}
				if err := setEdge(direct, &ranges, la, edge, stateIdx); err != nil {
					return nil, err
				}
			}
		}

		sort.Slice(ranges, func(i, j int) bool { return ranges[i].Term.Start < ranges[j].Term.Start })

		trans := &Transitions{Direct: direct, Ranges: ranges}
		key := transitionsKey(trans)
		if shared, ok := pool[key]; ok {
			trans = shared
		} else {
			pool[key] = trans
		}

		states[stateIdx] = State{Transitions: trans, Gotos: gotos, Symbol: reachSymbol[stateIdx]}
	}

	return &Table{Grammar: g, States: states}, nil
}

// TerminalStringer maps a terminal id to a display name for table
// rendering. Returning false falls back to the terminal's numeric form. It
// affects diagnostics only, never table contents.
type TerminalStringer func(id uint32) (string, bool)

// String renders the table as an ASCII ACTION/GOTO grid.
func (t *Table) String() string { return t.StringWith(nil) }

// StringWith renders the table like String, labeling terminal columns via
// stringer where it supplies a name.
func (t *Table) StringWith(stringer TerminalStringer) string {
	terms := t.Grammar.Terminals()
	sort.Slice(terms, func(i, j int) bool { return terms[i].Start < terms[j].Start })

	headers := []string{"S", "|"}
	for _, term := range terms {
		headers = append(headers, "A:"+termLabel(term, stringer))
	}
	headers = append(headers, "A:$", "|")
	for _, nt := range t.Grammar.NonTerminals {
		if nt.Index == 0 {
			continue
		}
		headers = append(headers, "G:"+nt.Name)
	}

	data := [][]string{headers}

	for i, state := range t.States {
		row := []string{fmt.Sprintf("%d", i), "|"}

		for _, term := range terms {
			cell := ""
			if edge, ok := state.Transitions.Lookup(term.Start); ok {
				cell = cellFor(t.Grammar, edge)
			}
			row = append(row, cell)
		}

		eofCell := ""
		if edge, ok := state.Transitions.Lookup(grammar.EOF); ok {
			eofCell = cellFor(t.Grammar, edge)
		}
		row = append(row, eofCell, "|")

		for _, nt := range t.Grammar.NonTerminals {
			if nt.Index == 0 {
				continue
			}
			cell := ""
			if dest, ok := state.Gotos[nt.Index]; ok {
				cell = fmt.Sprintf("%d", dest)
			}
			row = append(row, cell)
		}

		data = append(data, row)
	}

	return rosed.
		Edit("").
		InsertTableOpts(0, data, 10, rosed.Options{
			TableHeaders:             true,
			NoTrailingLineSeparators: true,
		}).
		String()
}

func termLabel(term grammar.Terminal, stringer TerminalStringer) string {
	if stringer != nil && term.IsSingle() {
		if s, ok := stringer(term.Start); ok {
			return s
		}
	}
	return term.String()
}

func cellFor(g grammar.Grammar, edge StateEdge) string {
	switch edge.Kind {
	case EdgeAccept:
		return "acc"
	case EdgeShift:
		return fmt.Sprintf("s%d", edge.Shift)
	case EdgeReduce:
		rule := g.Rules[edge.Reduce]
		return fmt.Sprintf("r%d:%s", edge.Reduce, g.NonTerminals[rule.NonTerminal].Name)
	default:
		return ""
	}
}
