// Package automaton enumerates the canonical collection of LR(0) item sets
// for a grammar: the closure and goto operations, and the worklist that
// discovers every reachable state in deterministic, discovery order.
package automaton

import (
	"fmt"

	"github.com/dekarrin/gotower/grammar"
)

// State is one member of the canonical collection: an item set together
// with the goto edges discovered out of it, keyed by an encoding of the
// symbol that was advanced over.
type State struct {
	Items *grammar.ItemSet
	Goto  map[string]int
	// Symbols are the distinct symbols after the dot in Items, in the
	// deterministic order ItemSet.SymbolsAfterDot produces them; every key
	// of Goto is SymbolKey of exactly one entry here.
	Symbols []grammar.Symbol
}

// Collection is the full canonical LR(0) automaton for a grammar. State 0
// is always the closure of the synthetic start item S' -> .S.
type Collection struct {
	States []State
}

// SymbolKey returns the stable string used to key State.Goto and to compare
// goto-edge symbols for equality: non-terminal identity, or the exact
// terminal range.
func SymbolKey(s grammar.Symbol) string {
	if s.IsTerminal() {
		return fmt.Sprintf("t:%d:%d", s.Term.Start, s.Term.End)
	}
	return fmt.Sprintf("n:%d", s.NonTerminal.Index)
}

// closure computes the LR(0) closure of items in place: for every item
// whose dot precedes a non-terminal, add that non-terminal's rules at dot
// position 0, repeating until no new item is added. Closure-added items are
// non-kernels, except empty productions: their dot is already at the end,
// so they are reduce items and belong to the kernel, where lookahead
// discovery and the table compactor will find them.
func closure(g grammar.Grammar, items *grammar.ItemSet) {
	unprocessed := items.All()

	for len(unprocessed) > 0 {
		n := len(unprocessed) - 1
		item := unprocessed[n]
		unprocessed = unprocessed[:n]

		sym, ok := item.SymbolAfterDot(g)
		if !ok {
			continue
		}
		items.NoteSymbolAfterDot(sym)

		if sym.IsTerminal() {
			continue
		}
		for _, ruleIdx := range sym.NonTerminal.Rules {
			next := grammar.LR0Item{Rule: ruleIdx, Dot: 0}
			var added bool
			if len(g.Rules[ruleIdx].Symbols) == 0 {
				added = items.AddKernel(next)
			} else {
				added = items.AddNonKernel(next)
			}
			if added {
				unprocessed = append(unprocessed, next)
			}
		}
	}
}

// gotoSet computes goto(items, sym): advance the dot of every item in
// items whose symbol-after-dot matches sym, then close the result.
//
// For a terminal sym, only sym.Term.Start is probed against each
// candidate item's terminal range rather than testing full range overlap:
// the query symbol must always be a single value, not a range. Splitting
// overlapping ranges at boundary events is a known gap (see DESIGN.md).
func gotoSet(g grammar.Grammar, items *grammar.ItemSet, sym grammar.Symbol) *grammar.ItemSet {
	result := grammar.NewItemSet()

	for _, item := range items.All() {
		cur, ok := item.SymbolAfterDot(g)
		if !ok {
			continue
		}
		if cur.IsTerminal() != sym.IsTerminal() {
			continue
		}
		if cur.IsTerminal() {
			if !cur.Term.Contains(sym.Term.Start) {
				continue
			}
		} else if cur.NonTerminal.Index != sym.NonTerminal.Index {
			continue
		}
		result.AddKernel(item.Advance())
	}

	closure(g, result)
	return result
}

// BuildLR0 enumerates the full canonical collection for g, starting from
// the closure of {S' -> .S} as state 0 and discovering further states in
// breadth-first, symbol-iteration order so that state numbering is
// reproducible across runs.
func BuildLR0(g grammar.Grammar) *Collection {
	coll := &Collection{}

	start := grammar.NewItemSet()
	start.AddKernel(grammar.LR0Item{Rule: 0, Dot: 0})
	closure(g, start)

	keyToState := map[string]int{start.KernelKey(): 0}
	coll.States = append(coll.States, State{Items: start, Goto: map[string]int{}})

	unprocessed := []int{0}
	for len(unprocessed) > 0 {
		idx := unprocessed[0]
		unprocessed = unprocessed[1:]

		items := coll.States[idx].Items
		gotoMap := make(map[string]int)
		symbols := items.SymbolsAfterDot()

		for _, sym := range symbols {
			dest := gotoSet(g, items, sym)
			if len(dest.Kernels) == 0 {
				continue
			}

			key := dest.KernelKey()
			destIdx, ok := keyToState[key]
			if !ok {
				destIdx = len(coll.States)
				keyToState[key] = destIdx
				coll.States = append(coll.States, State{Items: dest, Goto: map[string]int{}})
				unprocessed = append(unprocessed, destIdx)
			}

			gotoMap[SymbolKey(sym)] = destIdx
		}

		coll.States[idx].Goto = gotoMap
		coll.States[idx].Symbols = symbols
	}

	return coll
}
