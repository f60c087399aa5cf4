// Package lalr discovers LALR(1) lookahead sets for the kernel items of an
// already-built LR(0) canonical collection, using the DeRemer-Pennello
// spontaneous-generation-then-propagation algorithm.
package lalr

import (
	"github.com/dekarrin/gotower/automaton"
	"github.com/dekarrin/gotower/grammar"
	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/sets/treeset"
)

// ItemKey identifies a specific kernel item within a specific state of the
// canonical collection — the granularity at which LALR(1) lookaheads are
// tracked (the same LR0Item core can carry different lookaheads in
// different states).
type ItemKey struct {
	State int
	Item  grammar.LR0Item
}

func itemKeyCompare(a, b interface{}) int {
	x, y := a.(ItemKey), b.(ItemKey)
	if x.State != y.State {
		return x.State - y.State
	}
	if x.Item.Rule != y.Item.Rule {
		return x.Item.Rule - y.Item.Rule
	}
	return x.Item.Dot - y.Item.Dot
}

func terminalCompare(a, b interface{}) int {
	x, y := a.(grammar.Terminal), b.(grammar.Terminal)
	if x.Start != y.Start {
		if x.Start < y.Start {
			return -1
		}
		return 1
	}
	if x.End != y.End {
		if x.End < y.End {
			return -1
		}
		return 1
	}
	return 0
}

// Lookaheads is the discovered LALR(1) lookahead set for every kernel item
// of every state, keyed by ItemKey.
type Lookaheads struct {
	table *linkedhashmap.Map // ItemKey -> *treeset.Set of grammar.Terminal
}

func (l *Lookaheads) ensure(key ItemKey) *treeset.Set {
	if v, found := l.table.Get(key); found {
		return v.(*treeset.Set)
	}
	s := treeset.NewWith(terminalCompare)
	l.table.Put(key, s)
	return s
}

// For returns the discovered lookahead terminals for the given item in the
// given state, in sorted order, or nil if that item has none recorded
// (meaning it is unreachable as a reduce item, or simply was never visited
// as a kernel item).
func (l *Lookaheads) For(state int, item grammar.LR0Item) []grammar.Terminal {
	v, found := l.table.Get(ItemKey{State: state, Item: item})
	if !found {
		return nil
	}
	vals := v.(*treeset.Set).Values()
	out := make([]grammar.Terminal, len(vals))
	for i, t := range vals {
		out[i] = t.(grammar.Terminal)
	}
	return out
}

// MissingReduceLookaheads returns the ItemKeys of every kernel item that is
// a reduce item (dot at the end of its rule's symbols) but has no recorded
// lookahead, a condition that indicates the reduction can never legally
// fire and usually means the grammar's start symbol is immediately
// nullable (see DESIGN.md).
func (l *Lookaheads) MissingReduceLookaheads(g grammar.Grammar, coll *automaton.Collection) []ItemKey {
	var missing []ItemKey
	for stateIdx, state := range coll.States {
		for _, kernelItem := range state.Items.Kernels {
			if !kernelItem.AtEnd(g) {
				continue
			}
			if len(l.For(stateIdx, kernelItem)) == 0 {
				missing = append(missing, ItemKey{State: stateIdx, Item: kernelItem})
			}
		}
	}
	return missing
}

type lr1Item struct {
	core grammar.LR0Item
	la   grammar.Terminal
}

// lr1Closure computes the closure of the seed LR(1) items: every item
// reachable by expanding a non-terminal after the dot, carrying the
// FIRST(remainder + inherited lookahead) lookaheads.
func lr1Closure(g grammar.Grammar, sets grammar.Sets, seeds []lr1Item) []lr1Item {
	seen := make(map[lr1Item]bool, len(seeds))
	items := make([]lr1Item, 0, len(seeds))
	var unprocessed []lr1Item
	for _, s := range seeds {
		if seen[s] {
			continue
		}
		seen[s] = true
		items = append(items, s)
		unprocessed = append(unprocessed, s)
	}

	for len(unprocessed) > 0 {
		n := len(unprocessed) - 1
		item := unprocessed[n]
		unprocessed = unprocessed[:n]

		sym, ok := item.core.SymbolAfterDot(g)
		if !ok || sym.IsTerminal() {
			continue
		}

		remainder := g.Rules[item.core.Rule].Symbols[item.core.Dot+1:]
		first := sets.FirstOfSequence(remainder, item.la)

		for _, ruleIdx := range sym.NonTerminal.Rules {
			for _, t := range first.Values() {
				next := lr1Item{core: grammar.LR0Item{Rule: ruleIdx, Dot: 0}, la: t.(grammar.Terminal)}
				if !seen[next] {
					seen[next] = true
					items = append(items, next)
					unprocessed = append(unprocessed, next)
				}
			}
		}
	}

	return items
}

func propagationSet(m *linkedhashmap.Map, key ItemKey) *treeset.Set {
	if v, found := m.Get(key); found {
		return v.(*treeset.Set)
	}
	s := treeset.NewWith(itemKeyCompare)
	m.Put(key, s)
	return s
}

// lr1GotoKernels computes the kernel items of goto(items, sym) at the LR(1)
// level: advance the dot of every item matching sym, close the result, and
// keep only the kernel-classified items — the advanced items plus any
// empty-production items the closure introduced, which are reduce items and
// must carry lookaheads of their own. For a terminal sym, only
// sym.Term.Start is probed against each candidate's range, the same
// single-code limitation goto has during item-set enumeration.
func lr1GotoKernels(g grammar.Grammar, sets grammar.Sets, items []lr1Item, sym grammar.Symbol) []lr1Item {
	var advanced []lr1Item
	seen := make(map[lr1Item]bool)

	for _, it := range items {
		cur, ok := it.core.SymbolAfterDot(g)
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
		adv := lr1Item{core: it.core.Advance(), la: it.la}
		if !seen[adv] {
			seen[adv] = true
			advanced = append(advanced, adv)
		}
	}

	if len(advanced) == 0 {
		return nil
	}

	closed := lr1Closure(g, sets, advanced)
	var kernels []lr1Item
	for _, it := range closed {
		if it.core.Dot > 0 || len(g.Rules[it.core.Rule].Symbols) == 0 {
			kernels = append(kernels, it)
		}
	}
	return kernels
}

// Discover runs the full spontaneous-generation-then-propagation algorithm
// over coll, returning the discovered LALR(1) lookahead for every kernel
// item of every state.
//
// The start state's augmenting kernel item S' -> .S is seeded with {EOF}.
// For every kernel item of every state, a sentinel ("#") seeded LR(1)
// closure is built; goto is taken (by consulting coll's already-built
// edges, not by recomputing item-set identity) under every symbol after
// the dot, and each resulting item's lookahead is classified: a concrete
// terminal is spontaneous generation directly into the destination item's
// lookahead set, while the "#" sentinel marks a propagation edge from the
// originating kernel item to the destination item. The propagation edges
// are then repeatedly applied to a fixed point.
func Discover(g grammar.Grammar, sets grammar.Sets, coll *automaton.Collection) *Lookaheads {
	lookaheads := &Lookaheads{table: linkedhashmap.New()}
	propagation := linkedhashmap.New()

	sentinel := grammar.Terminal{Start: grammar.LookaheadMarker, End: grammar.LookaheadMarker}
	eof := grammar.Terminal{Start: grammar.EOF, End: grammar.EOF}

	startKey := ItemKey{State: 0, Item: grammar.LR0Item{Rule: 0, Dot: 0}}
	lookaheads.ensure(startKey).Add(eof)

	for stateIdx, state := range coll.States {
		for _, kernelItem := range state.Items.Kernels {
			closure := lr1Closure(g, sets, []lr1Item{{core: kernelItem, la: sentinel}})

			// state.Symbols is a superset of the symbols after the dot in
			// this single kernel item's closure; goto under the extras is
			// simply empty and skipped.
			for _, sym := range state.Symbols {
				gotoKernels := lr1GotoKernels(g, sets, closure, sym)
				if len(gotoKernels) == 0 {
					continue
				}
				destIdx := state.Goto[automaton.SymbolKey(sym)]

				for _, it := range gotoKernels {
					destKey := ItemKey{State: destIdx, Item: it.core}

					if it.la == sentinel {
						sourceKey := ItemKey{State: stateIdx, Item: kernelItem}
						propagationSet(propagation, sourceKey).Add(destKey)
					} else {
						lookaheads.ensure(destKey).Add(it.la)
					}
				}
			}
		}
	}

	changed := true
	for changed {
		changed = false
		for _, srcKeyRaw := range propagation.Keys() {
			srcKey := srcKeyRaw.(ItemKey)
			destSetRaw, _ := propagation.Get(srcKey)
			destSet := destSetRaw.(*treeset.Set)
			srcLookaheads := lookaheads.ensure(srcKey)

			for _, destKeyRaw := range destSet.Values() {
				destKey := destKeyRaw.(ItemKey)
				destLookaheads := lookaheads.ensure(destKey)
				before := destLookaheads.Size()
				for _, t := range srcLookaheads.Values() {
					destLookaheads.Add(t)
				}
				if destLookaheads.Size() != before {
					changed = true
				}
			}
		}
	}

	return lookaheads
}
