package grammar

import (
	"fmt"

	"github.com/emirpasic/gods/sets/treeset"
)

// LR0Item is a dotted production: Rule with the dot immediately before
// Symbols[Dot] (Dot == len(Symbols) means the dot is at the end).
type LR0Item struct {
	Rule int
	Dot  int
}

func (i LR0Item) String() string {
	return fmt.Sprintf("%d:%d", i.Rule, i.Dot)
}

// AtEnd reports whether the dot has reached the end of the rule's symbols.
func (i LR0Item) AtEnd(g Grammar) bool {
	return i.Dot >= len(g.Rules[i.Rule].Symbols)
}

// SymbolAfterDot returns the symbol immediately following the dot and true,
// or the zero Symbol and false if the dot is at the end.
func (i LR0Item) SymbolAfterDot(g Grammar) (Symbol, bool) {
	if i.AtEnd(g) {
		return Symbol{}, false
	}
	return g.Rules[i.Rule].Symbols[i.Dot], true
}

// Advance returns the item with the dot moved one symbol to the right.
func (i LR0Item) Advance() LR0Item {
	return LR0Item{Rule: i.Rule, Dot: i.Dot + 1}
}

// LR1Item pairs an LR0Item with a single lookahead terminal.
type LR1Item struct {
	LR0Item
	Lookahead Terminal
}

func (i LR1Item) String() string {
	return fmt.Sprintf("%s,%s", i.LR0Item.String(), i.Lookahead.String())
}

func lr0Compare(a, b interface{}) int {
	x, y := a.(LR0Item), b.(LR0Item)
	if x.Rule != y.Rule {
		return x.Rule - y.Rule
	}
	return x.Dot - y.Dot
}

func lr1Compare(a, b interface{}) int {
	x, y := a.(LR1Item), b.(LR1Item)
	if c := lr0Compare(x.LR0Item, y.LR0Item); c != 0 {
		return c
	}
	if x.Lookahead.Start != y.Lookahead.Start {
		if x.Lookahead.Start < y.Lookahead.Start {
			return -1
		}
		return 1
	}
	if x.Lookahead.End != y.Lookahead.End {
		if x.Lookahead.End < y.Lookahead.End {
			return -1
		}
		return 1
	}
	return 0
}

func symbolCompare(a, b interface{}) int {
	x, y := a.(Symbol), b.(Symbol)
	xTerm, yTerm := x.IsTerminal(), y.IsTerminal()
	if xTerm != yTerm {
		if xTerm {
			return -1
		}
		return 1
	}
	if xTerm {
		if x.Term.Start != y.Term.Start {
			if x.Term.Start < y.Term.Start {
				return -1
			}
			return 1
		}
		if x.Term.End != y.Term.End {
			if x.Term.End < y.Term.End {
				return -1
			}
			return 1
		}
		return 0
	}
	return x.NonTerminal.Index - y.NonTerminal.Index
}

// ItemSet is a canonical LR(0) item set, split into its kernel items
// (defining the set's identity: the augmented start item, any item with the
// dot past the first position, and empty-production items, whose dot is
// always simultaneously at the start and the end) and non-kernel items
// (derived by closure). Kernels are kept sorted for deterministic comparison; the
// symbols appearing immediately after the dot across the whole set are
// tracked in a treeset.Set so goto targets are enumerated in a stable
// order, keeping state numbering reproducible across runs.
type ItemSet struct {
	Kernels    []LR0Item
	NonKernels []LR0Item
	symbols    *treeset.Set
}

// NewItemSet returns an empty ItemSet; items are added with AddKernel and
// AddNonKernel, which keep each half sorted.
func NewItemSet() *ItemSet {
	return &ItemSet{symbols: treeset.NewWith(symbolCompare)}
}

// AddKernel inserts item into the kernel if not already present,
// maintaining sorted order. Returns true if the item was newly added.
func (s *ItemSet) AddKernel(item LR0Item) bool {
	if indexOfLR0(s.Kernels, item) >= 0 {
		return false
	}
	s.Kernels = insertSortedLR0(s.Kernels, item)
	return true
}

// AddNonKernel inserts item into the non-kernel set if not already present
// (in either kernel or non-kernel), maintaining sorted order. Returns true
// if the item was newly added.
func (s *ItemSet) AddNonKernel(item LR0Item) bool {
	if indexOfLR0(s.Kernels, item) >= 0 {
		return false
	}
	if indexOfLR0(s.NonKernels, item) >= 0 {
		return false
	}
	s.NonKernels = insertSortedLR0(s.NonKernels, item)
	return true
}

// NoteSymbolAfterDot records that sym appears immediately after the dot of
// some item in this set, for later deterministic goto enumeration.
func (s *ItemSet) NoteSymbolAfterDot(sym Symbol) {
	s.symbols.Add(sym)
}

// SymbolsAfterDot returns, in deterministic order, every distinct symbol
// that appears immediately after the dot of some item (kernel or
// non-kernel) in this set.
func (s *ItemSet) SymbolsAfterDot() []Symbol {
	vals := s.symbols.Values()
	out := make([]Symbol, len(vals))
	for i, v := range vals {
		out[i] = v.(Symbol)
	}
	return out
}

// All returns every item (kernel then non-kernel) in this set, in sorted
// order within each half.
func (s *ItemSet) All() []LR0Item {
	out := make([]LR0Item, 0, len(s.Kernels)+len(s.NonKernels))
	out = append(out, s.Kernels...)
	out = append(out, s.NonKernels...)
	return out
}

// KernelKey returns a string uniquely identifying this set's kernel, used
// to detect whether a goto target is a previously discovered state.
func (s *ItemSet) KernelKey() string {
	out := ""
	for _, k := range s.Kernels {
		out += k.String() + ";"
	}
	return out
}

func indexOfLR0(items []LR0Item, item LR0Item) int {
	for i, it := range items {
		if it == item {
			return i
		}
	}
	return -1
}

func insertSortedLR0(items []LR0Item, item LR0Item) []LR0Item {
	pos := len(items)
	for i, it := range items {
		if lr0Compare(item, it) < 0 {
			pos = i
			break
		}
	}
	items = append(items, LR0Item{})
	copy(items[pos+1:], items[pos:])
	items[pos] = item
	return items
}
