// Package grammar flattens a component tree (package graph) describing a
// set of BNF-style productions into an indexed form suitable for LR table
// construction: non-terminals and rules addressed by int, symbols resolved
// to either a non-terminal index or a terminal code range.
package grammar

import (
	"fmt"
	"math"

	"github.com/dekarrin/gotower/graph"
)

// EOF is the sentinel terminal code denoting end of input. It lies outside
// any valid Unicode code point or caller-assigned terminal id.
const EOF uint32 = math.MaxUint32

// LookaheadMarker ("#") is the sentinel used during LALR(1) lookahead
// discovery to mark a lookahead as "not yet known" (spontaneous vs.
// propagated). It is never a terminal present in a final table.
const LookaheadMarker uint32 = math.MaxUint32 - 1

// NonTerminal is an interned grammar non-terminal. Index 0 is always the
// synthetic start symbol S'.
type NonTerminal struct {
	Index int
	Name  string
	Rules []int // indices into Grammar.Rules, in discovery order
}

// Terminal is an inclusive code range [Start, End]. A single code point is
// represented with Start == End.
type Terminal struct {
	Start uint32
	End   uint32
}

// Contains reports whether code falls within t's inclusive range.
func (t Terminal) Contains(code uint32) bool {
	return code >= t.Start && code <= t.End
}

// IsSingle reports whether t denotes exactly one code.
func (t Terminal) IsSingle() bool {
	return t.Start == t.End
}

func (t Terminal) String() string {
	if t.Start == EOF {
		return "$"
	}
	if t.Start == LookaheadMarker {
		return "#"
	}
	if t.IsSingle() {
		return fmt.Sprintf("%d", t.Start)
	}
	return fmt.Sprintf("[%d-%d]", t.Start, t.End)
}

// Symbol is a single grammar-rule element: either a reference to a
// non-terminal, or a terminal code range. Exactly one of the two is
// meaningful, discriminated by IsTerminal.
type Symbol struct {
	NonTerminal *NonTerminal
	Term        Terminal

	// Node is the originating graph node for this symbol, retained for
	// diagnostics (e.g. reporting the source rule of a conflict). May be
	// nil for the synthetic start rule's single symbol.
	Node *graph.Node
}

// IsTerminal reports whether s denotes a terminal rather than a
// non-terminal reference.
func (s Symbol) IsTerminal() bool {
	return s.NonTerminal == nil
}

func (s Symbol) String() string {
	if s.IsTerminal() {
		return s.Term.String()
	}
	return s.NonTerminal.Name
}

// Rule is one production: NonTerminal -> Symbols. Rule 0 is always the
// synthetic S' -> S augmenting production.
type Rule struct {
	Index       int
	NonTerminal int // index into Grammar.NonTerminals
	Symbols     []Symbol
	Generated   bool // pass-through metadata, never consulted by construction
}

// Grammar is the fully resolved, indexed form of a component-tree grammar
// description.
type Grammar struct {
	NonTerminals []NonTerminal
	Rules        []Rule
}

// StartNonTerminal returns the index of the synthetic S' non-terminal,
// always 0.
func (Grammar) StartNonTerminal() int { return 0 }

// Terminals returns the grammar's terminal alphabet inferred from every
// terminal symbol appearing in any rule, deduplicated, in order of first
// appearance. Callers that need a sorted alphabet sort the result.
func (g Grammar) Terminals() []Terminal {
	seen := make(map[Terminal]bool)
	var out []Terminal
	for _, r := range g.Rules {
		for _, s := range r.Symbols {
			if s.IsTerminal() && !seen[s.Term] {
				seen[s.Term] = true
				out = append(out, s.Term)
			}
		}
	}
	return out
}

// ResolveFunc resolves a Reference name that does not match any rule's
// defining name to a terminal code, for grammars whose lexical layer is
// supplied externally (see package stream's recognizer-backed Stream,
// which produces such ids). It must return grammar.EOF if the name cannot
// be resolved.
type ResolveFunc func(name string) uint32

// IllFormedError reports a structural defect discovered while normalizing
// a component tree into a Grammar.
type IllFormedError struct {
	Reason string
}

func (e *IllFormedError) Error() string {
	return fmt.Sprintf("ill-formed grammar: %s", e.Reason)
}

// Build normalizes the component tree rooted at root into a Grammar.
//
// root's children must each carry a Rule component (see NewRuleNode); each
// rule's children must each carry exactly one of a Reference, String, or
// Range component (see NewReferenceNode, NewStringNode, NewRangeNode).
// A Reference is resolved, in order, against the names of rules already
// discovered in this tree, then against resolve if no such rule exists;
// an unresolved Reference is an IllFormedError.
func Build(root *graph.Node, resolve ResolveFunc) (Grammar, error) {
	ruleNodeCount := root.ChildCount()

	var g Grammar
	// Rules and non-terminals cross-reference each other by index, so both
	// vectors are pre-sized once and only ever appended to.
	g.Rules = make([]Rule, 0, ruleNodeCount+1)
	g.NonTerminals = make([]NonTerminal, 0, ruleNodeCount+1)

	byName := make(map[string]int, ruleNodeCount+1)

	// Reserve index 0 for the synthetic start non-terminal/rule.
	g.NonTerminals = append(g.NonTerminals, NonTerminal{Index: 0, Name: "S'"})
	g.Rules = append(g.Rules, Rule{Index: 0, NonTerminal: 0})

	type ruleSource struct {
		node    *graph.Node
		name    string
		ruleIdx int
	}
	var sources []ruleSource

	for i := 0; i < ruleNodeCount; i++ {
		ruleNode := root.Child(i)
		rc := ruleNode.Component(ruleType)
		if rc == nil {
			return Grammar{}, &IllFormedError{Reason: fmt.Sprintf("child %d of root has no Rule component", i)}
		}
		payload := rc.Payload().(*rulePayload)
		if payload.name == "" {
			return Grammar{}, &IllFormedError{Reason: fmt.Sprintf("rule %d has an empty name", i)}
		}

		ruleIdx := len(g.Rules)
		ntIdx, ok := byName[payload.name]
		if !ok {
			ntIdx = len(g.NonTerminals)
			g.NonTerminals = append(g.NonTerminals, NonTerminal{Index: ntIdx, Name: payload.name})
			byName[payload.name] = ntIdx
		}

		g.Rules = append(g.Rules, Rule{
			Index:       ruleIdx,
			NonTerminal: ntIdx,
			Generated:   payload.generated,
		})
		g.NonTerminals[ntIdx].Rules = append(g.NonTerminals[ntIdx].Rules, ruleIdx)

		sources = append(sources, ruleSource{node: ruleNode, name: payload.name, ruleIdx: ruleIdx})
	}

	if len(g.NonTerminals) > 1 {
		g.Rules[0].Symbols = []Symbol{{NonTerminal: &g.NonTerminals[1]}}
	} else {
		return Grammar{}, &IllFormedError{Reason: "grammar has no rules"}
	}

	for _, src := range sources {
		rule := &g.Rules[src.ruleIdx]
		childCount := src.node.ChildCount()
		rule.Symbols = make([]Symbol, 0, childCount)

		for j := 0; j < childCount; j++ {
			symNode := src.node.Child(j)

			if refC := symNode.Component(referenceType); refC != nil {
				ref := refC.Payload().(*referencePayload)
				if ntIdx, ok := byName[ref.name]; ok {
					rule.Symbols = append(rule.Symbols, Symbol{NonTerminal: &g.NonTerminals[ntIdx], Node: symNode})
					continue
				}
				var id uint32 = EOF
				if resolve != nil {
					id = resolve(ref.name)
				}
				if id == EOF {
					return Grammar{}, &IllFormedError{Reason: fmt.Sprintf("unable to resolve reference %q", ref.name)}
				}
				rule.Symbols = append(rule.Symbols, Symbol{Term: Terminal{Start: id, End: id}, Node: symNode})
				continue
			}

			if strC := symNode.Component(stringType); strC != nil {
				str := strC.Payload().(*stringPayload)
				for _, code := range str.codes {
					rule.Symbols = append(rule.Symbols, Symbol{Term: Terminal{Start: code, End: code}, Node: symNode})
				}
				continue
			}

			if rngC := symNode.Component(rangeType); rngC != nil {
				rng := rngC.Payload().(*rangePayload)
				start, end := rng.start, rng.end
				if start > end {
					start, end = end, start
				}
				rule.Symbols = append(rule.Symbols, Symbol{Term: Terminal{Start: start, End: end}, Node: symNode})
				continue
			}

			return Grammar{}, &IllFormedError{
				Reason: fmt.Sprintf("symbol %d of rule %q has no Reference/String/Range component", j, src.name),
			}
		}
	}

	// Fixed point of emptiness isn't checked here; nullable/FIRST handle
	// epsilon rules (zero symbols) as first-class, not as an error.
	return g, nil
}
