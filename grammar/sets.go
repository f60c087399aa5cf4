package grammar

import "github.com/emirpasic/gods/sets/treeset"

// Sets holds the FIRST and nullable fixpoint results for a Grammar's
// non-terminals, one entry per NonTerminal index.
type Sets struct {
	First    []*treeset.Set // of Terminal, via terminalCompare
	Nullable []bool
}

func terminalCompare(a, b interface{}) int {
	x, y := a.(Terminal), b.(Terminal)
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

// ComputeSets runs the FIRST/nullable worklist fixpoint over g: repeatedly
// walk every rule, union non-terminal FIRST sets (or insert the lone
// terminal) into the rule's defining non-terminal's FIRST set, and mark a
// non-terminal nullable once some rule's entire symbol sequence is itself
// nullable (including the empty sequence), until a full pass makes no
// change.
func ComputeSets(g Grammar) Sets {
	sets := Sets{
		First:    make([]*treeset.Set, len(g.NonTerminals)),
		Nullable: make([]bool, len(g.NonTerminals)),
	}
	for i := range sets.First {
		sets.First[i] = treeset.NewWith(terminalCompare)
	}

	changed := true
	for changed {
		changed = false

		for _, rule := range g.Rules {
			ruleFirst := sets.First[rule.NonTerminal]
			allNullable := true

			for _, sym := range rule.Symbols {
				if !sym.IsTerminal() {
					symFirst := sets.First[sym.NonTerminal.Index]
					before := ruleFirst.Size()
					for _, t := range symFirst.Values() {
						ruleFirst.Add(t)
					}
					if ruleFirst.Size() != before {
						changed = true
					}

					if !sets.Nullable[sym.NonTerminal.Index] {
						allNullable = false
						break
					}
				} else {
					before := ruleFirst.Size()
					ruleFirst.Add(sym.Term)
					if ruleFirst.Size() != before {
						changed = true
					}
					allNullable = false
					break
				}
			}

			if allNullable && !sets.Nullable[rule.NonTerminal] {
				sets.Nullable[rule.NonTerminal] = true
				changed = true
			}
		}
	}

	return sets
}

// FirstOfSequence computes FIRST(symbols lookahead...) the way closure
// construction needs it: the union of FIRST of each leading symbol while
// the symbols seen so far are all nullable, plus lookahead itself if every
// symbol in the sequence is nullable.
func (s Sets) FirstOfSequence(symbols []Symbol, lookahead Terminal) *treeset.Set {
	out := treeset.NewWith(terminalCompare)
	allNullable := true

	for _, sym := range symbols {
		if sym.IsTerminal() {
			out.Add(sym.Term)
			allNullable = false
			break
		}
		for _, t := range s.First[sym.NonTerminal.Index].Values() {
			out.Add(t)
		}
		if !s.Nullable[sym.NonTerminal.Index] {
			allNullable = false
			break
		}
	}

	if allNullable {
		out.Add(lookahead)
	}

	return out
}
