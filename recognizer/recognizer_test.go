package recognizer

import (
	"testing"

	"github.com/dekarrin/gotower/automaton"
	"github.com/dekarrin/gotower/grammar"
	"github.com/dekarrin/gotower/graph"
	"github.com/dekarrin/gotower/lalr"
	"github.com/dekarrin/gotower/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceStream feeds a fixed sequence of code points, one per Read, then
// reports exhaustion forever.
type sliceStream struct {
	codes []uint32
	pos   int
}

func (s *sliceStream) Read() (uint32, int, int, *graph.Node) {
	if s.pos >= len(s.codes) {
		return grammar.EOF, s.pos, 0, nil
	}
	id := s.codes[s.pos]
	start := s.pos
	s.pos++
	return id, start, 1, nil
}

func codesOf(str string) []uint32 {
	out := make([]uint32, len(str))
	for i, r := range []byte(str) {
		out[i] = uint32(r)
	}
	return out
}

func buildExprTable(t *testing.T) *table.Table {
	t.Helper()
	root := graph.NewNode()
	defer root.Release()

	e0 := grammar.NewRuleNode(root, "E", false)
	grammar.NewReferenceNode(e0, "E")
	grammar.NewStringNode(e0, "+")
	grammar.NewReferenceNode(e0, "T")

	e1 := grammar.NewRuleNode(root, "E", false)
	grammar.NewReferenceNode(e1, "T")

	t0 := grammar.NewRuleNode(root, "T", false)
	grammar.NewReferenceNode(t0, "T")
	grammar.NewStringNode(t0, "*")
	grammar.NewReferenceNode(t0, "F")

	t1 := grammar.NewRuleNode(root, "T", false)
	grammar.NewReferenceNode(t1, "F")

	f0 := grammar.NewRuleNode(root, "F", false)
	grammar.NewStringNode(f0, "(")
	grammar.NewReferenceNode(f0, "E")
	grammar.NewStringNode(f0, ")")

	f1 := grammar.NewRuleNode(root, "F", false)
	grammar.NewStringNode(f1, "1")

	g, err := grammar.Build(root, nil)
	require.NoError(t, err)

	sets := grammar.ComputeSets(g)
	coll := automaton.BuildLR0(g)
	las := lalr.Discover(g, sets, coll)

	tab, err := table.Build(g, coll, las)
	require.NoError(t, err)
	return tab
}

func TestStep_ExpressionGrammarAcceptsAndReducesBottomUp(t *testing.T) {
	tab := buildExprTable(t)
	s := &sliceStream{codes: codesOf("1*1+1")}
	r := NewRecognizer(tab, s)

	var reduces []int
	accepted := false
	for i := 0; i < 1000; i++ {
		res, err := r.Step()
		require.NoError(t, err)
		switch res.Kind {
		case StepReduce:
			reduces = append(reduces, res.Rule)
		case StepAccept:
			accepted = true
		case StepError:
			t.Fatalf("unexpected parse error in state %d on terminal %d", res.ErrorState, res.ErrorTerminal)
		}
		if !res.Running {
			break
		}
	}

	require.True(t, accepted)
	require.NotEmpty(t, reduces)
	// The last reduction before accept must be of S' -> E (rule 0's RHS),
	// i.e. the final user reduction produces E; accept itself is recorded
	// as Rule 0 separately in its own StepResult.
	lastUserReduce := reduces[len(reduces)-1]
	rule := tab.Grammar.Rules[lastUserReduce]
	assert.Equal(t, "E", tab.Grammar.NonTerminals[rule.NonTerminal].Name)
}

func TestStep_ParseErrorHaltsAndStaysHalted(t *testing.T) {
	root := graph.NewNode()
	defer root.Release()
	s := grammar.NewRuleNode(root, "S", false)
	grammar.NewStringNode(s, "a")
	g, err := grammar.Build(root, nil)
	require.NoError(t, err)

	sets := grammar.ComputeSets(g)
	coll := automaton.BuildLR0(g)
	las := lalr.Discover(g, sets, coll)
	tab, err := table.Build(g, coll, las)
	require.NoError(t, err)

	stream := &sliceStream{codes: codesOf("b")}
	r := NewRecognizer(tab, stream)

	res, err := r.Step()
	require.NoError(t, err)
	assert.Equal(t, StepError, res.Kind)
	assert.False(t, res.Running)
	assert.Equal(t, 0, res.ErrorState)
	assert.Equal(t, uint32('b'), res.ErrorTerminal)
	assert.False(t, r.Running())

	stackState := r.State()
	res2, err := r.Step()
	require.NoError(t, err)
	assert.Equal(t, res, res2)
	assert.Equal(t, stackState, r.State())
}

func TestStep_MinimalGrammarShiftsThenAccepts(t *testing.T) {
	root := graph.NewNode()
	defer root.Release()
	s := grammar.NewRuleNode(root, "S", false)
	grammar.NewStringNode(s, "a")
	g, err := grammar.Build(root, nil)
	require.NoError(t, err)

	sets := grammar.ComputeSets(g)
	coll := automaton.BuildLR0(g)
	las := lalr.Discover(g, sets, coll)
	tab, err := table.Build(g, coll, las)
	require.NoError(t, err)

	str := &sliceStream{codes: codesOf("a")}
	r := NewRecognizer(tab, str)

	res, err := r.Step()
	require.NoError(t, err)
	assert.Equal(t, StepShift, res.Kind)

	res, err = r.Step()
	require.NoError(t, err)
	assert.Equal(t, StepReduce, res.Kind)

	res, err = r.Step()
	require.NoError(t, err)
	assert.Equal(t, StepAccept, res.Kind)
	assert.False(t, r.Running())
}

func TestStep_NonSLRGrammarAccepts(t *testing.T) {
	// S -> L = R | R ; L -> * R | i ; R -> L is LALR(1) but not SLR(1):
	// accepting "**i=*i" requires the lookahead engine to keep the R -> L
	// reduction's lookaheads state-local instead of merging them through
	// FOLLOW(R).
	root := graph.NewNode()
	defer root.Release()

	s0 := grammar.NewRuleNode(root, "S", false)
	grammar.NewReferenceNode(s0, "L")
	grammar.NewStringNode(s0, "=")
	grammar.NewReferenceNode(s0, "R")

	s1 := grammar.NewRuleNode(root, "S", false)
	grammar.NewReferenceNode(s1, "R")

	l0 := grammar.NewRuleNode(root, "L", false)
	grammar.NewStringNode(l0, "*")
	grammar.NewReferenceNode(l0, "R")

	l1 := grammar.NewRuleNode(root, "L", false)
	grammar.NewStringNode(l1, "i")

	r0 := grammar.NewRuleNode(root, "R", false)
	grammar.NewReferenceNode(r0, "L")

	g, err := grammar.Build(root, nil)
	require.NoError(t, err)

	sets := grammar.ComputeSets(g)
	coll := automaton.BuildLR0(g)
	las := lalr.Discover(g, sets, coll)
	tab, err := table.Build(g, coll, las)
	require.NoError(t, err)

	stream := &sliceStream{codes: codesOf("**i=*i")}
	r := NewRecognizer(tab, stream)

	accepted := false
	for i := 0; i < 1000; i++ {
		res, err := r.Step()
		require.NoError(t, err)
		if res.Kind == StepError {
			t.Fatalf("unexpected parse error in state %d on terminal %d", res.ErrorState, res.ErrorTerminal)
		}
		if res.Kind == StepAccept {
			accepted = true
		}
		if !res.Running {
			break
		}
	}
	assert.True(t, accepted)
}

func TestStep_EmptyProductionReducesBeforeFirstListElement(t *testing.T) {
	// A -> 'x' B ; B -> | B 'y' over "xyy": B's empty production must
	// reduce (producing the seed list) before the first 'y' is shifted,
	// which requires the epsilon reduce item to carry 'y' as a lookahead.
	root := graph.NewNode()
	defer root.Release()

	a0 := grammar.NewRuleNode(root, "A", false)
	grammar.NewStringNode(a0, "x")
	grammar.NewReferenceNode(a0, "B")

	grammar.NewRuleNode(root, "B", false) // epsilon

	b1 := grammar.NewRuleNode(root, "B", false)
	grammar.NewReferenceNode(b1, "B")
	grammar.NewStringNode(b1, "y")

	g, err := grammar.Build(root, nil)
	require.NoError(t, err)

	sets := grammar.ComputeSets(g)
	var bIdx int
	for _, nt := range g.NonTerminals {
		if nt.Name == "B" {
			bIdx = nt.Index
		}
	}
	require.True(t, sets.Nullable[bIdx])

	coll := automaton.BuildLR0(g)
	las := lalr.Discover(g, sets, coll)
	tab, err := table.Build(g, coll, las)
	require.NoError(t, err)

	stream := &sliceStream{codes: codesOf("xyy")}
	r := NewRecognizer(tab, stream)

	var reduces []int
	accepted := false
	for i := 0; i < 1000; i++ {
		res, err := r.Step()
		require.NoError(t, err)
		switch res.Kind {
		case StepReduce:
			reduces = append(reduces, res.Rule)
		case StepAccept:
			accepted = true
		case StepError:
			t.Fatalf("unexpected parse error in state %d on terminal %d", res.ErrorState, res.ErrorTerminal)
		}
		if !res.Running {
			break
		}
	}

	require.True(t, accepted)
	require.NotEmpty(t, reduces)
	epsilonRule := g.NonTerminals[bIdx].Rules[0]
	assert.Equal(t, epsilonRule, reduces[0], "the epsilon production must reduce first, before any 'y' is consumed")
	assert.Len(t, reduces, 4) // B->eps, B->By, B->By, A->xB
}

func TestExpectedTerminals_ListsNonErrorActionsInCurrentState(t *testing.T) {
	root := graph.NewNode()
	defer root.Release()
	s := grammar.NewRuleNode(root, "S", false)
	grammar.NewStringNode(s, "a")
	g, err := grammar.Build(root, nil)
	require.NoError(t, err)

	sets := grammar.ComputeSets(g)
	coll := automaton.BuildLR0(g)
	las := lalr.Discover(g, sets, coll)
	tab, err := table.Build(g, coll, las)
	require.NoError(t, err)

	str := &sliceStream{codes: codesOf("a")}
	r := NewRecognizer(tab, str)

	expected := r.ExpectedTerminals()
	require.Len(t, expected, 1)
	assert.Equal(t, uint32('a'), expected[0].Start)
}

func TestBuildTree_ProducesRootSpanningWholeInput(t *testing.T) {
	tab := buildExprTable(t)
	str := &sliceStream{codes: codesOf("1*1")}
	r := NewRecognizer(tab, str)

	root, err := r.BuildTree()
	require.NoError(t, err)
	require.NotNil(t, root)
	defer root.Release()

	match, ok := Match(root)
	require.True(t, ok)
	assert.Equal(t, 0, match.Start)
	assert.Equal(t, 3, match.Length)

	prod, ok := Production(root)
	require.True(t, ok)
	rule := tab.Grammar.Rules[prod.Rule]
	// The root is whatever was reduced last before the accept action, which
	// for a complete input is always the grammar's start non-terminal: here
	// "1*1" reduces all the way up through T to E -> T before S' accepts.
	assert.Equal(t, "E", tab.Grammar.NonTerminals[rule.NonTerminal].Name)
}
