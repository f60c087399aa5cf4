package recognizer

import (
	"fmt"

	"github.com/dekarrin/gotower/graph"
	"github.com/dekarrin/gotower/table"
)

// Type-token nodes for the components BuildTree attaches to the nodes it
// constructs.
var (
	productionType = graph.NewNode()
	matchType      = graph.NewNode()
)

// ProductionPayload marks an internal parse-tree node as the result of
// reducing a rule.
type ProductionPayload struct {
	Rule int
}

// MatchPayload marks a leaf parse-tree node (or a reduction surfaced as a
// lexical match by package stream's recognizer-backed Stream) with the
// terminal id and source span it covers.
type MatchPayload struct {
	ID     uint32
	Start  int
	Length int
}

// NewMatchNode allocates a fresh node carrying a Match component, the
// mechanism package stream's recognizer-backed Stream uses to surface an
// inner recognizer's reduction as an outer terminal.
func NewMatchNode(id uint32, start, length int) *graph.Node {
	n := graph.NewNode()
	graph.NewComponent(n, matchType, &MatchPayload{ID: id, Start: start, Length: length}, nil)
	return n
}

// Match returns n's Match component payload, if any.
func Match(n *graph.Node) (*MatchPayload, bool) {
	if n == nil {
		return nil, false
	}
	c := n.Component(matchType)
	if c == nil {
		return nil, false
	}
	return c.Payload().(*MatchPayload), true
}

// Production returns n's Production component payload, if any.
func Production(n *graph.Node) (*ProductionPayload, bool) {
	if n == nil {
		return nil, false
	}
	c := n.Component(productionType)
	if c == nil {
		return nil, false
	}
	return c.Payload().(*ProductionPayload), true
}

// BuildTree drives r to completion exactly as repeatedly calling Step()
// would, additionally materializing a parse tree: every shift produces a
// leaf Match node from the current lookahead, every reduce produces an
// internal node carrying a Production component whose children are the
// popped symbols' nodes in left-to-right order. On accept, the single
// remaining tree root is returned, owned by the caller.
func (r *Recognizer) BuildTree() (*graph.Node, error) {
	var roots []*graph.Node

	for {
		top := r.stack[len(r.stack)-1]
		state := r.table.States[top.state]

		edge, ok := state.Transitions.Lookup(r.ahead.id)
		if !ok {
			for _, root := range roots {
				root.Release()
			}
			r.running = false
			r.lastResult = StepResult{Kind: StepError, ErrorState: top.state, ErrorTerminal: r.ahead.id}
			return nil, fmt.Errorf("recognizer: no action in state %d for terminal %d", top.state, r.ahead.id)
		}

		switch edge.Kind {
		case table.EdgeShift:
			leaf := NewMatchNode(r.ahead.id, r.ahead.start, r.ahead.length)
			if r.ahead.node != nil {
				leaf.AttachMember(r.ahead.node, "source")
			}
			roots = append(roots, leaf)

			if _, err := r.Step(); err != nil {
				return nil, err
			}

		case table.EdgeReduce:
			rule := r.table.Grammar.Rules[edge.Reduce]
			n := len(rule.Symbols)

			children := append([]*graph.Node(nil), roots[len(roots)-n:]...)
			roots = roots[:len(roots)-n]

			res, err := r.Step()
			if err != nil {
				return nil, err
			}

			node := graph.NewNode()
			graph.NewComponent(node, productionType, &ProductionPayload{Rule: edge.Reduce}, nil)
			for _, child := range children {
				node.Attach(child)
				child.Release()
			}
			graph.NewComponent(node, matchType, &MatchPayload{ID: uint32(rule.NonTerminal), Start: res.Start, Length: res.Length}, nil)
			roots = append(roots, node)

		case table.EdgeAccept:
			if _, err := r.Step(); err != nil {
				return nil, err
			}
			if len(roots) != 1 {
				panic("recognizer: BuildTree accepted with a malformed root stack")
			}
			return roots[0], nil

		default:
			panic("recognizer: unknown edge kind in BuildTree")
		}
	}
}
