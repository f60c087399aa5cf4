package grammar

import "github.com/dekarrin/gotower/graph"

// Type-token nodes. Each is a process-lifetime singleton graph.Node used
// purely as a stable component-type identity: callers never need to see
// these, they only matter by pointer identity to graph.Component.
var (
	ruleType      = graph.NewNode()
	referenceType = graph.NewNode()
	stringType    = graph.NewNode()
	rangeType     = graph.NewNode()
)

type rulePayload struct {
	name      string
	generated bool
}

type referencePayload struct {
	name string
}

type stringPayload struct {
	codes []uint32
}

type rangePayload struct {
	start uint32
	end   uint32
}

// NewRuleNode creates a child of parent carrying a Rule component, attaches
// it, and returns it. The returned node is owned by parent; callers that
// want to keep a reference beyond parent's lifetime must AddRef it
// themselves.
func NewRuleNode(parent *graph.Node, name string, generated bool) *graph.Node {
	n := graph.NewNode()
	graph.NewComponent(n, ruleType, &rulePayload{name: name, generated: generated}, nil)
	parent.Attach(n)
	n.Release()
	return n
}

// NewReferenceNode creates a child of parent carrying a Reference
// component naming another rule (or an externally resolved terminal).
func NewReferenceNode(parent *graph.Node, name string) *graph.Node {
	n := graph.NewNode()
	graph.NewComponent(n, referenceType, &referencePayload{name: name}, nil)
	parent.Attach(n)
	n.Release()
	return n
}

// NewStringNode creates a child of parent carrying a String component: the
// string expands to one terminal symbol per code point at grammar-build
// time, in order.
func NewStringNode(parent *graph.Node, runes string) *graph.Node {
	codes := make([]uint32, 0, len(runes))
	for _, r := range runes {
		codes = append(codes, uint32(r))
	}
	n := graph.NewNode()
	graph.NewComponent(n, stringType, &stringPayload{codes: codes}, nil)
	parent.Attach(n)
	n.Release()
	return n
}

// NewRangeNode creates a child of parent carrying a Range component over
// the inclusive code range [start, end] (order-independent).
func NewRangeNode(parent *graph.Node, start, end uint32) *graph.Node {
	n := graph.NewNode()
	graph.NewComponent(n, rangeType, &rangePayload{start: start, end: end}, nil)
	parent.Attach(n)
	n.Release()
	return n
}
