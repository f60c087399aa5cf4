// Package graph implements the reference-counted entity/component tree used
// to describe grammars before they are normalized by package grammar.
//
// A Node is an opaque handle with a reference count of at least one while it
// is reachable, an ordered sequence of child edges, and an ordered sequence
// of typed Component attachments. Components give the grammar description
// open polymorphism without an inheritance hierarchy: a rule node carries a
// Rule component, a symbol node carries exactly one of Reference/String/Range,
// and callers are free to attach additional metadata components of their own.
//
// A *Node is a stable heap pointer, so no arena indirection is needed to
// keep handles valid as the graph grows. The reference counting is
// intrusive and explicit: nothing here is collected based on liveness,
// only on the refcount reaching zero.
package graph

import "sync/atomic"

var (
	liveNodes      atomic.Int64
	liveComponents atomic.Int64
	nextNodeID     atomic.Uint64
)

// LiveNodeCount returns the number of Nodes currently allocated (created but
// not yet destroyed). Tests use this to assert no leaks across a test case.
func LiveNodeCount() int64 { return liveNodes.Load() }

// LiveComponentCount returns the number of Components currently allocated.
func LiveComponentCount() int64 { return liveComponents.Load() }

// childEdge is one entry in a parent's ordered child list.
type childEdge struct {
	name  string
	named bool
	child *Node
}

// Node is a handle into the entity/component graph. The zero value is not
// usable; construct one with NewNode.
type Node struct {
	id       uint64
	refCount int

	parent         *Node
	parentName     string
	parentHasName  bool
	parentChildIdx int // index of self in parent.children, -1 if none

	children   []childEdge
	components []*Component
}

// NewNode allocates a new Node with a reference count of one, which is
// returned to the caller. Every node is assigned a monotonically increasing
// identity, stable for its lifetime, that can be used to order or uniquely
// identify nodes without retaining a pointer to them.
func NewNode() *Node {
	n := &Node{
		id:             nextNodeID.Add(1),
		refCount:       1,
		parentChildIdx: -1,
	}
	liveNodes.Add(1)
	return n
}

// ID returns the monotonically-assigned identity of n.
func (n *Node) ID() uint64 { return n.id }

// RefCount returns the current reference count of n.
func (n *Node) RefCount() int { return n.refCount }

// AddRef increments n's reference count and returns the new count.
func (n *Node) AddRef() int {
	n.refCount++
	return n.refCount
}

// Release decrements n's reference count and returns the new count. When the
// count reaches zero, n's components are destroyed (destructors invoked,
// owner still live during the call) and then its children are released in
// index order, possibly cascading further destruction.
func (n *Node) Release() int {
	n.refCount--
	if n.refCount > 0 {
		return n.refCount
	}
	if n.refCount < 0 {
		panic("graph: Release called more times than AddRef")
	}

	// Destroy components first; the owner (n) is still fully live for the
	// duration of every destructor call, including its component list, so a
	// destructor may look up sibling components and children.
	for _, c := range n.components {
		if c.destructor != nil {
			c.destructor(c)
		}
	}
	comps := n.components
	n.components = nil
	for _, c := range comps {
		c.owner = nil
		c.typ.Release()
		liveComponents.Add(-1)
	}

	// Release children in index order. A child with only this parent's
	// reference holding it alive will cascade into its own destruction.
	children := n.children
	n.children = nil
	for i := range children {
		child := children[i].child
		child.parent = nil
		child.parentHasName = false
		child.parentName = ""
		child.parentChildIdx = -1
		child.Release()
	}

	liveNodes.Add(-1)
	return 0
}

// Parent returns the parent of n, or nil if n is a root.
func (n *Node) Parent() *Node { return n.parent }

// ParentMemberName returns the member name n is attached under in its
// parent, or "" if n has no parent or was attached unnamed.
func (n *Node) ParentMemberName() string {
	if n.parent == nil || !n.parentHasName {
		return ""
	}
	return n.parentName
}

// ParentChildIndex returns the index of n within its parent's child list, or
// -1 if n has no parent.
func (n *Node) ParentChildIndex() int {
	if n.parent == nil {
		return -1
	}
	return n.parentChildIdx
}

// ChildCount returns the number of children attached to n.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the child at the given index, or nil if index is out of
// range.
func (n *Node) Child(index int) *Node {
	if index < 0 || index >= len(n.children) {
		return nil
	}
	return n.children[index].child
}

// ChildMember returns the child attached under the given member name, or nil
// if no such child exists.
func (n *Node) ChildMember(name string) *Node {
	idx := n.ChildMemberIndex(name)
	if idx < 0 {
		return nil
	}
	return n.children[idx].child
}

// ChildMemberIndex returns the index of the child attached under the given
// member name, or -1 if no such child exists.
func (n *Node) ChildMemberIndex(name string) int {
	for i := range n.children {
		if n.children[i].named && n.children[i].name == name {
			return i
		}
	}
	return -1
}

// Detach removes n from its parent, if any, decrementing n's reference
// count by one. Does nothing if n has no parent.
func (n *Node) Detach() {
	parent := n.parent
	if parent == nil {
		return
	}

	idx := n.parentChildIdx
	parent.children = append(parent.children[:idx:idx], parent.children[idx+1:]...)

	// reindex everything after idx
	for i := idx; i < len(parent.children); i++ {
		parent.children[i].child.parentChildIdx = i
	}

	n.parent = nil
	n.parentHasName = false
	n.parentName = ""
	n.parentChildIdx = -1

	n.Release()
}

// Attach appends child to n's ordered child list, detaching child from any
// prior parent first. child's reference count is incremented by one.
func (n *Node) Attach(child *Node) {
	n.attach(child, "", false)
}

// AttachMember attaches child to n under the given member name, detaching
// child from any prior parent first. If n already has a child with that
// member name, the prior occupant is detached before the new child is
// attached, so the new child can never be destroyed as a side effect of the
// replacement. child's reference count is incremented by one.
func (n *Node) AttachMember(child *Node, name string) {
	if existingIdx := n.ChildMemberIndex(name); existingIdx >= 0 {
		n.children[existingIdx].child.Detach()
	}
	n.attach(child, name, true)
}

func (n *Node) attach(child *Node, name string, named bool) {
	child.Detach()

	child.parent = n
	child.parentHasName = named
	child.parentName = name
	child.parentChildIdx = len(n.children)

	n.children = append(n.children, childEdge{name: name, named: named, child: child})
	child.AddRef()
}

// Component is a typed payload attached to a Node. Only one Component of a
// given type (identified by the type Node's identity) may exist on a Node;
// attempting to create a duplicate returns the existing Component.
type Component struct {
	owner      *Node
	typ        *Node
	payload    any
	destructor func(*Component)
}

// NewComponent attaches a new Component of the given type to owner, storing
// payload as its payload. If owner already has a Component of this type, the
// existing Component is returned unchanged (payload and destructor are
// ignored in that case). Creating a Component increases typ's reference
// count by one (the component holds a strong reference on its type); it does
// not change owner's reference count (the component holds only a weak
// reference to its owner, valid only while owner is alive).
func NewComponent(owner, typ *Node, payload any, destructor func(*Component)) *Component {
	if existing := owner.Component(typ); existing != nil {
		return existing
	}

	typ.AddRef()
	c := &Component{
		owner:      owner,
		typ:        typ,
		payload:    payload,
		destructor: destructor,
	}
	owner.components = append(owner.components, c)
	liveComponents.Add(1)
	return c
}

// Component returns owner's Component of the given type, or nil if none
// exists.
func (n *Node) Component(typ *Node) *Component {
	for _, c := range n.components {
		if c.typ == typ {
			return c
		}
	}
	return nil
}

// ComponentCount returns the number of Components attached to n.
func (n *Node) ComponentCount() int { return len(n.components) }

// ComponentAt returns the Component at the given index, or nil if index is
// out of range.
func (n *Node) ComponentAt(index int) *Component {
	if index < 0 || index >= len(n.components) {
		return nil
	}
	return n.components[index]
}

// Owner returns the Node that owns c, or nil if that node has since been
// destroyed.
func (c *Component) Owner() *Node { return c.owner }

// Type returns the type-identity Node of c.
func (c *Component) Type() *Node { return c.typ }

// Payload returns c's stored payload.
func (c *Component) Payload() any { return c.payload }
