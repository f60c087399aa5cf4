package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttach_IncrementsChildRefCount(t *testing.T) {
	parent := NewNode()
	defer parent.Release()
	child := NewNode()

	require.Equal(t, 1, child.RefCount())
	parent.Attach(child)
	assert.Equal(t, 2, child.RefCount())
	child.Release()
}

func TestDetach_DecrementsChildRefCount(t *testing.T) {
	parent := NewNode()
	defer parent.Release()
	child := NewNode()
	parent.Attach(child)

	child.Detach()
	assert.Equal(t, 1, child.RefCount())
	assert.Nil(t, child.Parent())
	child.Release()
}

func TestAttachMember_ReplacingDetachesPriorOccupantExactlyOnce(t *testing.T) {
	parent := NewNode()
	defer parent.Release()

	first := NewNode()
	parent.AttachMember(first, "x")
	assert.Equal(t, 2, first.RefCount())

	second := NewNode()
	parent.AttachMember(second, "x")

	assert.Equal(t, 1, first.RefCount(), "replacing a named child must detach the prior occupant exactly once")
	assert.Equal(t, 2, second.RefCount())
	assert.Equal(t, second, parent.ChildMember("x"))

	first.Release()
	second.Release()
}

func TestAttachMember_NewChildSurvivesReplacingItself(t *testing.T) {
	// Detach-then-attach ordering: if the new child were attached before
	// the old one were detached, and the two happened to be the same node
	// re-attached under a different spelling of intent, a naive
	// implementation could destroy the incoming child mid-replacement.
	parent := NewNode()
	defer parent.Release()

	child := NewNode()
	parent.AttachMember(child, "x")
	require.Equal(t, 2, child.RefCount())

	parent.AttachMember(child, "x")
	assert.Equal(t, 2, child.RefCount())
	assert.Equal(t, child, parent.ChildMember("x"))

	child.Release()
}

func TestRelease_DestroysComponentsBeforeChildren(t *testing.T) {
	parent := NewNode()
	child := NewNode()
	parent.Attach(child)
	child.Release() // parent now holds the only reference

	typ := NewNode()
	defer typ.Release()

	destroyed := false
	var childWasLiveDuringDestructor bool
	NewComponent(parent, typ, "payload", func(c *Component) {
		destroyed = true
		// the owner must still be live and its children still attached
		// while the destructor runs.
		childWasLiveDuringDestructor = c.Owner().ChildCount() == 1
	})

	parent.Release()

	assert.True(t, destroyed)
	assert.True(t, childWasLiveDuringDestructor)
}

func TestComponent_DuplicateCreateReturnsExisting(t *testing.T) {
	n := NewNode()
	defer n.Release()
	typ := NewNode()
	defer typ.Release()

	first := NewComponent(n, typ, "a", nil)
	second := NewComponent(n, typ, "b", nil)

	assert.Same(t, first, second)
	assert.Equal(t, "a", first.Payload())
	assert.Equal(t, 1, n.ComponentCount())
}

func TestComponent_HoldsStrongRefOnTypeNode(t *testing.T) {
	n := NewNode()
	typ := NewNode()

	require.Equal(t, 1, typ.RefCount())
	NewComponent(n, typ, nil, nil)
	assert.Equal(t, 2, typ.RefCount())

	n.Release() // releasing the owner drops the component's ref on typ too
	assert.Equal(t, 1, typ.RefCount())
	typ.Release()
}

func TestLiveCounters_ReturnToBaselineAfterTeardown(t *testing.T) {
	beforeNodes := LiveNodeCount()
	beforeComponents := LiveComponentCount()

	root := NewNode()
	typ := NewNode()
	child := NewNode()
	root.Attach(child)
	NewComponent(child, typ, 1, nil)
	child.Release()

	root.Release()
	typ.Release()

	assert.Equal(t, beforeNodes, LiveNodeCount())
	assert.Equal(t, beforeComponents, LiveComponentCount())
}

func TestChildOrder_PreservedAcrossDetachAndReattach(t *testing.T) {
	parent := NewNode()
	defer parent.Release()

	a, b, c := NewNode(), NewNode(), NewNode()
	parent.Attach(a)
	parent.Attach(b)
	parent.Attach(c)
	a.Release()
	b.Release()
	c.Release()

	require.Equal(t, 3, parent.ChildCount())
	b.Detach()
	require.Equal(t, 2, parent.ChildCount())
	assert.Equal(t, a, parent.Child(0))
	assert.Equal(t, c, parent.Child(1))
	assert.Equal(t, 0, a.ParentChildIndex())
	assert.Equal(t, 1, c.ParentChildIndex())
}
