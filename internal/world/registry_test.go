package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/physics/chipmunk"
)

func newRegistry() *Registry {
	return New(chipmunk.New())
}

func addCrate(r *Registry, x, y float64) *physics.Body {
	b := r.CreateBody(physics.BodyDef{
		Label:    "Rectangle Body",
		Kind:     physics.KindSpawned,
		Shape:    physics.Rect(40, 40),
		Position: physics.Vec{X: x, Y: y},
		Material: physics.Heavy,
	})
	r.AddBody(b)
	return b
}

func link(r *Registry, name string, a, b *physics.Body) *physics.Constraint {
	c := r.CreateConstraint(physics.ConstraintDef{Name: name, BodyA: a, BodyB: b, Length: 10, Stiffness: 1})
	r.AddConstraint(c)
	return c
}

func TestAddBody_FindableByID(t *testing.T) {
	r := newRegistry()
	b := addCrate(r, 0, 0)

	assert.Same(t, b, r.FindBody(b.ID))
	assert.True(t, r.Contains(b))
	assert.Equal(t, []*physics.Body{b}, r.AllBodies())
}

func TestRemoveBody_CascadesToConstraints(t *testing.T) {
	r := newRegistry()
	a := addCrate(r, 0, 0)
	b := addCrate(r, 100, 0)
	c := addCrate(r, 200, 0)
	ab := link(r, "", a, b)
	bc := link(r, "", b, c)
	link(r, "", a, c)

	require.True(t, r.RemoveBody(b))

	assert.False(t, r.Contains(b))
	assert.Nil(t, r.FindBody(b.ID))
	assert.Len(t, r.AllConstraints(), 1)
	assert.NotContains(t, r.AllConstraints(), ab)
	assert.NotContains(t, r.AllConstraints(), bc)
}

func TestRemoveBody_Idempotent(t *testing.T) {
	r := newRegistry()
	b := addCrate(r, 0, 0)

	calls := 0
	r.OnBodyRemoved(func(*physics.Body) { calls++ })

	assert.True(t, r.RemoveBody(b))
	assert.False(t, r.RemoveBody(b))
	assert.False(t, r.RemoveBody(nil))
	assert.Equal(t, 1, calls)
}

func TestRemoveBody_ClearsRole(t *testing.T) {
	r := newRegistry()
	a := addCrate(r, 0, 0)
	b := addCrate(r, 100, 0)
	link(r, "pick", a, b)

	r.RemoveBody(a)

	assert.Nil(t, r.FindConstraintByName("pick"))
	assert.Empty(t, r.AllConstraints())
}

func TestAddConstraint_RoleHasSingleHolder(t *testing.T) {
	r := newRegistry()
	a := addCrate(r, 0, 0)
	b := addCrate(r, 100, 0)
	c := addCrate(r, 200, 0)

	first := link(r, "pick", a, b)
	second := link(r, "pick", c, b)

	assert.Same(t, second, r.FindConstraintByName("pick"))
	require.Len(t, r.AllConstraints(), 1)
	assert.Same(t, second, r.AllConstraints()[0])
	assert.False(t, r.RemoveConstraint(first))
}

func TestAddConstraint_UnnamedAccumulate(t *testing.T) {
	r := newRegistry()
	a := addCrate(r, 0, 0)
	b := addCrate(r, 100, 0)

	link(r, "", a, b)
	link(r, "", a, b)

	assert.Len(t, r.AllConstraints(), 2)
	assert.Nil(t, r.FindConstraintByName(""))
}

func TestRemoveConstraint(t *testing.T) {
	r := newRegistry()
	a := addCrate(r, 0, 0)
	b := addCrate(r, 100, 0)
	c := link(r, "pick", a, b)

	assert.True(t, r.RemoveConstraint(c))
	assert.False(t, r.RemoveConstraint(c))
	assert.False(t, r.RemoveConstraint(nil))
	assert.Nil(t, r.FindConstraintByName("pick"))
}

func TestComposite_FlattenedForLookup(t *testing.T) {
	r := newRegistry()
	chassis := r.CreateBody(physics.BodyDef{Kind: physics.KindPart, Shape: physics.Rect(150, 30), Material: physics.Default})
	wheel := r.CreateBody(physics.BodyDef{Kind: physics.KindPart, Shape: physics.Circle(30), Material: physics.Default})
	r.AddComposite(&physics.Composite{
		Label:  "Car",
		Bodies: []*physics.Body{chassis, wheel},
	})
	top := addCrate(r, 0, 0)

	assert.Equal(t, []*physics.Body{top}, r.AllBodies())
	assert.Equal(t, []*physics.Body{chassis, wheel}, r.CompositeBodies())
	assert.Same(t, wheel, r.FindBody(wheel.ID))

	bodies, constraints := r.Counts()
	assert.Equal(t, 3, bodies)
	assert.Equal(t, 0, constraints)
}

func TestNextGroup_Unique(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, 1, r.NextGroup())
	assert.Equal(t, 2, r.NextGroup())
}
