// Package world tracks every body and constraint that lives in the shared
// simulation.
//
// The Registry sits between the server and the physics adapter. It adds two
// things the adapter does not have: a role map holding at most one live
// constraint per role name, and cascading removal, so that removing a body
// also removes every constraint that references it. Bodies that belong to
// composite assemblies are flattened into the same lookup space.
//
// The Registry is not safe for concurrent use; the engine owns it.
package world

import (
	"time"

	"github.com/roach88/tether/internal/physics"
)

// RemovalHook is called after a body has left the world.
type RemovalHook func(b *physics.Body)

// Registry is the server's view of the world.
type Registry struct {
	sim physics.Adapter

	roles map[string]*physics.Constraint
	index map[uint64]*physics.Body
	hooks []RemovalHook

	nextGroup int
}

// New wraps a physics adapter.
func New(sim physics.Adapter) *Registry {
	return &Registry{
		sim:   sim,
		roles: make(map[string]*physics.Constraint),
		index: make(map[uint64]*physics.Body),
	}
}

// CreateBody builds a body without adding it.
func (r *Registry) CreateBody(def physics.BodyDef) *physics.Body {
	return r.sim.CreateBody(def)
}

// CreateConstraint builds a constraint without adding it.
func (r *Registry) CreateConstraint(def physics.ConstraintDef) *physics.Constraint {
	return r.sim.CreateConstraint(def)
}

// NextGroup allocates a collision group no other caller has been given.
func (r *Registry) NextGroup() int {
	r.nextGroup++
	return r.nextGroup
}

// AddBody puts b into the world.
func (r *Registry) AddBody(b *physics.Body) {
	r.sim.AddBody(b)
	r.index[b.ID] = b
}

// RemoveBody takes b out of the world together with every constraint that
// references it, then runs the removal hooks. Removing a body that is not in
// the world returns false and does nothing.
func (r *Registry) RemoveBody(b *physics.Body) bool {
	if b == nil || !r.sim.RemoveBody(b) {
		return false
	}
	delete(r.index, b.ID)

	for _, c := range r.sim.Constraints() {
		if c.References(b) {
			r.RemoveConstraint(c)
		}
	}
	for _, h := range r.hooks {
		h(b)
	}
	return true
}

// AddConstraint puts c into the world. A named constraint takes over its
// role: the previous holder of the same name is removed first.
func (r *Registry) AddConstraint(c *physics.Constraint) {
	if c.Name != "" {
		if prev := r.roles[c.Name]; prev != nil && prev != c {
			r.RemoveConstraint(prev)
		}
		r.roles[c.Name] = c
	}
	r.sim.AddConstraint(c)
}

// RemoveConstraint takes c out of the world and releases its role.
func (r *Registry) RemoveConstraint(c *physics.Constraint) bool {
	if c == nil {
		return false
	}
	if c.Name != "" && r.roles[c.Name] == c {
		delete(r.roles, c.Name)
	}
	return r.sim.RemoveConstraint(c)
}

// AddComposite puts an assembly into the world. Its bodies become
// findable by id like any other body.
func (r *Registry) AddComposite(c *physics.Composite) {
	r.sim.AddComposite(c)
	for _, b := range c.Bodies {
		r.index[b.ID] = b
	}
}

// AllBodies returns the top-level bodies in insertion order.
func (r *Registry) AllBodies() []*physics.Body {
	return r.sim.Bodies()
}

// AllConstraints returns the top-level constraints in insertion order.
func (r *Registry) AllConstraints() []*physics.Constraint {
	return r.sim.Constraints()
}

// Composites returns the assemblies in insertion order.
func (r *Registry) Composites() []*physics.Composite {
	return r.sim.Composites()
}

// CompositeBodies flattens every assembly into its bodies.
func (r *Registry) CompositeBodies() []*physics.Body {
	var out []*physics.Body
	for _, c := range r.sim.Composites() {
		out = append(out, c.Bodies...)
	}
	return out
}

// FindConstraintByName returns the live holder of a role, or nil.
func (r *Registry) FindConstraintByName(name string) *physics.Constraint {
	return r.roles[name]
}

// FindBody looks a body up by id, including composite parts. It returns nil
// when the body has been removed.
func (r *Registry) FindBody(id uint64) *physics.Body {
	return r.index[id]
}

// Contains reports whether b is currently in the world.
func (r *Registry) Contains(b *physics.Body) bool {
	return b != nil && r.index[b.ID] == b
}

// OnBodyRemoved registers h to run after every successful RemoveBody.
func (r *Registry) OnBodyRemoved(h RemovalHook) {
	r.hooks = append(r.hooks, h)
}

// OnCollisionStart forwards to the adapter.
func (r *Registry) OnCollisionStart(h physics.CollisionHandler) {
	r.sim.OnCollisionStart(h)
}

// Step advances the simulation by one step.
func (r *Registry) Step(dt time.Duration) {
	r.sim.Step(dt)
}

// Counts reports how many bodies (top-level plus composite parts) and
// top-level constraints the world holds.
func (r *Registry) Counts() (bodies, constraints int) {
	return len(r.index), len(r.sim.Constraints())
}
