// Package physics defines the data model shared with the rigid-body engine
// and the narrow contract the rest of the server drives it through.
//
// The engine owns authoritative physical state. Nothing outside an Adapter
// implementation touches engine objects directly; bodies and constraints
// expose what the server needs (position, angle, outline) through handles.
//
// Adapters are not safe for concurrent use. The engine package serialises
// every call behind its single-writer loop.
package physics

import "time"

// CollisionHandler receives the pairs that started touching during a step.
type CollisionHandler func(pairs []Pair)

// Adapter is the operational interface to a rigid-body engine.
type Adapter interface {
	// CreateBody builds a body without adding it to the world.
	CreateBody(def BodyDef) *Body
	// CreateConstraint builds a constraint without adding it to the world.
	CreateConstraint(def ConstraintDef) *Constraint

	AddBody(b *Body)
	// RemoveBody returns false when b was not in the world.
	RemoveBody(b *Body) bool
	AddConstraint(c *Constraint)
	// RemoveConstraint returns false when c was not in the world.
	RemoveConstraint(c *Constraint) bool
	// AddComposite adds every body and constraint of the assembly. They are
	// reported through Composites, not Bodies or Constraints.
	AddComposite(c *Composite)

	// Step advances the simulation by exactly one step of dt. Collision
	// handlers run after the step completes, never during it.
	Step(dt time.Duration)

	// Bodies returns the top-level bodies in insertion order.
	Bodies() []*Body
	// Constraints returns the top-level constraints in insertion order.
	Constraints() []*Constraint
	// Composites returns the assemblies in insertion order.
	Composites() []*Composite

	// OnCollisionStart registers h for every subsequent step.
	OnCollisionStart(h CollisionHandler)
}
