package physics

import "fmt"

// ConstraintDef describes a spring link between two bodies, or between a
// body and a fixed world point when BodyA is nil.
type ConstraintDef struct {
	// Name tags constraints that play a role (e.g. "pick"). Untagged
	// constraints are anonymous.
	Name string

	BodyA *Body
	BodyB *Body

	// PointA and PointB are anchors local to their bodies. With a nil
	// BodyA, PointA is a world position.
	PointA Vec
	PointB Vec

	// Length is the rest length.
	Length float64

	// Stiffness is normalised to (0, 1]: 1 is near-rigid.
	Stiffness float64

	Hidden bool
}

// Constraint is a live link in the simulation.
type Constraint struct {
	ID uint64
	ConstraintDef
	handle any
}

// NewConstraint wraps an engine-side constraint object.
func NewConstraint(id uint64, def ConstraintDef, handle any) *Constraint {
	return &Constraint{ID: id, ConstraintDef: def, handle: handle}
}

// Handle returns the engine-side object.
func (c *Constraint) Handle() any {
	return c.handle
}

// Visible reports whether clients should draw the constraint.
func (c *Constraint) Visible() bool {
	return !c.Hidden
}

// References reports whether b is one of the constraint's endpoints.
func (c *Constraint) References(b *Body) bool {
	return b != nil && (c.BodyA == b || c.BodyB == b)
}

// String identifies the constraint in logs.
func (c *Constraint) String() string {
	if c.Name != "" {
		return fmt.Sprintf("constraint#%d(%s)", c.ID, c.Name)
	}
	return fmt.Sprintf("constraint#%d", c.ID)
}

// Composite is a multi-body assembly such as a car. The engine treats it as
// one unit; lookups flatten it into its bodies.
type Composite struct {
	ID          uint64
	Label       string
	Bodies      []*Body
	Constraints []*Constraint
}

// Pair is two bodies whose shapes started touching during a step.
type Pair struct {
	A *Body
	B *Body
}
