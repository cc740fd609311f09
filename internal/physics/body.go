package physics

import (
	"fmt"
	"math"
)

// Kind classifies who authored a body and who owns its lifetime.
type Kind int

const (
	// KindScenery bodies are static and authored by the scene.
	KindScenery Kind = iota + 1
	// KindSpawned bodies are dynamic and owned by the world.
	KindSpawned
	// KindCursor is the per-session marker that tracks the raw pointer.
	KindCursor
	// KindFollower is the per-session body leashed to the cursor.
	KindFollower
	// KindPart is a member of a composite assembly.
	KindPart
)

// String returns a short name for logs.
func (k Kind) String() string {
	switch k {
	case KindScenery:
		return "scenery"
	case KindSpawned:
		return "spawned"
	case KindCursor:
		return "avatar-cursor"
	case KindFollower:
		return "avatar-follower"
	case KindPart:
		return "composite-part"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// BodyDef is everything needed to create a body.
type BodyDef struct {
	Label    string
	Name     string
	Kind     Kind
	Shape    Shape
	Position Vec
	Angle    float64
	Material Material

	// Kinematic bodies are moved by input rather than forces. They are
	// reported as static.
	Kinematic bool

	// FixedRotation gives the body infinite rotational inertia.
	FixedRotation bool

	Hidden bool

	// Group is a collision group. Bodies sharing a non-zero group never
	// collide with each other.
	Group int
}

// BodyHandle is the simulation engine's live view of a body.
type BodyHandle interface {
	Position() Vec
	SetPosition(p Vec)
	Angle() float64
}

// Body is a simulated rigid object.
//
// Identity, kind and geometry are fixed at creation. Position and angle are
// read through the engine handle so they always reflect the latest step.
type Body struct {
	ID            uint64
	Label         string
	Name          string
	Kind          Kind
	Shape         Shape
	Material      Material
	Kinematic     bool
	FixedRotation bool
	Hidden        bool
	Group         int

	// Mass is density times area, or +Inf for static and kinematic bodies.
	Mass float64

	// Colliding is set on collision start and cleared shortly after.
	Colliding bool

	handle   BodyHandle
	position Vec
	angle    float64
}

// NewBody builds a body from its definition. Adapters call this after they
// have created the engine-side object; h may be nil for detached bodies.
func NewBody(id uint64, def BodyDef, h BodyHandle) *Body {
	b := &Body{
		ID:            id,
		Label:         def.Label,
		Name:          def.Name,
		Kind:          def.Kind,
		Shape:         def.Shape,
		Material:      def.Material,
		Kinematic:     def.Kinematic,
		FixedRotation: def.FixedRotation,
		Hidden:        def.Hidden,
		Group:         def.Group,
		handle:        h,
		position:      def.Position,
		angle:         def.Angle,
	}
	if b.Static() {
		b.Mass = math.Inf(1)
	} else {
		b.Mass = def.Material.Density * def.Shape.Area()
	}
	return b
}

// Handle returns the engine-side object.
func (b *Body) Handle() BodyHandle {
	return b.handle
}

// Static reports whether the solver treats the body as immovable.
func (b *Body) Static() bool {
	return b.Material.Static || b.Kinematic
}

// Visible reports whether clients should draw the body.
func (b *Body) Visible() bool {
	return !b.Hidden
}

// Position returns the body's centre in world space.
func (b *Body) Position() Vec {
	if b.handle == nil {
		return b.position
	}
	return b.handle.Position()
}

// SetPosition teleports the body.
func (b *Body) SetPosition(p Vec) {
	if b.handle == nil {
		b.position = p
		return
	}
	b.handle.SetPosition(p)
}

// Angle returns the body's rotation in radians.
func (b *Body) Angle() float64 {
	if b.handle == nil {
		return b.angle
	}
	return b.handle.Angle()
}

// Vertices returns the body outline in world space.
func (b *Body) Vertices() []Vec {
	pos, angle := b.Position(), b.Angle()
	local := b.Shape.LocalVertices()
	world := make([]Vec, len(local))
	for i, v := range local {
		world[i] = v.Rotate(angle).Add(pos)
	}
	return world
}

// Bounds returns the axis-aligned box around the outline.
func (b *Body) Bounds() Bounds {
	return BoundsOf(b.Vertices())
}

// HalfWidth is half the horizontal extent of the body's bounds.
func (b *Body) HalfWidth() float64 {
	return b.Bounds().Width() / 2
}

// Part is one convex piece of a body.
type Part struct {
	Shape    Shape
	Position Vec
	Angle    float64
	Vertices []Vec
	Mass     float64
	Static   bool
	Visible  bool
}

// Parts decomposes the body into convex parts. Every body built by this
// package is a single part.
func (b *Body) Parts() []Part {
	return []Part{{
		Shape:    b.Shape,
		Position: b.Position(),
		Angle:    b.Angle(),
		Vertices: b.Vertices(),
		Mass:     b.Mass,
		Static:   b.Static(),
		Visible:  b.Visible(),
	}}
}

// String identifies the body in logs.
func (b *Body) String() string {
	if b.Name != "" {
		return fmt.Sprintf("%s#%d(%s)", b.Label, b.ID, b.Name)
	}
	return fmt.Sprintf("%s#%d", b.Label, b.ID)
}
