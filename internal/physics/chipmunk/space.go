// Package chipmunk implements physics.Adapter on top of the Chipmunk2D port
// github.com/jakecoffman/cp.
//
// Springs are Chipmunk damped springs. The server speaks in normalised
// stiffness (0..1]; Space converts it to a spring constant from the reduced
// mass of the two endpoints so that a stiffness of 1 oscillates at the
// configured frequency regardless of how heavy the bodies are.
package chipmunk

import (
	"fmt"
	"math"
	"time"

	"github.com/jakecoffman/cp"

	"github.com/roach88/tether/internal/physics"
)

const (
	// DefaultSpringFrequency is the natural frequency in Hz of a spring with
	// stiffness 1.
	DefaultSpringFrequency = 4.0

	// DefaultDampingRatio is the damping ratio applied to every spring.
	DefaultDampingRatio = 0.5

	// DefaultDamping is the fraction of velocity a body keeps after one second.
	DefaultDamping = 0.5

	// minMass keeps degenerate dynamic bodies solvable.
	minMass = 1e-6
)

// Option configures a Space.
type Option func(*Space)

// WithGravity sets world gravity in units per second squared.
func WithGravity(g physics.Vec) Option {
	return func(s *Space) {
		s.gravity = g
	}
}

// WithSpringFrequency sets the natural frequency of a stiffness-1 spring.
func WithSpringFrequency(hz float64) Option {
	return func(s *Space) {
		if hz > 0 {
			s.springHz = hz
		}
	}
}

// WithDampingRatio sets the damping ratio of springs.
func WithDampingRatio(ratio float64) Option {
	return func(s *Space) {
		if ratio >= 0 {
			s.dampingRatio = ratio
		}
	}
}

// WithDamping sets global velocity damping (1 = none).
func WithDamping(d float64) Option {
	return func(s *Space) {
		if d > 0 && d <= 1 {
			s.damping = d
		}
	}
}

// Space is a Chipmunk world.
//
// Not safe for concurrent use.
type Space struct {
	space *cp.Space

	nextID      uint64
	bodies      []*physics.Body
	constraints []*physics.Constraint
	composites  []*physics.Composite
	owners      map[*cp.Body]*physics.Body

	handlers []physics.CollisionHandler
	pending  []physics.Pair

	gravity      physics.Vec
	springHz     float64
	dampingRatio float64
	damping      float64
}

var _ physics.Adapter = (*Space)(nil)

// New creates an empty world.
func New(opts ...Option) *Space {
	s := &Space{
		space:        cp.NewSpace(),
		owners:       make(map[*cp.Body]*physics.Body),
		springHz:     DefaultSpringFrequency,
		dampingRatio: DefaultDampingRatio,
		damping:      DefaultDamping,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.space.SetGravity(toCP(s.gravity))
	s.space.SetDamping(s.damping)

	// Every shape keeps the default collision type, so one handler sees
	// every new contact.
	handler := s.space.NewCollisionHandler(0, 0)
	handler.BeginFunc = s.begin

	return s
}

type bodyHandle struct {
	body      *cp.Body
	shape     *cp.Shape
	added     bool
	composite bool
}

func (h *bodyHandle) Position() physics.Vec {
	return fromCP(h.body.Position())
}

func (h *bodyHandle) SetPosition(p physics.Vec) {
	h.body.SetPosition(toCP(p))
}

func (h *bodyHandle) Angle() float64 {
	return h.body.Angle()
}

type constraintHandle struct {
	constraint *cp.Constraint
	added      bool
	composite  bool
}

// CreateBody implements physics.Adapter.
func (s *Space) CreateBody(def physics.BodyDef) *physics.Body {
	s.nextID++

	var body *cp.Body
	switch {
	case def.Kinematic:
		body = cp.NewKinematicBody()
	case def.Material.Static:
		body = cp.NewStaticBody()
	default:
		mass := math.Max(def.Material.Density*def.Shape.Area(), minMass)
		moment := cp.INFINITY
		if !def.FixedRotation {
			moment = momentFor(def.Shape, mass)
		}
		body = cp.NewBody(mass, moment)
	}
	body.SetPosition(toCP(def.Position))
	body.SetAngle(def.Angle)

	shape := newShape(body, def.Shape)
	shape.SetFriction(def.Material.Friction)
	shape.SetElasticity(def.Material.Restitution)
	if def.Group != 0 {
		shape.SetFilter(cp.NewShapeFilter(uint(def.Group), cp.ALL_CATEGORIES, cp.ALL_CATEGORIES))
	}

	b := physics.NewBody(s.nextID, def, &bodyHandle{body: body, shape: shape})
	s.owners[body] = b
	return b
}

// CreateConstraint implements physics.Adapter. A nil endpoint is pinned to
// the world's static body, with its point read as a world position.
func (s *Space) CreateConstraint(def physics.ConstraintDef) *physics.Constraint {
	s.nextID++

	a := s.space.StaticBody
	if def.BodyA != nil {
		a = mustHandle(def.BodyA).body
	}
	b := s.space.StaticBody
	if def.BodyB != nil {
		b = mustHandle(def.BodyB).body
	}

	k, damping := s.spring(def.Stiffness, def.BodyA, def.BodyB)
	spring := cp.NewDampedSpring(a, b, toCP(def.PointA), toCP(def.PointB), def.Length, k, damping)

	return physics.NewConstraint(s.nextID, def, &constraintHandle{constraint: spring})
}

// AddBody implements physics.Adapter.
func (s *Space) AddBody(b *physics.Body) {
	if s.attach(b, false) {
		s.bodies = append(s.bodies, b)
	}
}

// RemoveBody implements physics.Adapter. Composite parts cannot be removed
// on their own.
func (s *Space) RemoveBody(b *physics.Body) bool {
	h, ok := b.Handle().(*bodyHandle)
	if !ok || !h.added || h.composite {
		return false
	}
	s.space.RemoveShape(h.shape)
	s.space.RemoveBody(h.body)
	h.added = false
	delete(s.owners, h.body)

	for i, existing := range s.bodies {
		if existing == b {
			s.bodies = append(s.bodies[:i], s.bodies[i+1:]...)
			break
		}
	}
	return true
}

// AddConstraint implements physics.Adapter.
func (s *Space) AddConstraint(c *physics.Constraint) {
	if s.attachConstraint(c, false) {
		s.constraints = append(s.constraints, c)
	}
}

// RemoveConstraint implements physics.Adapter.
func (s *Space) RemoveConstraint(c *physics.Constraint) bool {
	h, ok := c.Handle().(*constraintHandle)
	if !ok || !h.added || h.composite {
		return false
	}
	s.space.RemoveConstraint(h.constraint)
	h.added = false

	for i, existing := range s.constraints {
		if existing == c {
			s.constraints = append(s.constraints[:i], s.constraints[i+1:]...)
			break
		}
	}
	return true
}

// AddComposite implements physics.Adapter.
func (s *Space) AddComposite(c *physics.Composite) {
	for _, b := range c.Bodies {
		s.attach(b, true)
	}
	for _, con := range c.Constraints {
		s.attachConstraint(con, true)
	}
	s.composites = append(s.composites, c)
}

// Step implements physics.Adapter.
func (s *Space) Step(dt time.Duration) {
	s.pending = s.pending[:0]
	s.space.Step(dt.Seconds())
	if len(s.pending) == 0 {
		return
	}

	pairs := make([]physics.Pair, len(s.pending))
	copy(pairs, s.pending)
	for _, h := range s.handlers {
		h(pairs)
	}
}

// Bodies implements physics.Adapter.
func (s *Space) Bodies() []*physics.Body {
	return append([]*physics.Body(nil), s.bodies...)
}

// Constraints implements physics.Adapter.
func (s *Space) Constraints() []*physics.Constraint {
	return append([]*physics.Constraint(nil), s.constraints...)
}

// Composites implements physics.Adapter.
func (s *Space) Composites() []*physics.Composite {
	return append([]*physics.Composite(nil), s.composites...)
}

// OnCollisionStart implements physics.Adapter.
func (s *Space) OnCollisionStart(h physics.CollisionHandler) {
	s.handlers = append(s.handlers, h)
}

// begin runs inside cp.Space.Step, while the space is locked. It only
// records the pair; handlers run once the step has finished.
func (s *Space) begin(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
	a, b := arb.Bodies()
	pa, pb := s.owners[a], s.owners[b]
	if pa != nil && pb != nil {
		s.pending = append(s.pending, physics.Pair{A: pa, B: pb})
	}
	return true
}

func (s *Space) attach(b *physics.Body, composite bool) bool {
	h := mustHandle(b)
	if h.added {
		return false
	}
	s.space.AddBody(h.body)
	s.space.AddShape(h.shape)
	h.added = true
	h.composite = composite
	s.owners[h.body] = b
	return true
}

func (s *Space) attachConstraint(c *physics.Constraint, composite bool) bool {
	h, ok := c.Handle().(*constraintHandle)
	if !ok {
		panic(fmt.Sprintf("chipmunk: %s was not created by this adapter", c))
	}
	if h.added {
		return false
	}
	s.space.AddConstraint(h.constraint)
	h.added = true
	h.composite = composite
	return true
}

// spring converts normalised stiffness to a spring constant and damping
// coefficient for the reduced mass of the endpoints.
func (s *Space) spring(stiffness float64, a, b *physics.Body) (k, damping float64) {
	m := reducedMass(a, b)
	omega := 2 * math.Pi * s.springHz * math.Sqrt(math.Max(stiffness, 0))
	k = m * omega * omega
	damping = 2 * s.dampingRatio * m * omega
	return k, damping
}

func reducedMass(a, b *physics.Body) float64 {
	ma, mb := dynamicMass(a), dynamicMass(b)
	switch {
	case ma == 0 && mb == 0:
		return 1
	case ma == 0:
		return mb
	case mb == 0:
		return ma
	default:
		return ma * mb / (ma + mb)
	}
}

func dynamicMass(b *physics.Body) float64 {
	if b == nil || b.Static() {
		return 0
	}
	return b.Mass
}

func mustHandle(b *physics.Body) *bodyHandle {
	h, ok := b.Handle().(*bodyHandle)
	if !ok {
		panic(fmt.Sprintf("chipmunk: %s was not created by this adapter", b))
	}
	return h
}

func newShape(body *cp.Body, sh physics.Shape) *cp.Shape {
	switch sh.Type {
	case physics.ShapeRectangle:
		return cp.NewBox(body, sh.Width, sh.Height, 0)
	case physics.ShapeCircle:
		return cp.NewCircle(body, sh.Radius, cp.Vector{})
	default:
		verts := toCPAll(sh.LocalVertices())
		return cp.NewPolyShape(body, len(verts), verts, cp.NewTransformIdentity(), 0)
	}
}

func momentFor(sh physics.Shape, mass float64) float64 {
	switch sh.Type {
	case physics.ShapeRectangle:
		return cp.MomentForBox(mass, sh.Width, sh.Height)
	case physics.ShapeCircle:
		return cp.MomentForCircle(mass, 0, sh.Radius, cp.Vector{})
	default:
		verts := toCPAll(sh.LocalVertices())
		return cp.MomentForPoly(mass, len(verts), verts, cp.Vector{}, 0)
	}
}

func toCP(v physics.Vec) cp.Vector {
	return cp.Vector{X: v.X, Y: v.Y}
}

func fromCP(v cp.Vector) physics.Vec {
	return physics.Vec{X: v.X, Y: v.Y}
}

func toCPAll(vs []physics.Vec) []cp.Vector {
	out := make([]cp.Vector, len(vs))
	for i, v := range vs {
		out[i] = toCP(v)
	}
	return out
}
