// Package interact turns pointer gestures into world mutations: moving the
// avatar cursor, spawning crates, picking a body up with the follower, and
// the two-step bind gesture that permanently links two bodies.
package interact

import (
	"log/slog"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/session"
	"github.com/roach88/tether/internal/world"
)

// PickTag names the role of the drag constraint. There is one pick role for
// the whole world, not one per session.
const PickTag = "pick"

// Gesture tuning defaults.
const (
	// DefaultHitHalfExtent is half the side of the square hit window centred
	// on each body's position. The window ignores the body's real outline.
	DefaultHitHalfExtent = 50.0
	// DefaultPickMargin is added to the picked body's half width to get the
	// rest length of the pick constraint.
	DefaultPickMargin    = 10.0
	DefaultPickStiffness = 1.0
	DefaultBindStiffness = 0.002
	// DefaultSpawnSize is the side of a spawned crate.
	DefaultSpawnSize = 40.0
)

// Controller applies gestures to a world. Not safe for concurrent use.
type Controller struct {
	world  *world.Registry
	logger *slog.Logger

	hitHalfExtent float64
	pickMargin    float64
	pickStiffness float64
	bindStiffness float64
	spawnSize     float64
	spawnMaterial physics.Material
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHitHalfExtent overrides the hit window size.
func WithHitHalfExtent(d float64) Option {
	return func(c *Controller) {
		if d > 0 {
			c.hitHalfExtent = d
		}
	}
}

// WithSpawn overrides the size and material of spawned crates.
func WithSpawn(size float64, m physics.Material) Option {
	return func(c *Controller) {
		if size > 0 {
			c.spawnSize = size
		}
		c.spawnMaterial = m
	}
}

// New creates a controller over w.
func New(w *world.Registry, opts ...Option) *Controller {
	c := &Controller{
		world:         w,
		logger:        slog.Default(),
		hitHalfExtent: DefaultHitHalfExtent,
		pickMargin:    DefaultPickMargin,
		pickStiffness: DefaultPickStiffness,
		bindStiffness: DefaultBindStiffness,
		spawnSize:     DefaultSpawnSize,
		spawnMaterial: physics.Heavy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MoveCursor puts the session's cursor at p. Any point is accepted.
func (c *Controller) MoveCursor(s *session.Session, p physics.Vec) {
	s.Cursor.SetPosition(p)
}

// Spawn adds a crate centred at p and returns it.
func (c *Controller) Spawn(p physics.Vec) *physics.Body {
	b := c.world.CreateBody(physics.BodyDef{
		Label:    "Rectangle Body",
		Name:     "Square",
		Kind:     physics.KindSpawned,
		Shape:    physics.Rect(c.spawnSize, c.spawnSize),
		Position: p,
		Material: c.spawnMaterial,
	})
	c.world.AddBody(b)
	c.logger.Debug("body spawned", "body", b.String(), "x", p.X, "y", p.Y)
	return b
}

// Resolve finds the body under p for s. Top-level bodies are searched
// before composite parts and the first hit wins. The session's own avatar
// bodies are never candidates. Returns nil on a miss.
func (c *Controller) Resolve(s *session.Session, p physics.Vec) *physics.Body {
	if b := c.firstHit(s, c.world.AllBodies(), p); b != nil {
		return b
	}
	return c.firstHit(s, c.world.CompositeBodies(), p)
}

func (c *Controller) firstHit(s *session.Session, bodies []*physics.Body, p physics.Vec) *physics.Body {
	for _, b := range bodies {
		if s != nil && s.Owns(b) {
			continue
		}
		if c.hits(b, p) {
			return b
		}
	}
	return nil
}

func (c *Controller) hits(b *physics.Body, p physics.Vec) bool {
	pos, d := b.Position(), c.hitHalfExtent
	return pos.X-d < p.X && p.X < pos.X+d &&
		pos.Y-d < p.Y && p.Y < pos.Y+d
}

// Pick links the body under p to the session's follower with the pick
// constraint, replacing whatever pick constraint existed. A miss changes
// nothing and returns nil.
func (c *Controller) Pick(s *session.Session, p physics.Vec) *physics.Constraint {
	picked := c.Resolve(s, p)
	if picked == nil {
		return nil
	}

	con := c.world.CreateConstraint(physics.ConstraintDef{
		Name:      PickTag,
		BodyA:     picked,
		BodyB:     s.Follower,
		Length:    picked.HalfWidth() + c.pickMargin,
		Stiffness: c.pickStiffness,
	})
	c.world.AddConstraint(con)

	c.logger.Debug("body picked", "session", s.ID, "body", picked.String())
	return con
}

// Release removes the pick constraint, whoever made it. It reports whether
// there was one.
func (c *Controller) Release(s *session.Session) bool {
	con := c.world.FindConstraintByName(PickTag)
	if con == nil {
		return false
	}
	c.world.RemoveConstraint(con)
	c.logger.Debug("pick released", "session", s.ID)
	return true
}

// Bind handles a click. Without isBind it is a Pick. With isBind it drives
// the session's two-step gesture: the first hit is remembered, the second
// hit on a different body creates a permanent soft constraint between the
// two and the gesture starts over. A miss abandons a gesture in progress.
//
// Bind returns the constraint it created, if any.
func (c *Controller) Bind(s *session.Session, p physics.Vec, isBind bool) *physics.Constraint {
	if !isBind {
		return c.Pick(s, p)
	}

	picked := c.Resolve(s, p)
	if picked == nil {
		s.BindCandidate = nil
		return nil
	}

	first := s.BindCandidate
	if first == nil || !c.world.Contains(first) {
		s.BindCandidate = picked
		return nil
	}
	s.BindCandidate = nil

	if first == picked {
		return nil
	}
	if first.Static() && picked.Static() {
		c.logger.Debug("bind refused: both bodies static",
			"session", s.ID, "a", picked.String(), "b", first.String())
		return nil
	}

	con := c.world.CreateConstraint(physics.ConstraintDef{
		BodyA:     picked,
		BodyB:     first,
		Length:    picked.HalfWidth() + first.HalfWidth(),
		Stiffness: c.bindStiffness,
	})
	c.world.AddConstraint(con)

	c.logger.Debug("bodies bound", "session", s.ID, "a", picked.String(), "b", first.String())
	return con
}
