// Package snapshot converts the world into the view sent to clients on
// every tick.
//
// Field names and presence follow the wire format clients render from:
// radius only on circles, width and height only on rectangles,
// circleRadius only on circular parts, and mass null for static bodies.
// The struct tags are the single source of truth for both the JSON and
// the msgpack encodings.
package snapshot

import (
	"math"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/world"
)

// Render carries drawing hints.
type Render struct {
	Visible bool `json:"visible"`
}

// VertexView is one outline point in world space.
type VertexView struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Internal bool    `json:"internal"`
}

// PartView is one convex piece of a body.
type PartView struct {
	Render       Render       `json:"render"`
	CircleRadius *float64     `json:"circleRadius,omitempty"`
	Mass         *float64     `json:"mass"`
	Position     physics.Vec  `json:"position"`
	Angle        float64      `json:"angle"`
	Vertices     []VertexView `json:"vertices"`
	IsStatic     bool         `json:"isStatic"`
}

// BodyView is one body.
type BodyView struct {
	ID          uint64      `json:"id"`
	Parts       []PartView  `json:"parts"`
	Render      Render      `json:"render"`
	Position    physics.Vec `json:"position"`
	Width       *float64    `json:"width,omitempty"`
	Height      *float64    `json:"height,omitempty"`
	Radius      *float64    `json:"radius,omitempty"`
	Angle       float64     `json:"angle"`
	Label       string      `json:"label"`
	Mass        *float64    `json:"mass"`
	Name        string      `json:"name"`
	IsColliding bool        `json:"isColliding"`
}

// ConstraintView is one constraint. An endpoint pinned to the world has a
// null body position; its anchor is then in PointA or PointB.
type ConstraintView struct {
	BodyA  *physics.Vec `json:"bodyA"`
	BodyB  *physics.Vec `json:"bodyB"`
	Render Render       `json:"render"`
	Length float64      `json:"length"`
	PointA physics.Vec  `json:"pointA"`
	PointB physics.Vec  `json:"pointB"`
}

// Snapshot is one tick's view of the world.
type Snapshot struct {
	Bodies      []BodyView       `json:"bodies"`
	Constraints []ConstraintView `json:"constraints"`
}

// Build serializes w: the top-level bodies, then the bodies of every
// composite, then the top-level constraints. It only reads the world, so
// two builds with no mutation in between are equal.
func Build(w *world.Registry) Snapshot {
	top := w.AllBodies()
	parts := w.CompositeBodies()
	constraints := w.AllConstraints()

	snap := Snapshot{
		Bodies:      make([]BodyView, 0, len(top)+len(parts)),
		Constraints: make([]ConstraintView, 0, len(constraints)),
	}
	for _, b := range top {
		snap.Bodies = append(snap.Bodies, Body(b))
	}
	for _, b := range parts {
		snap.Bodies = append(snap.Bodies, Body(b))
	}
	for _, c := range constraints {
		snap.Constraints = append(snap.Constraints, Constraint(c))
	}
	return snap
}

// Body builds the view of a single body.
func Body(b *physics.Body) BodyView {
	v := BodyView{
		ID:          b.ID,
		Render:      Render{Visible: b.Visible()},
		Position:    b.Position(),
		Angle:       b.Angle(),
		Label:       b.Label,
		Mass:        mass(b.Mass),
		Name:        b.Name,
		IsColliding: b.Colliding,
	}
	switch b.Shape.Type {
	case physics.ShapeRectangle:
		v.Width = ptr(b.Shape.Width)
		v.Height = ptr(b.Shape.Height)
	case physics.ShapeCircle:
		v.Radius = ptr(b.Shape.Radius)
	}

	for _, p := range b.Parts() {
		pv := PartView{
			Render:   Render{Visible: p.Visible},
			Mass:     mass(p.Mass),
			Position: p.Position,
			Angle:    p.Angle,
			Vertices: make([]VertexView, len(p.Vertices)),
			IsStatic: p.Static,
		}
		if p.Shape.Type == physics.ShapeCircle {
			pv.CircleRadius = ptr(p.Shape.Radius)
		}
		for i, vert := range p.Vertices {
			pv.Vertices[i] = VertexView{X: vert.X, Y: vert.Y}
		}
		v.Parts = append(v.Parts, pv)
	}
	return v
}

// Constraint builds the view of a single constraint.
func Constraint(c *physics.Constraint) ConstraintView {
	v := ConstraintView{
		Render: Render{Visible: c.Visible()},
		Length: c.Length,
		PointA: c.PointA,
		PointB: c.PointB,
	}
	if c.BodyA != nil {
		p := c.BodyA.Position()
		v.BodyA = &p
	}
	if c.BodyB != nil {
		p := c.BodyB.Position()
		v.BodyB = &p
	}
	return v
}

// mass maps the infinite mass of static bodies to null.
func mass(m float64) *float64 {
	if math.IsInf(m, 0) || math.IsNaN(m) {
		return nil
	}
	return ptr(m)
}

func ptr(f float64) *float64 {
	return &f
}
