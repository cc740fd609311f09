package physics

import (
	"fmt"
	"math"
)

// ShapeType identifies the geometry of a body.
type ShapeType int

const (
	// ShapeRectangle is an axis-aligned box of Width x Height in local space.
	ShapeRectangle ShapeType = iota + 1
	// ShapeCircle is a disc of Radius.
	ShapeCircle
	// ShapePolygon is a regular polygon with Sides vertices on a circle of Radius.
	ShapePolygon
)

// String returns the lowercase name used in scene files.
func (t ShapeType) String() string {
	switch t {
	case ShapeRectangle:
		return "rectangle"
	case ShapeCircle:
		return "circle"
	case ShapePolygon:
		return "polygon"
	default:
		return fmt.Sprintf("shape(%d)", int(t))
	}
}

// Shape describes body geometry independent of position and rotation.
type Shape struct {
	Type   ShapeType
	Width  float64
	Height float64
	Radius float64
	Sides  int
}

// Rect returns a rectangle shape.
func Rect(width, height float64) Shape {
	return Shape{Type: ShapeRectangle, Width: width, Height: height}
}

// Circle returns a circle shape.
func Circle(radius float64) Shape {
	return Shape{Type: ShapeCircle, Radius: radius}
}

// Polygon returns a regular polygon shape.
func Polygon(sides int, radius float64) Shape {
	return Shape{Type: ShapePolygon, Sides: sides, Radius: radius}
}

// Validate reports geometry that cannot be simulated.
func (s Shape) Validate() error {
	switch s.Type {
	case ShapeRectangle:
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("rectangle needs positive width and height, got %gx%g", s.Width, s.Height)
		}
	case ShapeCircle:
		if s.Radius <= 0 {
			return fmt.Errorf("circle needs positive radius, got %g", s.Radius)
		}
	case ShapePolygon:
		if s.Sides < 3 {
			return fmt.Errorf("polygon needs at least 3 sides, got %d", s.Sides)
		}
		if s.Radius <= 0 {
			return fmt.Errorf("polygon needs positive radius, got %g", s.Radius)
		}
	default:
		return fmt.Errorf("unknown shape type %d", int(s.Type))
	}
	return nil
}

// Area returns the exact area of the shape.
func (s Shape) Area() float64 {
	switch s.Type {
	case ShapeRectangle:
		return s.Width * s.Height
	case ShapeCircle:
		return math.Pi * s.Radius * s.Radius
	case ShapePolygon:
		return 0.5 * float64(s.Sides) * s.Radius * s.Radius * math.Sin(2*math.Pi/float64(s.Sides))
	default:
		return 0
	}
}

// circleSides is the number of vertices used to outline a circle of radius r.
// Clients draw circles from circleRadius; the outline only feeds bounds.
func circleSides(r float64) int {
	return int(math.Ceil(math.Max(10, math.Min(25, r))))
}

// LocalVertices returns the outline of the shape centred on the origin,
// clockwise in screen space starting from the top-left for rectangles.
func (s Shape) LocalVertices() []Vec {
	switch s.Type {
	case ShapeRectangle:
		hw, hh := s.Width/2, s.Height/2
		return []Vec{
			{X: -hw, Y: -hh},
			{X: hw, Y: -hh},
			{X: hw, Y: hh},
			{X: -hw, Y: hh},
		}
	case ShapeCircle:
		return regularVertices(circleSides(s.Radius), s.Radius)
	case ShapePolygon:
		return regularVertices(s.Sides, s.Radius)
	default:
		return nil
	}
}

func regularVertices(sides int, radius float64) []Vec {
	if sides < 3 {
		return nil
	}
	theta := 2 * math.Pi / float64(sides)
	offset := theta / 2
	verts := make([]Vec, sides)
	for i := range verts {
		angle := offset + float64(i)*theta
		sin, cos := math.Sincos(angle)
		verts[i] = Vec{X: cos * radius, Y: sin * radius}
	}
	return verts
}
