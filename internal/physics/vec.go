package physics

import "math"

// Vec is a point or direction in world space.
// Screen convention: X grows right, Y grows down.
type Vec struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Add returns v + o.
func (v Vec) Add(o Vec) Vec {
	return Vec{X: v.X + o.X, Y: v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec) Sub(o Vec) Vec {
	return Vec{X: v.X - o.X, Y: v.Y - o.Y}
}

// Scale returns v * s.
func (v Vec) Scale(s float64) Vec {
	return Vec{X: v.X * s, Y: v.Y * s}
}

// Len returns the euclidean length of v.
func (v Vec) Len() float64 {
	return math.Hypot(v.X, v.Y)
}

// Finite reports whether both coordinates are neither NaN nor infinite.
func (v Vec) Finite() bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// Rotate returns v rotated by angle radians around the origin.
// A zero angle returns v unchanged so that unrotated geometry stays exact.
func (v Vec) Rotate(angle float64) Vec {
	if angle == 0 {
		return v
	}
	sin, cos := math.Sincos(angle)
	return Vec{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Min Vec
	Max Vec
}

// Width is the horizontal extent of the box.
func (b Bounds) Width() float64 {
	return b.Max.X - b.Min.X
}

// Height is the vertical extent of the box.
func (b Bounds) Height() float64 {
	return b.Max.Y - b.Min.Y
}

// BoundsOf returns the smallest box containing every point.
// An empty slice yields the zero box.
func BoundsOf(points []Vec) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}
