// Package scene describes the world a server starts with: the fixed
// walls, the loose bodies and the assemblies dropped into it before any
// participant connects.
//
// Scenes are written in YAML or CUE. Both decode into the same Scene
// value; CUE files are also checked against an embedded schema.
package scene

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/world"
)

// Shape names accepted in scene files.
const (
	ShapeRectangle = "rectangle"
	ShapeCircle    = "circle"
	ShapePolygon   = "polygon"
)

// Labels carried by bodies built from scene files.
var shapeLabels = map[string]string{
	ShapeRectangle: "Rectangle Body",
	ShapeCircle:    "Circle Body",
	ShapePolygon:   "Polygon Body",
}

//go:embed default.yaml
var defaultScene []byte

// Scene is a starting world.
type Scene struct {
	Name    string      `yaml:"name" json:"name"`
	Gravity physics.Vec `yaml:"gravity" json:"gravity"`
	Bodies  []Body      `yaml:"bodies" json:"bodies"`
	Cars    []Car       `yaml:"cars" json:"cars"`
}

// Body is one loose body.
type Body struct {
	Shape    string  `yaml:"shape" json:"shape"`
	X        float64 `yaml:"x" json:"x"`
	Y        float64 `yaml:"y" json:"y"`
	Angle    float64 `yaml:"angle" json:"angle"`
	Width    float64 `yaml:"width" json:"width"`
	Height   float64 `yaml:"height" json:"height"`
	Radius   float64 `yaml:"radius" json:"radius"`
	Sides    int     `yaml:"sides" json:"sides"`
	Material string  `yaml:"material" json:"material"`
	Name     string  `yaml:"name" json:"name"`
	Hidden   bool    `yaml:"hidden" json:"hidden"`
}

// Car is a chassis on two wheels.
type Car struct {
	X         float64 `yaml:"x" json:"x"`
	Y         float64 `yaml:"y" json:"y"`
	Width     float64 `yaml:"width" json:"width"`
	Height    float64 `yaml:"height" json:"height"`
	WheelSize float64 `yaml:"wheelSize" json:"wheelSize"`
	Name      string  `yaml:"name" json:"name"`
}

// Default returns the built-in scene.
func Default() (*Scene, error) {
	return ParseYAML(defaultScene)
}

// ValidationError points at the offending entry of a scene.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks every body and car. All problems are reported, joined.
func (s *Scene) Validate() error {
	var errs []error
	for i, b := range s.Bodies {
		field := fmt.Sprintf("bodies[%d]", i)
		shape, err := b.shape()
		if err != nil {
			errs = append(errs, &ValidationError{Field: field, Message: err.Error()})
			continue
		}
		if err := shape.Validate(); err != nil {
			errs = append(errs, &ValidationError{Field: field, Message: err.Error()})
		}
		if _, err := physics.Profile(b.Material); err != nil {
			errs = append(errs, &ValidationError{Field: field + ".material", Message: err.Error()})
		}
	}
	for i, c := range s.Cars {
		if c.Width <= 0 || c.Height <= 0 || c.WheelSize <= 0 {
			errs = append(errs, &ValidationError{
				Field:   fmt.Sprintf("cars[%d]", i),
				Message: fmt.Sprintf("car needs positive width, height and wheelSize, got %gx%g wheels %g", c.Width, c.Height, c.WheelSize),
			})
		}
	}
	return errors.Join(errs...)
}

// Build adds the scene's bodies and cars to w. The scene must be valid.
func (s *Scene) Build(w *world.Registry) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("scene %q: %w", s.Name, err)
	}
	for _, b := range s.Bodies {
		shape, _ := b.shape()
		material, _ := physics.Profile(b.Material)
		kind := physics.KindSpawned
		if material.Static {
			kind = physics.KindScenery
		}
		w.AddBody(w.CreateBody(physics.BodyDef{
			Label:    shapeLabels[b.Shape],
			Name:     b.Name,
			Kind:     kind,
			Shape:    shape,
			Position: physics.Vec{X: b.X, Y: b.Y},
			Angle:    b.Angle,
			Material: material,
			Hidden:   b.Hidden,
		}))
	}
	for i, c := range s.Cars {
		comp := BuildCar(w, c)
		comp.ID = uint64(i + 1)
		w.AddComposite(comp)
	}
	return nil
}

func (b Body) shape() (physics.Shape, error) {
	switch b.Shape {
	case ShapeRectangle:
		return physics.Rect(b.Width, b.Height), nil
	case ShapeCircle:
		return physics.Circle(b.Radius), nil
	case ShapePolygon:
		return physics.Polygon(b.Sides, b.Radius), nil
	default:
		return physics.Shape{}, fmt.Errorf("unknown shape %q", b.Shape)
	}
}
