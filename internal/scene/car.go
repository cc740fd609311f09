package scene

import (
	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/world"
)

// Car geometry.
const (
	// wheelBase is how far each wheel sits in from the chassis end.
	wheelBase = 20

	chassisDensity = 0.0002
	wheelFriction  = 0.8
)

// BuildCar creates the bodies and axles of c without adding them to w.
// The chassis and wheels share a collision group, so the wheels turn
// freely inside the chassis outline. Each axle is a zero-length rigid
// spring from the wheel centre to a point on the chassis.
func BuildCar(w *world.Registry, c Car) *physics.Composite {
	group := w.NextGroup()
	name := c.Name
	if name == "" {
		name = "Car"
	}

	chassis := w.CreateBody(physics.BodyDef{
		Label:    shapeLabels[ShapeRectangle],
		Name:     name,
		Kind:     physics.KindPart,
		Shape:    physics.Rect(c.Width, c.Height),
		Position: physics.Vec{X: c.X, Y: c.Y},
		Material: physics.Material{Density: chassisDensity, Friction: physics.Default.Friction},
		Group:    group,
	})

	offsets := []float64{-c.Width/2 + wheelBase, c.Width/2 - wheelBase}
	comp := &physics.Composite{
		Label:  "Car",
		Bodies: []*physics.Body{chassis},
	}
	for _, dx := range offsets {
		wheel := w.CreateBody(physics.BodyDef{
			Label:    shapeLabels[ShapeCircle],
			Kind:     physics.KindPart,
			Shape:    physics.Circle(c.WheelSize),
			Position: physics.Vec{X: c.X + dx, Y: c.Y},
			Material: physics.Material{Density: physics.Default.Density, Friction: wheelFriction},
			Group:    group,
		})
		axle := w.CreateConstraint(physics.ConstraintDef{
			BodyA:     wheel,
			BodyB:     chassis,
			PointB:    physics.Vec{X: dx},
			Stiffness: 1,
		})
		comp.Bodies = append(comp.Bodies, wheel)
		comp.Constraints = append(comp.Constraints, axle)
	}
	return comp
}
