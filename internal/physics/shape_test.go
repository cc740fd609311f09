package physics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShape_Validate(t *testing.T) {
	tests := []struct {
		name    string
		shape   Shape
		wantErr string
	}{
		{name: "rectangle", shape: Rect(10, 20)},
		{name: "circle", shape: Circle(5)},
		{name: "polygon", shape: Polygon(5, 30)},
		{name: "flat rectangle", shape: Rect(10, 0), wantErr: "positive width and height"},
		{name: "negative radius", shape: Circle(-1), wantErr: "positive radius"},
		{name: "two sides", shape: Polygon(2, 10), wantErr: "at least 3 sides"},
		{name: "polygon without radius", shape: Polygon(6, 0), wantErr: "positive radius"},
		{name: "zero value", shape: Shape{}, wantErr: "unknown shape type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.shape.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestShape_Area(t *testing.T) {
	assert.Equal(t, 200.0, Rect(10, 20).Area())
	assert.InDelta(t, math.Pi*25, Circle(5).Area(), 1e-9)
	// A square inscribed in a circle of radius r has area 2r².
	assert.InDelta(t, 2*10*10, Polygon(4, 10).Area(), 1e-9)
	assert.Zero(t, Shape{}.Area())
}

func TestShape_LocalVerticesRectangle(t *testing.T) {
	verts := Rect(40, 20).LocalVertices()
	assert.Equal(t, []Vec{
		{X: -20, Y: -10},
		{X: 20, Y: -10},
		{X: 20, Y: 10},
		{X: -20, Y: 10},
	}, verts)
}

func TestShape_LocalVerticesRegular(t *testing.T) {
	verts := Polygon(6, 30).LocalVertices()
	require.Len(t, verts, 6)
	for _, v := range verts {
		assert.InDelta(t, 30, v.Len(), 1e-9)
	}

	// Circles are outlined with between 10 and 25 vertices.
	assert.Len(t, Circle(3).LocalVertices(), 10)
	assert.Len(t, Circle(20).LocalVertices(), 20)
	assert.Len(t, Circle(80).LocalVertices(), 25)

	assert.Nil(t, Shape{}.LocalVertices())
}

func TestShapeType_String(t *testing.T) {
	assert.Equal(t, "rectangle", ShapeRectangle.String())
	assert.Equal(t, "circle", ShapeCircle.String())
	assert.Equal(t, "polygon", ShapePolygon.String())
	assert.Equal(t, "shape(9)", ShapeType(9).String())
}
