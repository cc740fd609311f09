package transport

import (
	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/snapshot"
)

// Inbound message types.
const (
	TypeCursorMove = "cursorMove"
	TypePick       = "pick"
	TypeRelease    = "release"
	TypeSpawnAt    = "spawnAt"
)

// TypeSync is the outbound snapshot message.
const TypeSync = "sync"

// legacyTypes maps the event names older clients send.
var legacyTypes = map[string]string{
	"mouseMoved":         TypeCursorMove,
	"mouseClicked":       TypePick,
	"mouseReleased":      TypeRelease,
	"mouseDoubleClicked": TypeSpawnAt,
}

// Input is the payload of every inbound message. Fields a type does not
// use are ignored.
type Input struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	IsBind bool    `json:"isBind,omitempty"`
}

// Point returns the input position.
func (in Input) Point() physics.Vec {
	return physics.Vec{X: in.X, Y: in.Y}
}

// Inbound is a client to server message.
type Inbound struct {
	Type string `json:"type"`
	Data Input  `json:"data"`
}

// Outbound is a server to client message.
type Outbound struct {
	Type string            `json:"type"`
	Data snapshot.Snapshot `json:"data"`
}

// canonicalType resolves legacy aliases. Unknown types are returned as-is.
func canonicalType(t string) string {
	if c, ok := legacyTypes[t]; ok {
		return c
	}
	return t
}
