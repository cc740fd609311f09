package store

import (
	"fmt"
	"time"
)

// Kind classifies journal entries.
type Kind string

const (
	// KindConnect records a session that joined.
	KindConnect Kind = "connect"
	// KindRejected records a connect refused for a missing participant id.
	KindRejected Kind = "rejected"
	// KindDisconnect records a session that left.
	KindDisconnect Kind = "disconnect"
	// KindSpawn records a crate dropped into the world.
	KindSpawn Kind = "spawn"
	// KindCollision records two named bodies touching.
	KindCollision Kind = "collision"
)

// Kinds lists every entry kind in display order.
func Kinds() []Kind {
	return []Kind{KindConnect, KindRejected, KindDisconnect, KindSpawn, KindCollision}
}

// ParseKind validates a kind name. The empty string is not a kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown journal kind %q", s)
}

// Entry is one journal record.
type Entry struct {
	// ID is assigned on append.
	ID   int64 `json:"id"`
	Tick int64 `json:"tick"`
	Kind Kind  `json:"kind"`

	ConnectionID string `json:"connection_id,omitempty"`
	Participant  string `json:"participant,omitempty"`

	// Subject names what the entry is about, e.g. an avatar label or the
	// first body of a collision.
	Subject string `json:"subject,omitempty"`

	// Data holds kind-specific details.
	Data map[string]any `json:"data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Filter narrows Recent.
type Filter struct {
	// Kind selects one kind; empty means all.
	Kind Kind
	// ConnectionID selects one connection; empty means all.
	ConnectionID string
	// Limit caps the result; zero or negative means DefaultLimit.
	Limit int
}

// DefaultLimit is the number of entries Recent returns when no limit is set.
const DefaultLimit = 50
