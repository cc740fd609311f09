// Package session owns the per-connection avatar: a cursor body that tracks
// the raw pointer, a follower body that trails it on a soft leash, and the
// leash itself. The three entities live exactly as long as the connection.
package session

import "github.com/roach88/tether/internal/physics"

// Session is one connected participant.
type Session struct {
	// ID is the connection id.
	ID string
	// ParticipantID is the normalised id supplied at connect time.
	ParticipantID string
	// Label is the display name given to the cursor, e.g. "Player 3".
	Label string

	Cursor   *physics.Body
	Follower *physics.Body
	Leash    *physics.Constraint

	// BindCandidate is the first body of a bind gesture in progress.
	// Nil means the gesture is idle.
	BindCandidate *physics.Body
}

// Owns reports whether b is one of the session's avatar bodies.
func (s *Session) Owns(b *physics.Body) bool {
	return b != nil && (b == s.Cursor || b == s.Follower)
}

// AwaitingSecond reports whether a bind gesture has its first body.
func (s *Session) AwaitingSecond() bool {
	return s.BindCandidate != nil
}
