package session

import (
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/tether/internal/physics"
	"github.com/roach88/tether/internal/world"
)

// Avatar geometry and leash tuning.
const (
	CursorRadius    = 1.0
	FollowerRadius  = 5.0
	FollowerDensity = 0.5
	LeashLength     = 5.0
	LeashStiffness  = 0.08
)

// SpawnPoint is where a new avatar appears before its first cursor move.
var SpawnPoint = physics.Vec{X: 10, Y: 10}

// Manager creates and destroys sessions against a world.
//
// Not safe for concurrent use; the engine loop owns it.
type Manager struct {
	world    *world.Registry
	logger   *slog.Logger
	sessions map[string]*Session
	order    []*Session

	// nextLabel numbers avatars for the lifetime of the process.
	nextLabel int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager for w. It registers a removal hook so that
// a bind candidate never outlives its body.
func NewManager(w *world.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		world:     w,
		logger:    slog.Default(),
		sessions:  make(map[string]*Session),
		nextLabel: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	w.OnBodyRemoved(m.forgetCandidate)
	return m
}

// NormalizeParticipant canonicalises a participant id: NFC form, surrounding
// whitespace trimmed.
func NormalizeParticipant(id string) string {
	return strings.TrimSpace(norm.NFC.String(id))
}

// Connect creates a session with its cursor, follower and leash, all added
// to the world. An empty participant id is refused with an *AuthError and
// leaves the world untouched.
func (m *Manager) Connect(connectionID, participantID string) (*Session, error) {
	participant := NormalizeParticipant(participantID)
	if participant == "" {
		return nil, &AuthError{ConnectionID: connectionID, Reason: "missing participant id"}
	}
	if connectionID == "" {
		return nil, fmt.Errorf("connect: empty connection id")
	}
	if _, exists := m.sessions[connectionID]; exists {
		return nil, fmt.Errorf("connect: connection %s already has a session", connectionID)
	}

	label := fmt.Sprintf("Player %d", m.nextLabel)
	m.nextLabel++
	group := m.world.NextGroup()

	cursor := m.world.CreateBody(physics.BodyDef{
		Label:         "Circle Body",
		Name:          label,
		Kind:          physics.KindCursor,
		Shape:         physics.Circle(CursorRadius),
		Position:      SpawnPoint,
		Material:      physics.Material{Density: physics.Default.Density, Friction: physics.Default.Friction, Static: true},
		Kinematic:     true,
		FixedRotation: true,
		Group:         group,
	})
	follower := m.world.CreateBody(physics.BodyDef{
		Label:         "Circle Body",
		Kind:          physics.KindFollower,
		Shape:         physics.Circle(FollowerRadius),
		Position:      SpawnPoint,
		Material:      physics.Material{Density: FollowerDensity, Friction: physics.Default.Friction},
		FixedRotation: true,
		Group:         group,
	})
	leash := m.world.CreateConstraint(physics.ConstraintDef{
		BodyA:     cursor,
		BodyB:     follower,
		Length:    LeashLength,
		Stiffness: LeashStiffness,
	})

	m.world.AddBody(cursor)
	m.world.AddBody(follower)
	m.world.AddConstraint(leash)

	s := &Session{
		ID:            connectionID,
		ParticipantID: participant,
		Label:         label,
		Cursor:        cursor,
		Follower:      follower,
		Leash:         leash,
	}
	m.sessions[connectionID] = s
	m.order = append(m.order, s)

	m.logger.Info("session connected",
		"connection", connectionID,
		"participant", participant,
		"label", label,
	)
	return s, nil
}

// Disconnect removes the session's entities from the world and forgets the
// session. Constraints attached to its avatar, including a pick it made, go
// with it. Safe to call more than once.
func (m *Manager) Disconnect(s *Session) {
	if s == nil {
		return
	}

	m.world.RemoveConstraint(s.Leash)
	m.world.RemoveBody(s.Follower)
	m.world.RemoveBody(s.Cursor)
	s.BindCandidate = nil

	if _, ok := m.sessions[s.ID]; !ok {
		return
	}
	delete(m.sessions, s.ID)
	for i, existing := range m.order {
		if existing == s {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	m.logger.Info("session disconnected",
		"connection", s.ID,
		"participant", s.ParticipantID,
		"label", s.Label,
	)
}

// Get returns the session for a connection id, or nil.
func (m *Manager) Get(connectionID string) *Session {
	return m.sessions[connectionID]
}

// Sessions returns the live sessions in connect order.
func (m *Manager) Sessions() []*Session {
	return append([]*Session(nil), m.order...)
}

// IDs returns the live connection ids in connect order.
func (m *Manager) IDs() []string {
	ids := make([]string, len(m.order))
	for i, s := range m.order {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return len(m.order)
}

func (m *Manager) forgetCandidate(b *physics.Body) {
	for _, s := range m.order {
		if s.BindCandidate == b {
			s.BindCandidate = nil
		}
	}
}
