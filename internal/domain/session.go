package domain

import (
	"sync"
	"time"

	"github.com/qmuntal/stateless"
)

// Protocol states of a connection.
var (
	StateUnauthenticated stateless.State = "Unauthenticated"
	StateActive          stateless.State = "Active"
	StateClosed          stateless.State = "Closed"
)

// Protocol triggers.
var (
	triggerLogin      stateless.Trigger = "Login"
	triggerDisconnect stateless.Trigger = "Disconnect"
)

// Session is the per-connection protocol state machine. A connection
// starts Unauthenticated, is promoted to Active by a login envelope and
// ends Closed; Closed is terminal. A connection that never logs in
// simply stays Unauthenticated.
type Session struct {
	ID           string
	CreatedAt    time.Time
	LastActiveAt time.Time

	mu     sync.RWMutex
	userID string
	fsm    *stateless.StateMachine
}

func NewSession(id string) *Session {
	now := time.Now()

	fsm := stateless.NewStateMachine(StateUnauthenticated)
	fsm.Configure(StateUnauthenticated).
		Permit(triggerLogin, StateActive).
		Permit(triggerDisconnect, StateClosed)
	fsm.Configure(StateActive).
		Permit(triggerDisconnect, StateClosed)

	return &Session{
		ID:           id,
		CreatedAt:    now,
		LastActiveAt: now,
		fsm:          fsm,
	}
}

// Login promotes the session to Active under the given identifier.
// It fails if the session is already Active or Closed.
func (s *Session) Login(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fsm.Fire(triggerLogin); err != nil {
		return err
	}
	s.userID = userID
	s.LastActiveAt = time.Now()
	return nil
}

// Disconnect moves the session to the terminal Closed state.
// Disconnecting a closed session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fsm.MustState() == StateClosed {
		return
	}
	_ = s.fsm.Fire(triggerDisconnect)
}

func (s *Session) IsActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsm.MustState() == StateActive
}

func (s *Session) State() stateless.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fsm.MustState()
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
