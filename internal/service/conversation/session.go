package conversation

import (
	"fmt"
	"sync"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// Session is the per-chat conversation data.
type Session struct {
	mu sync.Mutex

	ChatID int64
	State  State

	// Products is the catalog snapshot taken when counting starts; it fixes
	// the prompt order for the whole session.
	Products     []models.Product
	ProductIndex int
	Counts       map[string]int

	Extract       models.Extract
	Discrepancies []models.Discrepancy
	EditCode      string

	HistoryCode string

	Admin AdminState
	Draft models.Product
}

func newSession(chatID int64) *Session {
	return &Session{ChatID: chatID, Counts: make(map[string]int)}
}

// transition moves the session to the next state or fails if the move is not legal.
func (s *Session) transition(to State) error {
	if !s.State.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, to)
	}
	s.State = to
	return nil
}

// reset discards all flow data and returns the session to idle.
func (s *Session) reset() {
	s.State = StateIdle
	s.Products = nil
	s.ProductIndex = 0
	s.Counts = make(map[string]int)
	s.Extract = nil
	s.Discrepancies = nil
	s.EditCode = ""
	s.HistoryCode = ""
	s.resetAdmin()
}

func (s *Session) resetAdmin() {
	s.Admin = AdminNone
	s.Draft = models.Product{}
}

func (s *Session) currentProduct() (models.Product, bool) {
	if s.ProductIndex < 0 || s.ProductIndex >= len(s.Products) {
		return models.Product{}, false
	}
	return s.Products[s.ProductIndex], true
}

// SessionManager handles per-chat conversation state. Work on one session is
// serialized by the session's own lock; distinct chats proceed in parallel.
type SessionManager struct {
	sessions map[int64]*Session
	mu       sync.Mutex
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*Session),
	}
}

func (sm *SessionManager) get(chatID int64) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sess, ok := sm.sessions[chatID]
	if !ok {
		sess = newSession(chatID)
		sm.sessions[chatID] = sess
	}
	return sess
}

// With runs fn holding the lock of the chat's session, creating it on first use.
func (sm *SessionManager) With(chatID int64, fn func(*Session) error) error {
	sess := sm.get(chatID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess)
}

// State returns the current state of a chat's session.
func (sm *SessionManager) State(chatID int64) State {
	var st State
	_ = sm.With(chatID, func(s *Session) error {
		st = s.State
		return nil
	})
	return st
}
