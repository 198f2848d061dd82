package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrAlreadyActive is returned when a student starts a quiz they are
// already running in another tab or device.
var ErrAlreadyActive = errors.New("an attempt is already in progress for this quiz")

type sessionKey struct {
	quizID    uuid.UUID
	studentID int
}

// Manager owns every live attempt session in the process and enforces the
// one-active-session-per-(quiz, student) rule. Sessions are discarded the
// moment they reach a terminal state; a page reload re-synchronizes through
// Get, never by recreating the session.
type Manager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Controller
	log      zerolog.Logger
}

// NewManager creates an empty session manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{
		sessions: make(map[sessionKey]*Controller),
		log:      log.With().Str("component", "session_manager").Logger(),
	}
}

// Start registers a new controller for (quizID, studentID) and begins its
// first countdown. Returns ErrAlreadyActive if a live session exists.
func (m *Manager) Start(quizID uuid.UUID, studentID, perQuestionSeconds int, optionCounts []int, submitter Submitter) (*Controller, error) {
	k := sessionKey{quizID: quizID, studentID: studentID}

	m.mu.Lock()
	if _, ok := m.sessions[k]; ok {
		m.mu.Unlock()
		return nil, ErrAlreadyActive
	}
	ctrl := NewController(quizID, studentID, perQuestionSeconds, optionCounts, submitter)
	ctrl.onDone = func() { m.remove(k, ctrl) }
	m.sessions[k] = ctrl
	m.mu.Unlock()

	if err := ctrl.Begin(); err != nil {
		m.remove(k, ctrl)
		return nil, err
	}

	m.log.Debug().
		Str("quiz_id", quizID.String()).
		Int("student_id", studentID).
		Msg("Attempt session started")
	return ctrl, nil
}

// Get returns the live controller for (quizID, studentID), if any.
func (m *Manager) Get(quizID uuid.UUID, studentID int) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ctrl, ok := m.sessions[sessionKey{quizID: quizID, studentID: studentID}]
	return ctrl, ok
}

// AbortAll tears down every live session, releasing all timers. Used on
// graceful shutdown.
func (m *Manager) AbortAll(err error) {
	m.mu.Lock()
	ctrls := make([]*Controller, 0, len(m.sessions))
	for _, ctrl := range m.sessions {
		ctrls = append(ctrls, ctrl)
	}
	m.mu.Unlock()

	for _, ctrl := range ctrls {
		ctrl.Abort(err)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) remove(k sessionKey, ctrl *Controller) {
	m.mu.Lock()
	if m.sessions[k] == ctrl {
		delete(m.sessions, k)
	}
	m.mu.Unlock()
}
