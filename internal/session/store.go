package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/models"
)

// Store is the single source of truth for the session: the authenticated
// user and the ordered message log, plus the ephemeral loading/error flags
// the presentation layer reads. User and messages are flushed to the state
// file on every mutation; the flags never are.
type Store struct {
	mu       sync.RWMutex
	user     *models.User
	messages []models.Message
	loading  bool
	err      string

	file   *StateFile // nil disables persistence
	logger *zap.Logger
}

// NewStore creates a store hydrated from the given state file. A nil file
// yields a purely in-memory store.
func NewStore(file *StateFile, logger *zap.Logger) *Store {
	s := &Store{
		file:   file,
		logger: logger,
	}
	if file != nil {
		state := file.Load(logger)
		s.user = state.User
		s.messages = state.Messages
	}
	return s
}

// SetUser replaces the identity. Setting nil removes the identity but keeps
// the message log; a full reset additionally calls ClearMessages.
func (s *Store) SetUser(user *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = user
	s.flushLocked()
}

// AppendMessage adds a message to the end of the log. A missing ID or
// timestamp is assigned here; timestamps are clamped so the log stays
// monotonically non-decreasing. Append never fails and the log is unbounded.
func (s *Store) AppendMessage(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if n := len(s.messages); n > 0 {
		if last := s.messages[n-1].Timestamp; msg.Timestamp.Before(last) {
			msg.Timestamp = last
		}
	}

	s.messages = append(s.messages, msg)
	s.flushLocked()
}

// ClearMessages empties the log. Irreversible.
func (s *Store) ClearMessages() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.flushLocked()
}

func (s *Store) SetLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loading = loading
}

// SetError records the user-visible error text; empty clears it.
func (s *Store) SetError(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.err = text
}

func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Messages returns a copy of the log in append order.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]models.Message, len(s.messages))
	copy(msgs, s.messages)
	return msgs
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loading
}

func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.err
}

// flushLocked persists {user, messages}. Callers hold s.mu. Flush failures
// are logged, never fatal; the in-memory session stays authoritative.
func (s *Store) flushLocked() {
	if s.file == nil {
		return
	}
	state := &State{User: s.user, Messages: s.messages}
	if err := s.file.Save(state); err != nil {
		s.logger.Error("Failed to persist session state",
			zap.Error(err),
			zap.String("path", s.file.Path()))
	}
}
