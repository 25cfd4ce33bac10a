package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/interaction"
	"github.com/lamim/vecplot/internal/plot"
)

// ErrNotFound is returned for unknown session IDs.
var ErrNotFound = errors.New("session not found")

// Session is the dashboard state of one browser tab.
type Session struct {
	ID         string
	Collection string
	State      interaction.State
	Dataset    *dataset.Dataset
	Ranges     plot.Ranges
	Message    string
	Error      string
	Loading    bool
	Selection  *interaction.Selection
	FullDetail bool
	Updated    time.Time

	// fetchSeq identifies the latest fetch; results of older fetches are dropped.
	fetchSeq uint64
}

// sessionStore keeps sessions in memory. A session idle for longer than ttl
// is dropped.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *sessionStore) expiredLocked(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.Updated) > s.ttl
}

// expire drops idle sessions and returns how many were removed.
func (s *sessionStore) expire() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expiredLocked(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *sessionStore) create(collection string, state interaction.State) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:         uuid.NewString(),
		Collection: collection,
		State:      state,
		Updated:    s.now(),
	}
	s.sessions[sess.ID] = sess
	return *sess
}

// lookupLocked returns the live session for id, dropping it when idle.
func (s *sessionStore) lookupLocked(id string) (*Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.expiredLocked(sess, s.now()) {
		delete(s.sessions, id)
		return nil, ErrNotFound
	}
	return sess, nil
}

// get returns a snapshot of the session.
func (s *sessionStore) get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	return *sess, nil
}

// update applies fn to the session under the store lock and returns the
// resulting snapshot. fn must not block.
func (s *sessionStore) update(id string, fn func(*Session) error) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return Session{}, err
	}
	if err := fn(sess); err != nil {
		return *sess, err
	}
	sess.Updated = s.now()
	return *sess, nil
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
