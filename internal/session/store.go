// Package session keeps interactive controllers alive between API calls.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"energy-net/internal/controller"
	"energy-net/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = errors.New("session not found")

// Session is one interactive episode. Callers must hold Lock while touching Controller.
type Session struct {
	sync.Mutex

	ID         string
	Controller *controller.Controller
	CreatedAt  time.Time

	expiresAt time.Time
}

// Store is an in-memory session registry with sliding expiry.
type Store struct {
	mu    sync.RWMutex
	store map[string]*Session
	ttl   time.Duration
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewStore(ttl time.Duration, log logrus.FieldLogger) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Store{
		store: make(map[string]*Session),
		ttl:   ttl,
		now:   time.Now,
		log:   logging.OrDiscard(log),
	}
}

// Create registers ctrl under a fresh ID.
func (s *Store) Create(ctrl *controller.Controller) *Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Controller: ctrl,
		CreatedAt:  now,
		expiresAt:  now.Add(s.ttl),
	}

	s.mu.Lock()
	s.store[sess.ID] = sess
	s.mu.Unlock()

	s.log.WithField("session", sess.ID).Info("session created")
	return sess
}

// Get returns a live session and extends its expiry.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if now.After(sess.expiresAt) {
		delete(s.store, id)
		return nil, ErrNotFound
	}
	sess.expiresAt = now.Add(s.ttl)
	return sess, nil
}

func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.store[id]; !ok {
		return false
	}
	delete(s.store, id)
	s.log.WithField("session", id).Info("session deleted")
	return true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.store)
}

// Clear removes all sessions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = make(map[string]*Session)
}

// Sweep removes expired sessions and returns how many were dropped.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for id, sess := range s.store {
		if now.After(sess.expiresAt) {
			delete(s.store, id)
			n++
		}
	}
	if n > 0 {
		s.log.WithField("expired", n).Debug("sessions swept")
	}
	return n
}

// Run sweeps periodically until ctx is done.
func (s *Store) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
