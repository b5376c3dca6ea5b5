// Package history keeps the volatile per-session message log.
//
// Sessions live in an LRU with an idle TTL; both bounds are optional. Appends to
// one session are serialised by that session's own lock, so concurrent turns on
// different sessions only share the brief cache lookup.
package history

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/comigor/thelp-go/internal/logger"
)

type session struct {
	mu       sync.Mutex
	messages []Message
}

// Store maps session ids to their ordered messages.
type Store struct {
	mu       sync.Mutex // guards get-or-create against the cache
	sessions *expirable.LRU[string, *session]
	now      func() time.Time
}

// Options is the capacity policy. Zero values disable the matching bound.
type Options struct {
	MaxSessions int
	TTL         time.Duration
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	maxSessions := opts.MaxSessions
	if maxSessions < 0 {
		maxSessions = 0
	}
	onEvict := func(id string, s *session) {
		logger.L.Info("session evicted", "session_id", id)
	}
	return &Store{
		sessions: expirable.NewLRU[string, *session](maxSessions, onEvict, opts.TTL),
		now:      time.Now,
	}
}

func (s *Store) getOrCreate(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions.Get(id); ok {
		s.sessions.Add(id, sess) // renews the TTL
		return sess
	}
	sess := &session{}
	s.sessions.Add(id, sess)
	logger.L.Debug("session created", "session_id", id)
	return sess
}

// Append stores msg at the end of the session, creating the session on first
// use. It assigns and returns the message sequence number.
func (s *Store) Append(sessionID string, msg Message) int {
	sess := s.getOrCreate(sessionID)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	msg.Seq = len(sess.messages) + 1
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	sess.messages = append(sess.messages, msg)
	return msg.Seq
}

// History returns up to limit of the most recent messages, oldest first.
// A non-positive limit returns the whole session.
func (s *Store) History(sessionID string, limit int) []Message {
	s.mu.Lock()
	sess, ok := s.sessions.Get(sessionID)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	msgs := sess.messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Exists reports whether the session is live: created and neither evicted
// nor past its TTL. It does not renew the TTL.
func (s *Store) Exists(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Contains ignores expiry until the reaper runs; Peek does not.
	_, ok := s.sessions.Peek(sessionID)
	return ok
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions.Len()
}
