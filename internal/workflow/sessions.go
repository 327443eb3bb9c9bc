package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/spherical/snap2pdf/internal/domain"
	"github.com/spherical/snap2pdf/internal/download"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("edit session not found")

// SessionStore keeps several EditSessions keyed by ID for the HTTP server.
// Idle sessions expire after ttl; when full, the least recently used
// session is evicted.
type SessionStore struct {
	svc *Service
	ttl time.Duration
	max int

	mu       sync.Mutex
	sessions map[string]*EditSession
}

// NewSessionStore creates a store using the annotation settings of svc.
func NewSessionStore(svc *Service) *SessionStore {
	cfg := svc.settings.Annotation
	return &SessionStore{
		svc:      svc,
		ttl:      cfg.SessionTTL,
		max:      cfg.MaxSessions,
		sessions: make(map[string]*EditSession),
	}
}

// Create loads input into a new session.
func (st *SessionStore) Create(ctx context.Context, input domain.Input) (*EditSession, error) {
	sess, err := st.svc.OpenEditSession(ctx, input)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sweepLocked(st.svc.now())
	for len(st.sessions) >= st.max {
		st.evictOldestLocked()
	}
	st.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns a live session.
func (st *SessionStore) Get(id string) (*EditSession, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sess, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if st.expired(sess, st.svc.now()) {
		st.dropLocked(id)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Save exports the session with the given ID.
func (st *SessionStore) Save(ctx context.Context, id string, sink download.Sink) (*domain.Output, error) {
	sess, err := st.Get(id)
	if err != nil {
		return nil, err
	}
	return st.svc.SaveEditSession(ctx, sess, sink)
}

// Delete closes and forgets a session.
func (st *SessionStore) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	st.dropLocked(id)
	return nil
}

// Len returns the number of sessions held.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sweepLocked(st.svc.now())
}

// Run sweeps every interval until ctx is done.
func (st *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.svc.logger.Debug().Int("expired", n).Msg("edit sessions expired")
			}
		}
	}
}

// CloseAll drops every session.
func (st *SessionStore) CloseAll() {
	st.mu.Lock()
	defer st.mu.Unlock()
	for id := range st.sessions {
		st.dropLocked(id)
	}
}

func (st *SessionStore) expired(sess *EditSession, now time.Time) bool {
	return now.Sub(sess.idleSince()) > st.ttl
}

func (st *SessionStore) sweepLocked(now time.Time) int {
	n := 0
	for id, sess := range st.sessions {
		if st.expired(sess, now) {
			st.dropLocked(id)
			n++
		}
	}
	return n
}

func (st *SessionStore) evictOldestLocked() {
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return st.sessions[ids[i]].idleSince().Before(st.sessions[ids[j]].idleSince())
	})
	if len(ids) > 0 {
		st.svc.logger.Debug().Str("session", ids[0]).Msg("evicting least recently used edit session")
		st.dropLocked(ids[0])
	}
}

func (st *SessionStore) dropLocked(id string) {
	if sess, ok := st.sessions[id]; ok {
		sess.Close()
		delete(st.sessions, id)
	}
}
