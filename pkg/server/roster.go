package server

import (
	"errors"
	"sync"

	"github.com/hmartin/lobbychat/pkg/model"
)

// ErrAlreadyJoined reports a second #NEWUSER handshake on a session
// that already holds a username. Usernames are immutable once assigned.
var ErrAlreadyJoined = errors.New("session has already joined")

// Roster is the single source of truth for who is connected. It maps
// joined sessions to their usernames and owns the process-wide admin
// slot. Every access happens under one mutex, and no network I/O is
// ever performed while it is held.
type Roster struct {
	mu       sync.Mutex
	sessions map[*Session]string // joined sessions -> username
	names    map[string]*Session // reverse index for private delivery
	order    []*Session          // join order, drives Snapshot
	admin    *Session            // admin slot; may point at a not-yet-joined session
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		sessions: make(map[*Session]string),
		names:    make(map[string]*Session),
	}
}

// Register claims the admin slot for a freshly accepted session if the
// slot is empty. Admin assignment happens at accept time, before the
// join handshake. Reports whether the session became admin.
func (r *Roster) Register(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.admin != nil {
		return false
	}
	r.admin = s
	s.setAdmin(true)
	return true
}

// Join validates the requested username and atomically inserts the
// (session, username) pair. Duplicate checks are case-sensitive;
// blank and reserved names are rejected by model.ValidateUsername.
func (r *Roster) Join(s *Session, username string) error {
	if err := model.ValidateUsername(username); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, joined := r.sessions[s]; joined {
		return ErrAlreadyJoined
	}
	if _, taken := r.names[username]; taken {
		return model.ErrUsernameTaken
	}

	r.sessions[s] = username
	r.names[username] = s
	r.order = append(r.order, s)
	s.markJoined(username)
	return nil
}

// Leave removes the session unconditionally and clears the admin slot
// if the session held it. Idempotent: a second call is a no-op.
// Returns the username the session held and whether it was joined.
func (r *Roster) Leave(s *Session) (username string, wasJoined bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.admin == s {
		r.admin = nil
		s.setAdmin(false)
	}

	username, wasJoined = r.sessions[s]
	if !wasJoined {
		return "", false
	}
	delete(r.sessions, s)
	delete(r.names, username)
	for i, sess := range r.order {
		if sess == s {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return username, true
}

// Snapshot returns a point-in-time copy of all joined usernames in
// join order. Used to build roster-refresh broadcasts.
func (r *Roster) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.order))
	for _, s := range r.order {
		names = append(names, r.sessions[s])
	}
	return names
}

// Sessions returns a point-in-time copy of all joined sessions in join
// order. Broadcast sends iterate this copy after the lock is released.
func (r *Roster) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, len(r.order))
	copy(out, r.order)
	return out
}

// Find looks up a joined session by username, for private delivery.
// Returns nil if the name is not currently joined.
func (r *Roster) Find(username string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[username]
}

// Admin returns the session holding the admin slot, or nil.
func (r *Roster) Admin() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.admin
}

// Len returns the number of joined sessions.
func (r *Roster) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
