package server

import (
	"errors"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"paroliere/internal/network"
)

const (
	// MaxUsernameLength bounds registered usernames
	MaxUsernameLength = 10
	// DefaultDirectoryCapacity bounds the registered-user directory
	DefaultDirectoryCapacity = 1000
	// MaxUsedWords bounds the per-round duplicate-word memory of a session
	MaxUsedWords = 256
)

var (
	ErrServerFull      = errors.New("server full")
	ErrDirectoryFull   = errors.New("user directory full")
	ErrInvalidUsername = errors.New("username must be 1-10 letters or digits")
	ErrUserExists      = errors.New("username already registered")
	ErrUserUnknown     = errors.New("username not registered")
	ErrUserInUse       = errors.New("username in use by another client")
	ErrAlreadyLoggedIn = errors.New("already logged in")
	ErrCancelSelf      = errors.New("cannot cancel the username you are logged in as")
)

// Session is the server side of one client connection. Everything but ID and
// conn is guarded by the owning SessionTable.
type Session struct {
	ID   string
	conn *network.Conn

	username string
	score    int
	used     map[string]struct{}
	flushed  bool
}

// SessionTable is the bounded set of connected clients
type SessionTable struct {
	mu    sync.Mutex
	slots []*Session
}

// NewSessionTable creates a table with room for capacity sessions
func NewSessionTable(capacity int) *SessionTable {
	return &SessionTable{slots: make([]*Session, capacity)}
}

// Add places conn in a free slot
func (t *SessionTable) Add(conn *network.Conn) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, slot := range t.slots {
		if slot != nil {
			continue
		}
		s := &Session{
			ID:   uuid.NewString(),
			conn: conn,
			used: make(map[string]struct{}),
		}
		t.slots[i] = s
		return s, nil
	}
	return nil, ErrServerFull
}

// Remove frees the slot of s
func (t *SessionTable) Remove(s *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, slot := range t.slots {
		if slot == s {
			t.slots[i] = nil
			return
		}
	}
}

func (t *SessionTable) live() []*Session {
	return lo.Compact(t.slots)
}

// Len returns the number of connected sessions
func (t *SessionTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live())
}

// Usernames lists the bound usernames of connected sessions
func (t *SessionTable) Usernames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.FilterMap(t.live(), func(s *Session, _ int) (string, bool) {
		return s.username, s.username != ""
	})
}

// Username returns the name bound to s, empty when anonymous
func (t *SessionTable) Username(s *Session) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return s.username
}

// Conns snapshots the connections, so callers can write without holding the lock
func (t *SessionTable) Conns() []*network.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	return lo.Map(t.live(), func(s *Session, _ int) *network.Conn {
		return s.conn
	})
}

// Broadcast sends one message to every connected session and returns how
// many sends succeeded.
func (t *SessionTable) Broadcast(msgType network.MessageType, text string) int {
	sent := 0
	for _, c := range t.Conns() {
		if err := c.Send(msgType, text); err == nil {
			sent++
		}
	}
	return sent
}

// InterruptAll wakes every session blocked in a receive
func (t *SessionTable) InterruptAll() {
	for _, c := range t.Conns() {
		c.Interrupt()
	}
}

// CloseAll closes every connection
func (t *SessionTable) CloseAll() {
	for _, c := range t.Conns() {
		c.Close()
	}
}

func (t *SessionTable) inUseLocked(name string) bool {
	return lo.ContainsBy(t.live(), func(s *Session) bool {
		return strings.EqualFold(s.username, name)
	})
}

// ResetRound clears the round score of every session
func (t *SessionTable) ResetRound() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.live() {
		s.score = 0
		s.used = make(map[string]struct{})
		s.flushed = false
	}
}

// AddWord records a scored word for s. A word already used this round scores
// zero. ok is false once the round score of s has been flushed.
func (t *SessionTable) AddWord(s *Session, key string, points int) (scored int, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s.flushed {
		return 0, false
	}
	if _, dup := s.used[key]; dup {
		return 0, true
	}
	if len(s.used) < MaxUsedWords {
		s.used[key] = struct{}{}
	}
	s.score += points
	return points, true
}

// Score returns the current round score of s
func (t *SessionTable) Score(s *Session) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return s.score
}

// Flush pushes the round score of s into q, once per round
func (t *SessionTable) Flush(s *Session, q *ScoreQueue) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flushLocked(s, q)
}

func (t *SessionTable) flushLocked(s *Session, q *ScoreQueue) bool {
	if s.flushed {
		return false
	}
	s.flushed = true
	q.Push(s.username, s.score)
	return true
}

// FlushAll flushes every session that has not reported yet and returns how
// many were forced.
func (t *SessionTable) FlushAll(q *ScoreQueue) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	forced := 0
	for _, s := range t.live() {
		if t.flushLocked(s, q) {
			forced++
		}
	}
	return forced
}

// RegisteredUser is an entry of the user directory
type RegisteredUser struct {
	Username string
	Deleted  bool
}

// UserDirectory is the bounded list of registered usernames. Entries are
// soft-deleted and can be reactivated.
type UserDirectory struct {
	mu       sync.Mutex
	users    []RegisteredUser
	capacity int
}

// NewUserDirectory creates a directory holding at most capacity names
func NewUserDirectory(capacity int) *UserDirectory {
	return &UserDirectory{capacity: capacity}
}

func (d *UserDirectory) findLocked(name string) int {
	_, idx, ok := lo.FindIndexOf(d.users, func(u RegisteredUser) bool {
		return strings.EqualFold(u.Username, name)
	})
	if !ok {
		return -1
	}
	return idx
}

// Len returns the number of active entries
func (d *UserDirectory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return lo.CountBy(d.users, func(u RegisteredUser) bool { return !u.Deleted })
}

// ValidUsername reports whether name is 1-10 ASCII letters or digits
func ValidUsername(name string) bool {
	if len(name) == 0 || len(name) > MaxUsernameLength {
		return false
	}
	for _, r := range name {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

// Registry ties the session table and the user directory together. Operations
// that need both always lock the table first.
type Registry struct {
	Sessions *SessionTable
	Users    *UserDirectory
}

// Register adds name to the directory. Duplicates are detected ignoring case;
// a soft-deleted name comes back to life unless a client is using it.
func (r *Registry) Register(name string) error {
	if !ValidUsername(name) {
		return ErrInvalidUsername
	}

	r.Sessions.mu.Lock()
	defer r.Sessions.mu.Unlock()
	r.Users.mu.Lock()
	defer r.Users.mu.Unlock()

	if idx := r.Users.findLocked(name); idx >= 0 {
		u := &r.Users.users[idx]
		if !u.Deleted {
			return ErrUserExists
		}
		if r.Sessions.inUseLocked(name) {
			return ErrUserInUse
		}
		u.Username = name
		u.Deleted = false
		return nil
	}

	if len(r.Users.users) >= r.Users.capacity {
		return ErrDirectoryFull
	}
	r.Users.users = append(r.Users.users, RegisteredUser{Username: name})
	return nil
}

// Login binds name to s. The name must match a registered, active entry exactly.
func (r *Registry) Login(s *Session, name string) error {
	r.Sessions.mu.Lock()
	defer r.Sessions.mu.Unlock()
	r.Users.mu.Lock()
	defer r.Users.mu.Unlock()

	if s.username != "" {
		return ErrAlreadyLoggedIn
	}
	idx := r.Users.findLocked(name)
	if idx < 0 || r.Users.users[idx].Deleted || r.Users.users[idx].Username != name {
		return ErrUserUnknown
	}
	if r.Sessions.inUseLocked(name) {
		return ErrUserInUse
	}
	s.username = name
	return nil
}

// Cancel soft-deletes name on behalf of s
func (r *Registry) Cancel(s *Session, name string) error {
	r.Sessions.mu.Lock()
	defer r.Sessions.mu.Unlock()
	r.Users.mu.Lock()
	defer r.Users.mu.Unlock()

	if strings.EqualFold(s.username, name) {
		return ErrCancelSelf
	}
	idx := r.Users.findLocked(name)
	if idx < 0 || r.Users.users[idx].Deleted {
		return ErrUserUnknown
	}
	r.Users.users[idx].Deleted = true
	return nil
}
