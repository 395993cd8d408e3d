// Package session manages the ordered session collection, the current
// selection pointer, and the mutation discipline every other component
// goes through to touch conversation state.
package session

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/parleyhq/parley/pkg/chat"
)

// UndoTimeout bounds how long a session deletion can be undone.
const UndoTimeout = 5 * time.Second

// Toaster presents a message with one clickable action that auto-dismisses
// after the timeout. The delete flow uses it to offer undo.
type Toaster interface {
	Show(message, actionLabel string, action func(), timeout time.Duration)
}

// NopToaster discards all toasts.
type NopToaster struct{}

// Show implements Toaster.
func (NopToaster) Show(string, string, func(), time.Duration) {}

// State is the persisted shape of the store: the full session list, the
// current pointer, and the schema version (a decimal).
type State struct {
	Version      float64         `json:"version"`
	Sessions     []*chat.Session `json:"sessions"`
	CurrentIndex int             `json:"current_session_index"`
}

// Options configures a Store.
type Options struct {
	// Defaults is the global model configuration used to seed new sessions.
	Defaults chat.ModelConfig
	// Logger receives store events. Nil means slog.Default.
	Logger *slog.Logger
	// Toaster presents the delete-undo action. Nil disables undo surfacing.
	Toaster Toaster
	// Persist, when set, receives a snapshot of the full state after every
	// mutation. It runs synchronously inside the mutation.
	Persist func(State)
}

// Store owns the session list. The list is never empty and the current
// pointer is always clamped into range on read. All mutators run to
// completion under the store lock; no two mutations interleave.
type Store struct {
	mu       sync.Mutex
	sessions []*chat.Session
	current  int
	defaults chat.ModelConfig
	logger   *slog.Logger
	toaster  Toaster
	persist  func(State)

	// now is injectable for deterministic testing.
	now func() time.Time
}

// NewStore creates a store holding a single fresh session.
func NewStore(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	toaster := opts.Toaster
	if toaster == nil {
		toaster = NopToaster{}
	}
	return &Store{
		sessions: []*chat.Session{chat.NewSession(opts.Defaults)},
		defaults: opts.Defaults,
		logger:   logger.With("component", "session"),
		toaster:  toaster,
		persist:  opts.Persist,
		now:      time.Now,
	}
}

// LoadState replaces the store contents from migrated persisted state.
// An empty session list gets the usual fresh-session treatment and the
// pointer is clamped.
func (st *Store) LoadState(state State) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if len(state.Sessions) == 0 {
		st.sessions = []*chat.Session{chat.NewSession(st.defaults)}
		st.current = 0
		return
	}
	st.sessions = state.Sessions
	st.current = clamp(state.CurrentIndex, 0, len(state.Sessions)-1)
}

// State returns a deep snapshot of the store suitable for persistence.
func (st *Store) State() State {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.stateLocked()
}

func (st *Store) stateLocked() State {
	sessions := make([]*chat.Session, len(st.sessions))
	for i, s := range st.sessions {
		sessions[i] = s.Clone()
	}
	return State{
		Version:      SchemaVersion,
		Sessions:     sessions,
		CurrentIndex: clamp(st.current, 0, len(st.sessions)-1),
	}
}

// Count returns the number of sessions.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// CurrentIndex returns the clamped current pointer.
func (st *Store) CurrentIndex() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return clamp(st.current, 0, len(st.sessions)-1)
}

// Current returns a deep copy of the currently selected session.
func (st *Store) Current() *chat.Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[clamp(st.current, 0, len(st.sessions)-1)].Clone()
}

// Get returns a deep copy of the session with the given ID.
func (st *Store) Get(sessionID string) (*chat.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i := st.indexOfLocked(sessionID); i >= 0 {
		return st.sessions[i].Clone(), true
	}
	return nil, false
}

// New creates a session, optionally seeded from a mask, prepends it, and
// makes it current. It returns a copy of the created session.
func (st *Store) New(mask *chat.Mask) *chat.Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	var s *chat.Session
	if mask != nil {
		s = chat.NewSessionFromMask(*mask)
	} else {
		s = chat.NewSession(st.defaults)
	}

	st.sessions = append([]*chat.Session{s}, st.sessions...)
	st.current = 0
	st.persistLocked()
	return s.Clone()
}

// Select sets the current pointer, clamped into range.
func (st *Store) Select(index int) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.current = clamp(index, 0, len(st.sessions)-1)
	st.persistLocked()
}

// Move reorders a session from one index to another, preserving the
// identity of the currently selected session across the move.
func (st *Store) Move(from, to int) {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := len(st.sessions)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return
	}

	moved := st.sessions[from]
	rest := append([]*chat.Session{}, st.sessions[:from]...)
	rest = append(rest, st.sessions[from+1:]...)
	sessions := append([]*chat.Session{}, rest[:to]...)
	sessions = append(sessions, moved)
	sessions = append(sessions, rest[to:]...)
	st.sessions = sessions

	switch cur := st.current; {
	case cur == from:
		st.current = to
	case cur > from && cur <= to:
		st.current = cur - 1
	case cur < from && cur >= to:
		st.current = cur + 1
	}

	st.persistLocked()
}

// Delete removes the session at index and presents a bounded-time undo.
// Deleting the last remaining session immediately synthesizes a fresh
// empty replacement so the store is never empty. Invoking the undo within
// the timeout restores the prior list and pointer atomically; after the
// timeout it is a no-op.
func (st *Store) Delete(index int) {
	st.mu.Lock()

	if index < 0 || index >= len(st.sessions) {
		st.mu.Unlock()
		return
	}

	prevSessions := append([]*chat.Session{}, st.sessions...)
	prevCurrent := st.current
	deleted := st.sessions[index]

	if len(st.sessions) == 1 {
		st.sessions = []*chat.Session{chat.NewSession(st.defaults)}
		st.current = 0
	} else {
		st.sessions = append(st.sessions[:index], st.sessions[index+1:]...)
		next := st.current
		if index < next {
			next--
		}
		st.current = clamp(next, 0, len(st.sessions)-1)
	}

	st.persistLocked()
	expiry := st.now().Add(UndoTimeout)
	st.mu.Unlock()

	var once sync.Once
	restore := func() {
		once.Do(func() {
			st.mu.Lock()
			defer st.mu.Unlock()
			if st.now().After(expiry) {
				return
			}
			st.sessions = prevSessions
			st.current = prevCurrent
			st.persistLocked()
		})
	}

	st.toaster.Show(fmt.Sprintf("Deleted %q", deleted.Topic), "Undo", restore, UndoTimeout)
}

// UpdateCurrent applies a mutation to the currently selected session and
// persists the whole list.
func (st *Store) UpdateCurrent(fn func(*chat.Session)) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := st.sessions[clamp(st.current, 0, len(st.sessions)-1)]
	fn(s)
	s.LastUpdate = st.now()
	st.persistLocked()
}

// Update applies a mutation to the session with the given ID, resolved
// freshly at apply time. Returns false (dropping the update) if the
// session no longer exists.
func (st *Store) Update(sessionID string, fn func(*chat.Session)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	i := st.indexOfLocked(sessionID)
	if i < 0 {
		return false
	}
	fn(st.sessions[i])
	st.sessions[i].LastUpdate = st.now()
	st.persistLocked()
	return true
}

// UpdateMessage applies a mutation to one message addressed by the stable
// (sessionID, messageID) pair, resolved freshly at apply time. Returns
// false (dropping the update) if either no longer exists.
func (st *Store) UpdateMessage(sessionID, messageID string, fn func(*chat.Message)) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	i := st.indexOfLocked(sessionID)
	if i < 0 {
		return false
	}
	s := st.sessions[i]
	for j := range s.Messages {
		if s.Messages[j].ID == messageID {
			fn(&s.Messages[j])
			s.LastUpdate = st.now()
			st.persistLocked()
			return true
		}
	}
	return false
}

func (st *Store) indexOfLocked(sessionID string) int {
	for i, s := range st.sessions {
		if s.ID == sessionID {
			return i
		}
	}
	return -1
}

func (st *Store) persistLocked() {
	if st.persist == nil {
		return
	}
	st.persist(st.stateLocked())
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
