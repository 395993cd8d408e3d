package gateway

import (
	"sync"
	"time"
)

// UndoToaster adapts the store's toast-with-action surface to HTTP: it
// keeps the most recent undoable action so /api/sessions/undo can invoke
// it. Only one action is live at a time; a newer toast replaces an older
// one.
type UndoToaster struct {
	mu      sync.Mutex
	message string
	action  func()
	expiry  time.Time
	now     func() time.Time
}

// NewUndoToaster creates an empty toaster.
func NewUndoToaster() *UndoToaster {
	return &UndoToaster{now: time.Now}
}

// Show implements session.Toaster.
func (t *UndoToaster) Show(message, _ string, action func(), timeout time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.message = message
	t.action = action
	t.expiry = t.now().Add(timeout)
}

// Pending returns the live toast message, if any.
func (t *UndoToaster) Pending() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.action == nil || t.now().After(t.expiry) {
		return "", false
	}
	return t.message, true
}

// Invoke fires the pending action once. It reports false when no action
// is live or the window has elapsed. The action itself enforces the same
// window, so a race near expiry stays a no-op.
func (t *UndoToaster) Invoke() bool {
	t.mu.Lock()
	action := t.action
	expired := action == nil || t.now().After(t.expiry)
	t.action = nil
	t.mu.Unlock()

	if expired {
		return false
	}
	action()
	return true
}
