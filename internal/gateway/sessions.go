package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/parleyhq/parley/pkg/chat"
)

// stateJSON is the serializable store snapshot returned to the client.
type stateJSON struct {
	Sessions     []*chat.Session `json:"sessions"`
	CurrentIndex int             `json:"current_session_index"`
}

// handleListSessions returns the full session list and current pointer.
func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := g.service.Store().State()
		writeJSON(w, http.StatusOK, stateJSON{
			Sessions:     state.Sessions,
			CurrentIndex: state.CurrentIndex,
		})
	}
}

// handleCreateSession creates a session, optionally seeded from a mask
// in the request body, and makes it current.
func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Mask *chat.Mask `json:"mask"`
		}
		if r.Body != nil {
			// An empty body means a plain session.
			_ = json.NewDecoder(r.Body).Decode(&body)
		}

		created := g.service.Store().New(body.Mask)
		writeJSON(w, http.StatusCreated, created)
	}
}

// handleSelectSession moves the current pointer.
func (g *Gateway) handleSelectSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		g.service.Store().Select(body.Index)
		writeJSON(w, http.StatusOK, map[string]int{"current_session_index": g.service.Store().CurrentIndex()})
	}
}

// handleMoveSession reorders the session list.
func (g *Gateway) handleMoveSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			From int `json:"from"`
			To   int `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		g.service.Store().Move(body.From, body.To)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleDeleteSession deletes the session at the given index. The
// deletion can be undone through /api/sessions/undo for a short window.
func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return
		}
		if index < 0 || index >= g.service.Store().Count() {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		g.service.Store().Delete(index)
		g.metrics.sessionDeletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleUndoDelete restores the most recently deleted session, if the
// undo window has not elapsed.
func (g *Gateway) handleUndoDelete() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.toaster == nil || !g.toaster.Invoke() {
			http.Error(w, "nothing to undo", http.StatusGone)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
	}
}

// handleClearContext marks the context boundary of a session at its
// current message count. Messages before the boundary stay visible but
// are no longer sent to the model.
func (g *Gateway) handleClearContext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ok := g.service.Store().Update(id, func(s *chat.Session) {
			s.ClearContextIndex = len(s.Messages)
		})
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
