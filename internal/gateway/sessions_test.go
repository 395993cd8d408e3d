package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/parleyhq/parley/pkg/chat"
)

func doJSON(t *testing.T, handler http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleListSessions(t *testing.T) {
	t.Parallel()

	_, store, router := newTestGateway(t)
	store.New(nil)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var state stateJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(state.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(state.Sessions))
	}
	if state.CurrentIndex != 0 {
		t.Fatalf("current = %d, want 0", state.CurrentIndex)
	}
}

func TestHandleCreateSession(t *testing.T) {
	t.Parallel()

	_, store, router := newTestGateway(t)

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", `{"mask":{"name":"Pirate","model_config":{"model":"gpt-4o-mini"}}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}

	var created chat.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Topic != "Pirate" {
		t.Fatalf("topic = %q", created.Topic)
	}
	if store.Count() != 2 {
		t.Fatalf("store count = %d, want 2", store.Count())
	}
	if store.Current().ID != created.ID {
		t.Fatal("created session is not current")
	}
}

func TestHandleSelectAndMove(t *testing.T) {
	t.Parallel()

	_, store, router := newTestGateway(t)
	store.New(nil)
	store.New(nil)

	rec := doJSON(t, router, http.MethodPost, "/api/sessions/select", `{"index":2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("select status = %d", rec.Code)
	}
	if store.CurrentIndex() != 2 {
		t.Fatalf("current = %d, want 2", store.CurrentIndex())
	}

	selectedID := store.Current().ID
	rec = doJSON(t, router, http.MethodPost, "/api/sessions/move", `{"from":2,"to":0}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("move status = %d", rec.Code)
	}
	if store.Current().ID != selectedID {
		t.Fatal("selected session identity lost across move")
	}
	if store.CurrentIndex() != 0 {
		t.Fatalf("current = %d after move, want 0", store.CurrentIndex())
	}
}

func TestHandleDeleteAndUndo(t *testing.T) {
	t.Parallel()

	_, store, router := newTestGateway(t)
	store.New(nil)
	deletedID := store.Current().ID

	rec := doJSON(t, router, http.MethodDelete, "/api/sessions/0", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, ok := store.Get(deletedID); ok {
		t.Fatal("session still present after delete")
	}

	rec = doJSON(t, router, http.MethodPost, "/api/sessions/undo", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("undo status = %d", rec.Code)
	}
	if _, ok := store.Get(deletedID); !ok {
		t.Fatal("session not restored by undo")
	}

	// A second undo has nothing to restore.
	rec = doJSON(t, router, http.MethodPost, "/api/sessions/undo", "")
	if rec.Code != http.StatusGone {
		t.Fatalf("second undo status = %d, want %d", rec.Code, http.StatusGone)
	}
}

func TestHandleDeleteOutOfRange(t *testing.T) {
	t.Parallel()

	_, _, router := newTestGateway(t)

	if rec := doJSON(t, router, http.MethodDelete, "/api/sessions/7", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if rec := doJSON(t, router, http.MethodDelete, "/api/sessions/abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleClearContext(t *testing.T) {
	t.Parallel()

	_, store, router := newTestGateway(t)
	cur := store.Current()
	store.Update(cur.ID, func(s *chat.Session) {
		s.Messages = append(s.Messages,
			chat.NewMessage(chat.RoleUser, "one"),
			chat.NewMessage(chat.RoleAssistant, "two"),
		)
	})

	rec := doJSON(t, router, http.MethodPost, "/api/sessions/"+cur.ID+"/clear-context", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}

	got, _ := store.Get(cur.ID)
	if got.ClearContextIndex != 2 {
		t.Fatalf("clear index = %d, want 2", got.ClearContextIndex)
	}

	if rec := doJSON(t, router, http.MethodPost, "/api/sessions/missing/clear-context", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing session status = %d, want 404", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	_, _, router := newTestGateway(t)

	rec := doJSON(t, router, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Sessions != 1 {
		t.Fatalf("health = %+v", resp)
	}
}

func TestHandleFetchTaskUnconfigured(t *testing.T) {
	t.Parallel()

	_, _, router := newTestGateway(t)

	rec := doJSON(t, router, http.MethodGet, "/api/midjourney/task/t1", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	_, _, router := newTestGateway(t)

	rec := doJSON(t, router, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
