package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quailyquaily/accord/guard"
	"github.com/quailyquaily/accord/negotiation"
)

type fakeExecutor struct {
	calls int
}

func (f *fakeExecutor) Execute(_ context.Context, _ negotiation.Action) (string, error) {
	f.calls++
	return "", nil
}

func newTestServer(t *testing.T) (*Server, *fakeExecutor) {
	t.Helper()
	gate := guard.New(guard.Config{}, nil, nil)
	exec := &fakeExecutor{}
	coord := negotiation.NewCoordinator(
		negotiation.NewStore(nil), gate, exec, negotiation.NewHistoryLog(nil, nil), nil)
	return New(coord, gate, ":0", nil), exec
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if len(rec.Body.Bytes()) > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec, out := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Fatalf("code = %d, body = %v", rec.Code, out)
	}
}

func TestNegotiationFlowOverHTTP(t *testing.T) {
	srv, exec := newTestServer(t)
	h := srv.Handler()

	// Grant the kind first so the execute step passes the gate.
	rec, _ := doJSON(t, h, http.MethodPost, "/api/admin/approvals",
		map[string]any{"kind": "create_file", "approved": true, "actor": "test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("grant: code = %d", rec.Code)
	}

	rec, out := doJSON(t, h, http.MethodPost, "/api/propose", map[string]any{
		"kind":        "create_file",
		"description": "write notes.txt",
		"details":     map[string]any{"path": "/tmp/notes.txt"},
	})
	if rec.Code != http.StatusOK || out["status"] != "proposed" {
		t.Fatalf("propose: code = %d, body = %v", rec.Code, out)
	}
	sessionID, _ := out["session_id"].(string)
	if sessionID == "" {
		t.Fatal("propose did not return a session id")
	}

	rec, out = doJSON(t, h, http.MethodPost, "/api/respond",
		map[string]any{"session_id": sessionID, "response": "yes"})
	if rec.Code != http.StatusOK || out["status"] != "agreed" {
		t.Fatalf("respond: code = %d, body = %v", rec.Code, out)
	}

	rec, out = doJSON(t, h, http.MethodPost, "/api/execute",
		map[string]any{"session_id": sessionID})
	if rec.Code != http.StatusOK || out["status"] != "executed" {
		t.Fatalf("execute: code = %d, body = %v", rec.Code, out)
	}
	if exec.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", exec.calls)
	}

	rec, out = doJSON(t, h, http.MethodGet, "/api/sessions/"+sessionID+"/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: code = %d", rec.Code)
	}
	session, _ := out["session"].(map[string]any)
	if session["state"] != "completed" {
		t.Fatalf("state = %v, want completed", session["state"])
	}

	rec, out = doJSON(t, h, http.MethodGet, "/api/history", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history: code = %d", rec.Code)
	}
	history, _ := out["history"].([]any)
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, out := doJSON(t, h, http.MethodPost, "/api/respond",
		map[string]any{"session_id": "nope", "response": "yes"})
	if rec.Code != http.StatusNotFound || out["error"] != "session_not_found" {
		t.Fatalf("code = %d, body = %v", rec.Code, out)
	}

	// Execute before agreement.
	_, out = doJSON(t, h, http.MethodPost, "/api/propose",
		map[string]any{"session_id": "s1", "kind": "create_file", "description": "x"})
	if out["status"] != "proposed" {
		t.Fatalf("propose: %v", out)
	}
	rec, out = doJSON(t, h, http.MethodPost, "/api/execute",
		map[string]any{"session_id": "s1"})
	if rec.Code != http.StatusConflict || out["error"] != "action_not_agreed" {
		t.Fatalf("code = %d, body = %v", rec.Code, out)
	}

	// Agreed but the kind was never granted.
	doJSON(t, h, http.MethodPost, "/api/respond",
		map[string]any{"session_id": "s1", "response": "yes"})
	rec, out = doJSON(t, h, http.MethodPost, "/api/execute",
		map[string]any{"session_id": "s1"})
	if rec.Code != http.StatusForbidden || out["error"] != "permission_denied" {
		t.Fatalf("code = %d, body = %v", rec.Code, out)
	}
}

func TestDangerousContentForbidden(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, http.MethodPost, "/api/admin/approvals",
		map[string]any{"kind": "execute_code", "approved": true, "actor": "test"})
	doJSON(t, h, http.MethodPost, "/api/propose", map[string]any{
		"session_id":  "s1",
		"kind":        "execute_code",
		"description": "cleanup",
		"details":     map[string]any{"command": "rm -rf /var/data"},
	})
	doJSON(t, h, http.MethodPost, "/api/respond",
		map[string]any{"session_id": "s1", "response": "yes"})

	rec, out := doJSON(t, h, http.MethodPost, "/api/execute",
		map[string]any{"session_id": "s1"})
	if rec.Code != http.StatusForbidden || out["error"] != "unsafe_action_content" {
		t.Fatalf("code = %d, body = %v", rec.Code, out)
	}
}

func TestProposeValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	rec, _ := doJSON(t, h, http.MethodPost, "/api/propose",
		map[string]any{"session_id": "s1", "description": "no kind"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/propose", strings.NewReader("{not json"))
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: code = %d, want 400", rec2.Code)
	}
}

func TestListApprovals(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	doJSON(t, h, http.MethodPost, "/api/admin/approvals",
		map[string]any{"kind": "write_files", "approved": true, "actor": "test"})
	rec, out := doJSON(t, h, http.MethodGet, "/api/admin/approvals", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	perms, _ := out["permissions"].(map[string]any)
	if perms["write_files"] != true {
		t.Fatalf("write_files = %v, want true", perms["write_files"])
	}
	if perms["read_files"] != true {
		t.Fatalf("read_files = %v, want default true", perms["read_files"])
	}
}
