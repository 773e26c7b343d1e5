package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kberry/chatbus/backend/chatlog"
	"github.com/kberry/chatbus/backend/config"
	"github.com/kberry/chatbus/backend/guestbook"
	"github.com/kberry/chatbus/backend/store"
)

// testMux builds the full routed handler over an in-memory store with a
// controllable clock. Advance the returned *time.Time to move time forward.
func testMux(t *testing.T) (http.Handler, *time.Time) {
	t.Helper()
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("CORS_PERMISSIVE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	cfg := &config.Config{
		HTTPAddr:            ":0",
		StoreBackend:        "memory",
		MaxMessages:         100,
		PresenceTimeout:     45 * time.Second,
		MaxGuestbookEntries: 200,
	}
	st := store.NewMemoryStore()
	h := NewHandlers(st, st.NewLocker(), cfg)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.Now = func() time.Time { return now }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return h.Mux(ctx), &now
}

func doJSON(t *testing.T, mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestOptionsShortCircuits(t *testing.T) {
	mux, _ := testMux(t)
	rr := doJSON(t, mux, http.MethodOptions, "/messages", "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected permissive CORS, got %q", got)
	}
}

func TestUnknownActionReturns404JSON(t *testing.T) {
	mux, _ := testMux(t)
	rr := doJSON(t, mux, http.MethodGet, "/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 body not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Fatalf("404 body missing error field: %v", body)
	}
}

func TestPostMessageRejectsBadInput(t *testing.T) {
	mux, _ := testMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid_json", "{not json"},
		{"missing_text", `{"user":"alice"}`},
		{"blank_text", `{"user":"alice","text":"   "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, mux, http.MethodPost, "/messages", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d body=%s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestPostAndListMessages(t *testing.T) {
	mux, _ := testMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/messages", `{"user":"alice","text":"hello"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var posted chatlog.Message
	if err := json.Unmarshal(rr.Body.Bytes(), &posted); err != nil {
		t.Fatalf("decode posted message: %v", err)
	}
	if posted.ID == "" || posted.Timestamp == "" {
		t.Fatalf("id/timestamp not injected: %+v", posted)
	}

	rr = doJSON(t, mux, http.MethodGet, "/messages", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var messages []chatlog.Message
	if err := json.Unmarshal(rr.Body.Bytes(), &messages); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(messages) != 1 || messages[0] != posted {
		t.Fatalf("round trip failed: %+v vs %+v", messages, posted)
	}
}

// TestWidgetScenario walks the full client lifecycle: join, flood past the
// retention cap, then fall silent until the timeout evicts the nickname.
func TestWidgetScenario(t *testing.T) {
	mux, now := testMux(t)

	// Join
	rr := doJSON(t, mux, http.MethodPost, "/presence", `{"nickname":"alice"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", rr.Code)
	}

	rr = doJSON(t, mux, http.MethodGet, "/users", "")
	var users []string
	if err := json.Unmarshal(rr.Body.Bytes(), &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("expected [alice], got %v", users)
	}

	rr = doJSON(t, mux, http.MethodGet, "/messages", "")
	var messages []chatlog.Message
	_ = json.Unmarshal(rr.Body.Bytes(), &messages)
	if len(messages) != 1 || messages[0].Text != "*** alice has joined the cluster" {
		t.Fatalf("expected join notice, got %+v", messages)
	}

	// 101 posts: log stays at 100, oldest of the 101 is gone
	for i := 0; i < 101; i++ {
		rr = doJSON(t, mux, http.MethodPost, "/messages", fmt.Sprintf(`{"user":"alice","text":"msg-%d"}`, i))
		if rr.Code != http.StatusCreated {
			t.Fatalf("post %d: expected 201, got %d", i, rr.Code)
		}
	}
	rr = doJSON(t, mux, http.MethodGet, "/messages", "")
	messages = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &messages)
	if len(messages) != 100 {
		t.Fatalf("expected 100 messages, got %d", len(messages))
	}
	for _, m := range messages {
		if m.Text == "msg-0" {
			t.Fatal("oldest of the 101 posts should have been trimmed")
		}
	}

	// 50 seconds of silence: the next poll evicts alice exactly once even
	// when run back to back.
	*now = now.Add(50 * time.Second)
	doJSON(t, mux, http.MethodGet, "/users", "")
	rr = doJSON(t, mux, http.MethodGet, "/users", "")
	users = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &users)
	if len(users) != 0 {
		t.Fatalf("alice should be evicted, users=%v", users)
	}

	rr = doJSON(t, mux, http.MethodGet, "/messages", "")
	messages = nil
	_ = json.Unmarshal(rr.Body.Bytes(), &messages)
	evictions := 0
	for _, m := range messages {
		if m.Text == "*** alice has left (timeout)" {
			evictions++
		}
	}
	if evictions != 1 {
		t.Fatalf("expected exactly 1 timeout notice, got %d", evictions)
	}
}

func TestLeaveIsUnconditional(t *testing.T) {
	mux, _ := testMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/leave", `{"nickname":"ghost"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doJSON(t, mux, http.MethodGet, "/messages", "")
	var messages []chatlog.Message
	_ = json.Unmarshal(rr.Body.Bytes(), &messages)
	if len(messages) != 1 || messages[0].Text != "*** ghost has left (disconnected)" {
		t.Fatalf("expected disconnect notice, got %+v", messages)
	}
}

func TestPresenceMissingNicknameIsNoop(t *testing.T) {
	mux, _ := testMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/presence", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = doJSON(t, mux, http.MethodGet, "/users", "")
	var users []string
	_ = json.Unmarshal(rr.Body.Bytes(), &users)
	if len(users) != 0 {
		t.Fatalf("expected no users, got %v", users)
	}
	rr = doJSON(t, mux, http.MethodGet, "/messages", "")
	var messages []chatlog.Message
	_ = json.Unmarshal(rr.Body.Bytes(), &messages)
	if len(messages) != 0 {
		t.Fatalf("expected no messages, got %+v", messages)
	}
}

func TestPresenceRejectsBadJSON(t *testing.T) {
	mux, _ := testMux(t)
	rr := doJSON(t, mux, http.MethodPost, "/presence", "{oops")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := testMux(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/messages"},
		{http.MethodGet, "/presence"},
		{http.MethodGet, "/leave"},
		{http.MethodPost, "/users"},
		{http.MethodDelete, "/guestbook"},
	}
	for _, tt := range tests {
		rr := doJSON(t, mux, tt.method, tt.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tt.method, tt.path, rr.Code)
		}
	}
}

func TestGuestbookEndpoints(t *testing.T) {
	mux, _ := testMux(t)

	rr := doJSON(t, mux, http.MethodPost, "/guestbook", `{"name":"bob","message":"great site","rating":9}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", rr.Code, rr.Body.String())
	}
	var entry guestbook.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry.Rating != 5 {
		t.Errorf("rating not clamped: %d", entry.Rating)
	}

	rr = doJSON(t, mux, http.MethodPost, "/guestbook", `{"rating":3}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing message, got %d", rr.Code)
	}

	rr = doJSON(t, mux, http.MethodGet, "/guestbook", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var entries []guestbook.Entry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != entry.ID {
		t.Fatalf("expected stored entry back, got %+v", entries)
	}
}

func TestHealthEndpoints(t *testing.T) {
	mux, _ := testMux(t)

	rr := doJSON(t, mux, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rr.Code)
	}
	if got := rr.Body.String(); got != "ok" {
		t.Fatalf("healthz: expected ok body, got %q", got)
	}

	rr = doJSON(t, mux, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d body=%s", rr.Code, rr.Body.String())
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	mux, _ := testMux(t)

	rr := doJSON(t, mux, http.MethodGet, "/messages", "")
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Fatal("correlation id not injected")
	}

	req := httptest.NewRequest(http.MethodGet, "/messages", nil)
	req.Header.Set("X-Correlation-ID", "given-id")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "given-id" {
		t.Fatalf("expected provided correlation id to be reused, got %q", got)
	}
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	mux, _ := testMux(t)

	for _, path := range []string{"/messages", "/users", "/guestbook"} {
		rr := doJSON(t, mux, http.MethodGet, path, "")
		body := strings.TrimSpace(rr.Body.String())
		if body != "[]" {
			t.Errorf("%s: expected [], got %q", path, body)
		}
	}
}
