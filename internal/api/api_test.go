package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/partpilot/partpilot/internal/agent"
	"github.com/partpilot/partpilot/internal/models"
	"github.com/partpilot/partpilot/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore()
	return NewServer(st, agent.NewEngine(st)), st
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeChatResponse(t *testing.T, rec *httptest.ResponseRecorder) chatResponse {
	t.Helper()
	var envelope struct {
		Status string       `json:"status"`
		Result chatResponse `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding response: %v, body=%s", err, rec.Body.String())
	}
	if envelope.Status != "ok" {
		t.Fatalf("status = %q, body=%s", envelope.Status, rec.Body.String())
	}
	return envelope.Result
}

func TestChatHandlerCreatesSessionAndPersistsMessages(t *testing.T) {
	srv, st := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/chat", chatRequest{Message: "what is your return policy"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeChatResponse(t, rec)
	if resp.SessionID == "" {
		t.Fatal("expected a generated session ID")
	}
	if !strings.Contains(resp.Reply.AssistantText, "365-day") {
		t.Errorf("AssistantText = %q, want returns policy", resp.Reply.AssistantText)
	}

	session, err := st.GetSession(resp.SessionID)
	if err != nil {
		t.Fatal(err)
	}
	if session == nil {
		t.Fatal("session was not persisted")
	}
	contents, err := st.RecentUserMessages(resp.SessionID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 || contents[0] != "what is your return policy" {
		t.Errorf("user messages = %v", contents)
	}
}

func TestChatHandlerCarriesContextAcrossTurns(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/chat", chatRequest{
		Message: "my whirlpool fridge WRF535SWHZ has a problem",
	})
	resp := decodeChatResponse(t, rec)
	if resp.Context.Appliance != models.ApplianceRefrigerator {
		t.Fatalf("Appliance = %q, want refrigerator", resp.Context.Appliance)
	}
	if resp.Context.ModelNumber != "WRF535SWHZ" {
		t.Fatalf("ModelNumber = %q", resp.Context.ModelNumber)
	}

	// Second turn echoes the context back, as the frontend does.
	rec = postJSON(t, handler, "/chat", chatRequest{
		SessionID: resp.SessionID,
		Message:   "is PS11701542 compatible",
		Context:   &resp.Context,
	})
	second := decodeChatResponse(t, rec)
	if second.SessionID != resp.SessionID {
		t.Errorf("SessionID changed: %q then %q", resp.SessionID, second.SessionID)
	}
	if second.Reply.Intent != models.IntentCompatibilityCheck {
		t.Errorf("Intent = %q, want compatibility_check", second.Reply.Intent)
	}
}

func TestChatHandlerRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/chat", chatRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty message: status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET: status = %d, want 405", rec.Code)
	}
}

func TestTroubleshootAnswerHandler(t *testing.T) {
	srv, st := newTestServer(t)
	if err := st.SaveSession(models.ChatSession{
		ID: "s1", ApplianceType: models.ApplianceRefrigerator,
	}); err != nil {
		t.Fatal(err)
	}

	rec := postJSON(t, srv.Handler(), "/chat/troubleshoot-answer", troubleshootAnswerRequest{
		SessionID: "s1",
		FlowID:    "ice_maker_flow",
		Step:      1,
		Answer:    "No",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	resp := decodeChatResponse(t, rec)
	if !strings.Contains(resp.Reply.AssistantText, "water supply") {
		t.Errorf("AssistantText = %q, want next flow step", resp.Reply.AssistantText)
	}
	if resp.Context.Appliance != models.ApplianceRefrigerator {
		t.Errorf("Appliance = %q, want hydrated from session", resp.Context.Appliance)
	}

	// Flow answers are stored with a prefix that history recovery skips.
	contents, err := st.RecentUserMessages("s1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 || contents[0] != "answer: No" {
		t.Errorf("user messages = %v", contents)
	}
}

func TestTroubleshootAnswerHandlerValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/chat/troubleshoot-answer", troubleshootAnswerRequest{
		FlowID: "ice_maker_flow", Step: 0, Answer: "yes",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("step 0: status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, srv.Handler(), "/chat/troubleshoot-answer", troubleshootAnswerRequest{
		Step: 1, Answer: "yes",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing flow: status = %d, want 400", rec.Code)
	}
}

func TestWriteJSONResponseFallsBackOnMarshalFailure(t *testing.T) {
	rec := httptest.NewRecorder()

	writeJSONResponse(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Errorf("body = %s, want the fallback error envelope", rec.Body.String())
	}
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}
