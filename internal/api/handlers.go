// Package api provides HTTP handlers for PartPilot endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/partpilot/partpilot/internal/models"
)

// chatRequest is one conversational turn from the frontend. The context is
// echoed back and forth so the server stays stateless between turns.
type chatRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message"`
	Context   *models.Context `json:"context,omitempty"`
}

// troubleshootAnswerRequest resumes a diagnostic flow from a step card.
type troubleshootAnswerRequest struct {
	SessionID string          `json:"session_id,omitempty"`
	FlowID    string          `json:"flow_id"`
	Step      int             `json:"step"`
	Answer    string          `json:"answer"`
	Context   *models.Context `json:"context,omitempty"`
}

// chatResponse is the payload both conversational endpoints return.
type chatResponse struct {
	SessionID string         `json:"session_id"`
	Reply     models.Reply   `json:"reply"`
	Context   models.Context `json:"context"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.chatHandler: processing chat request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.chatHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.chatHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == "" {
		slog.Warn("Server.chatHandler: empty message")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: message"))
		return
	}

	sessionID := s.ensureSession(req.SessionID)
	cctx := req.Context
	if cctx == nil {
		cctx = &models.Context{}
	}

	s.persistMessage(sessionID, "user", req.Message)

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()
	reply := s.engine.ProcessTurn(ctx, sessionID, req.Message, cctx)

	s.persistMessage(sessionID, "assistant", reply.AssistantText)

	slog.Info("Server.chatHandler: turn processed", "sessionID", sessionID, "intent", reply.Intent, "source", reply.Source)
	writeJSONResponse(w, http.StatusOK, models.Success(chatResponse{
		SessionID: sessionID,
		Reply:     reply,
		Context:   *cctx,
	}))
}

func (s *Server) troubleshootAnswerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.troubleshootAnswerHandler: processing answer", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		slog.Warn("Server.troubleshootAnswerHandler: method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req troubleshootAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.troubleshootAnswerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.FlowID == "" || req.Answer == "" {
		slog.Warn("Server.troubleshootAnswerHandler: missing flow_id or answer")
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required fields: flow_id, answer"))
		return
	}
	if req.Step < 1 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid step number"))
		return
	}

	sessionID := s.ensureSession(req.SessionID)
	cctx := req.Context
	if cctx == nil {
		cctx = &models.Context{}
	}
	s.hydrateContext(sessionID, cctx)

	// The "answer:" prefix keeps flow answers out of later history-based
	// entity recovery.
	s.persistMessage(sessionID, "user", "answer: "+req.Answer)

	ctx, cancel := context.WithTimeout(r.Context(), DefaultRequestTimeout)
	defer cancel()
	reply := s.engine.AnswerTroubleshootStep(ctx, req.FlowID, req.Step, req.Answer, cctx)

	s.persistMessage(sessionID, "assistant", reply.AssistantText)

	slog.Info("Server.troubleshootAnswerHandler: answer processed",
		"sessionID", sessionID, "flowID", req.FlowID, "step", req.Step)
	writeJSONResponse(w, http.StatusOK, models.Success(chatResponse{
		SessionID: sessionID,
		Reply:     reply,
		Context:   *cctx,
	}))
}

// healthHandler provides a health check endpoint for monitoring and load
// balancing.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ensureSession returns a usable session ID, creating the session row on
// first contact. Store failures degrade to an unpersisted session.
func (s *Server) ensureSession(sessionID string) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
		slog.Debug("Server.ensureSession: new session", "sessionID", sessionID)
	}
	session, err := s.st.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.ensureSession: session read failed", "error", err, "sessionID", sessionID)
		return sessionID
	}
	if session == nil {
		if err := s.st.SaveSession(models.ChatSession{ID: sessionID}); err != nil {
			slog.Error("Server.ensureSession: session create failed", "error", err, "sessionID", sessionID)
		}
	}
	return sessionID
}

// hydrateContext fills appliance and model from the session when the caller
// echoed an emptier context than what the session has established.
func (s *Server) hydrateContext(sessionID string, cctx *models.Context) {
	session, err := s.st.GetSession(sessionID)
	if err != nil {
		slog.Error("Server.hydrateContext: session read failed", "error", err, "sessionID", sessionID)
		return
	}
	if session == nil {
		return
	}
	if cctx.Appliance == "" && session.ApplianceType != "" {
		cctx.Appliance = session.ApplianceType
	}
	if cctx.ModelNumber == "" && session.ModelNumber != "" {
		cctx.ModelNumber = session.ModelNumber
	}
}

func (s *Server) persistMessage(sessionID, role, content string) {
	if content == "" {
		return
	}
	err := s.st.AddMessage(models.ChatMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Server.persistMessage: message write failed", "error", err, "sessionID", sessionID, "role", role)
	}
}
