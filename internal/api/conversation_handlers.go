// Package api provides the orchestrated conversation handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brandscaling/coachflow/internal/models"
	"github.com/brandscaling/coachflow/internal/store"
)

const conversationStartMessage = "Conversation started! Choose which agent you'd like to talk to: Architect (Hanif) for strategy and systems, or Alchemist (Fariza) for branding and purpose."

// conversationRouter dispatches /conversation/ subpaths by segment:
//
//	POST /conversation/start
//	POST /conversation/chat/{agent}
//	POST /conversation/{id}/upload
//	GET  /conversation/{id}/history
func (s *Server) conversationRouter(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, s.apiPrefix+"/conversation/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	switch {
	case len(segments) == 1 && segments[0] == "start":
		s.startConversationHandler(w, r)
	case len(segments) == 2 && segments[0] == "chat":
		s.conversationChatHandler(w, r, models.Agent(segments[1]))
	case len(segments) == 2 && segments[1] == "upload":
		s.conversationUploadHandler(w, r, segments[0])
	case len(segments) == 2 && segments[1] == "history":
		s.conversationHistoryHandler(w, r, segments[0])
	default:
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
	}
}

// startConversationHandler handles POST /conversation/start
func (s *Server) startConversationHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("startConversationHandler invoked", "method", r.Method)

	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.ConversationStartRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("startConversationHandler invalid JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
	}

	conversationID, err := s.st.CreateConversation(req.UserID)
	if err != nil {
		slog.Error("startConversationHandler create failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create conversation"))
		return
	}

	slog.Info("Conversation started", "conversationID", conversationID, "userID", req.UserID)
	writeJSONResponse(w, http.StatusOK, models.ConversationStartResponse{
		ConversationID: conversationID,
		UserID:         req.UserID,
		Message:        conversationStartMessage,
	})
}

// conversationChatHandler handles POST /conversation/chat/{agent}
func (s *Server) conversationChatHandler(w http.ResponseWriter, r *http.Request, agent models.Agent) {
	slog.Debug("conversationChatHandler invoked", "method", r.Method, "agent", agent)

	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	if !models.IsValidAgent(agent) {
		slog.Warn("conversationChatHandler unknown agent", "agent", agent)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Unknown agent"))
		return
	}

	var req models.ConversationChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("conversationChatHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("conversationChatHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	result := s.engine.ProcessTurn(r.Context(), req.ConversationID, req.Message, agent)
	if !result.Success {
		status := http.StatusInternalServerError
		if result.Error == "Conversation not found" {
			status = http.StatusNotFound
		}
		slog.Warn("conversationChatHandler turn failed", "conversationID", req.ConversationID, "error", result.Error)
		writeJSONResponse(w, status, models.Error(result.Error))
		return
	}

	// A hand-off reply names the other persona and tells the caller to switch.
	redirected := strings.Contains(result.Response, agent.Other().DisplayName()) &&
		(strings.Contains(result.Response, "switch to chat") || strings.Contains(result.Response, "talk to"))

	writeJSONResponse(w, http.StatusOK, models.ConversationChatResponse{
		Success:           result.Success,
		Response:          result.Response,
		Agent:             result.Agent,
		ConversationID:    result.ConversationID,
		WorkflowStep:      result.WorkflowStep,
		CollaborationMode: result.CollaborationMode,
		UserID:            req.UserID,
		Redirected:        redirected,
	})
}

// conversationUploadHandler handles POST /conversation/{id}/upload
func (s *Server) conversationUploadHandler(w http.ResponseWriter, r *http.Request, conversationID string) {
	slog.Debug("conversationUploadHandler invoked", "method", r.Method, "conversationID", conversationID)

	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	// The conversation must exist before any file lands on disk.
	if _, err := s.st.GetConversation(conversationID); err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			slog.Warn("conversationUploadHandler conversation not found", "conversationID", conversationID)
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("conversationUploadHandler lookup failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("conversationUploadHandler missing file", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing file"))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".pdf") {
		slog.Warn("conversationUploadHandler rejected non-PDF upload", "filename", header.Filename)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Only PDF files are allowed"))
		return
	}

	_, p, err := s.extractor.Analyze(file)
	if err != nil {
		slog.Error("conversationUploadHandler analysis failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process PDF"))
		return
	}

	if err := s.st.AttachProfile(conversationID, p); err != nil {
		slog.Error("conversationUploadHandler attach failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to attach profile"))
		return
	}

	slog.Info("E-DNA PDF attached to conversation", "conversationID", conversationID, "profileType", p.Type)
	writeJSONResponse(w, http.StatusOK, models.ConversationUploadResponse{
		Success:        true,
		Message:        "E-DNA results uploaded and analyzed successfully!",
		Profile:        &p,
		ConversationID: conversationID,
	})
}

// conversationHistoryHandler handles GET /conversation/{id}/history
func (s *Server) conversationHistoryHandler(w http.ResponseWriter, r *http.Request, conversationID string) {
	slog.Debug("conversationHistoryHandler invoked", "method", r.Method, "conversationID", conversationID)

	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	conv, err := s.st.GetConversation(conversationID)
	if err != nil {
		if errors.Is(err, store.ErrConversationNotFound) {
			slog.Warn("conversationHistoryHandler conversation not found", "conversationID", conversationID)
			writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
			return
		}
		slog.Error("conversationHistoryHandler lookup failed", "error", err, "conversationID", conversationID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}

	writeJSONResponse(w, http.StatusOK, models.ConversationHistoryResponse{
		ConversationID: conversationID,
		Messages:       conv.Messages,
		UserID:         r.URL.Query().Get("user_id"),
	})
}
