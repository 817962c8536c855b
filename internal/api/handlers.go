// Package api provides the legacy per-user chat and upload handlers.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/brandscaling/coachflow/internal/models"
)

// indexHandler handles GET / with a service description and endpoint map.
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"message":     "Brandscaling AI Backend",
		"description": "Powers AI Architect (Hanif) and AI Alchemist (Fariza) with conversation orchestration",
		"endpoints": map[string]string{
			"upload_edna":            s.apiPrefix + "/upload",
			"chat_architect":         s.apiPrefix + "/chat/architect",
			"chat_alchemist":         s.apiPrefix + "/chat/alchemist",
			"health":                 s.apiPrefix + "/health",
			"start_conversation":     s.apiPrefix + "/conversation/start",
			"upload_to_conversation": s.apiPrefix + "/conversation/{conversation_id}/upload",
			"orchestrated_chat":      s.apiPrefix + "/conversation/chat/{agent}",
			"conversation_history":   s.apiPrefix + "/conversation/{conversation_id}/history",
			"orchestrator_health":    s.apiPrefix + "/health/orchestrator",
		},
	})
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Brandscaling AI Backend",
	})
}

// orchestratorHealthHandler handles GET /health/orchestrator with the live
// conversation count.
func (s *Server) orchestratorHealthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	count, err := s.st.CountConversations()
	if err != nil {
		slog.Error("orchestratorHealthHandler count failed", "error", err)
		writeJSONResponse(w, http.StatusOK, map[string]interface{}{
			"status":                  "unhealthy",
			"error":                   err.Error(),
			"orchestrator_accessible": false,
		})
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"status":                  "healthy",
		"orchestrator_accessible": true,
		"state_management":        "working",
		"active_conversations":    count,
	})
}

// uploadHandler handles POST /upload: stores the PDF, analyzes it, and records
// the resulting profile on the caller's session.
func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("uploadHandler invoked", "method", r.Method, "path", r.URL.Path)

	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("uploadHandler missing file", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing file"))
		return
	}
	defer file.Close()

	// Validation happens before any file or session mutation.
	if !strings.HasSuffix(header.Filename, ".pdf") {
		slog.Warn("uploadHandler rejected non-PDF upload", "filename", header.Filename)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Only PDF files are allowed"))
		return
	}

	fileID, p, err := s.extractor.Analyze(file)
	if err != nil {
		slog.Error("uploadHandler analysis failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process PDF"))
		return
	}

	userID := r.FormValue("user_id")
	session := models.UserSession{
		UserID:    models.SessionKey(userID),
		FileID:    fileID,
		Profile:   &p,
		HasUpload: true,
	}
	if err := s.st.SaveSession(session); err != nil {
		slog.Error("uploadHandler session save failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save session"))
		return
	}

	slog.Info("E-DNA PDF uploaded and analyzed", "fileID", fileID, "profileType", p.Type)
	writeJSONResponse(w, http.StatusOK, models.UploadResponse{
		Success: true,
		Message: "E-DNA results uploaded and analyzed successfully!",
		Profile: &p,
		FileID:  fileID,
	})
}

// chatArchitectHandler handles POST /chat/architect.
func (s *Server) chatArchitectHandler(w http.ResponseWriter, r *http.Request) {
	s.chatHandler(w, r, models.AgentArchitect)
}

// chatAlchemistHandler handles POST /chat/alchemist.
func (s *Server) chatAlchemistHandler(w http.ResponseWriter, r *http.Request) {
	s.chatHandler(w, r, models.AgentAlchemist)
}

// chatHandler runs one session-scoped persona turn. Upload state comes from
// the caller's session, not the request body.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request, agent models.Agent) {
	slog.Debug("chatHandler invoked", "method", r.Method, "agent", agent)

	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("Method not allowed"))
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("chatHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("chatHandler validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	session, err := s.st.GetSession(models.SessionKey(req.UserID))
	if err != nil {
		slog.Error("chatHandler session lookup failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}

	hasProfile := false
	var p *models.Profile
	if session != nil {
		hasProfile = session.HasUpload
		p = session.Profile
	}

	response := s.responder.Respond(r.Context(), req.Message, agent, p, hasProfile)
	redirected := strings.Contains(response, agent.Other().DisplayName()) &&
		strings.Contains(response, "switch to chat")

	writeJSONResponse(w, http.StatusOK, models.ChatResponse{
		Response:       response,
		PersonaUsed:    agent,
		UserID:         req.UserID,
		NeedsPDFUpload: !hasProfile,
		Redirected:     redirected,
	})
}
