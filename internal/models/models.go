// Package models defines the core data structures for coachflow.
//
// It includes the conversation record, persona and profile types, and the
// request/response shapes shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Agent identifies one of the two fixed coach personas.
type Agent string

const (
	// AgentArchitect is Hanif Khan, "The Architect" — strategy and systems.
	AgentArchitect Agent = "architect"
	// AgentAlchemist is Fariza Javed, "The Alchemist" — brand and purpose.
	AgentAlchemist Agent = "alchemist"
)

// IsValidAgent checks if the given agent identifier is supported.
func IsValidAgent(a Agent) bool {
	switch a {
	case AgentArchitect, AgentAlchemist:
		return true
	default:
		return false
	}
}

// Other returns the opposite persona.
func (a Agent) Other() Agent {
	if a == AgentArchitect {
		return AgentAlchemist
	}
	return AgentArchitect
}

// DisplayName returns the user-facing persona name used in hand-off texts.
func (a Agent) DisplayName() string {
	if a == AgentAlchemist {
		return "AI Alchemist"
	}
	return "AI Architect"
}

// MessageRole identifies the author of a conversation message.
type MessageRole string

const (
	// RoleUser marks a message authored by the participant.
	RoleUser MessageRole = "user"
	// RoleAssistant marks a message authored by a coach persona.
	RoleAssistant MessageRole = "assistant"
)

// Message is a single conversation entry. Immutable once appended.
type Message struct {
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Agent     Agent       `json:"agent,omitempty"` // persona tag for assistant messages
}

// ProfileType is the classification of an uploaded E-DNA results document.
type ProfileType string

const (
	ProfileTypeArchitect ProfileType = "Architect"
	ProfileTypeAlchemist ProfileType = "Alchemist"
	ProfileTypeBlurred   ProfileType = "Blurred"
	ProfileTypeUnknown   ProfileType = "Unknown"
)

// Profile is the structured result of analyzing an uploaded document.
// It is opaque to the core beyond being passed through as prompt context.
type Profile struct {
	Type       ProfileType `json:"type"`
	Confidence float64     `json:"confidence"`
	Excerpt    string      `json:"excerpt"`
}

// WorkflowStep describes a conversation's position in the turn-processing graph.
type WorkflowStep string

const (
	// StepInitial is the step of a freshly created conversation.
	StepInitial WorkflowStep = "initial"
	// StepCheckUpload gates the turn on profile availability.
	StepCheckUpload WorkflowStep = "check_upload"
	// StepPDFUpload terminates a turn that is waiting for an upload.
	StepPDFUpload WorkflowStep = "pdf_upload"
	// StepRouteToAgent dispatches to the conversation's chosen persona.
	StepRouteToAgent WorkflowStep = "route_to_agent"
	// StepFinalize refreshes the derived summary and closes the turn.
	StepFinalize WorkflowStep = "finalize"
	// StepCompleted marks a finished turn.
	StepCompleted WorkflowStep = "completed"
)

// AgentResponseStep returns the persona-response step for an agent,
// e.g. "architect_response".
func AgentResponseStep(a Agent) WorkflowStep {
	return WorkflowStep(string(a) + "_response")
}

// Conversation is the mutable per-conversation record, owned exclusively by the store.
//
// CollaborationMode exists throughout the data model but is permanently false:
// dual-agent collaboration is disabled and the field is kept as documented dead
// capability for wire compatibility.
type Conversation struct {
	ID                string       `json:"conversation_id"`
	UserID            string       `json:"user_id,omitempty"`
	Messages          []Message    `json:"messages"`
	Profile           *Profile     `json:"profile,omitempty"`
	NeedsUpload       bool         `json:"needs_pdf_upload"`
	ChosenAgent       Agent        `json:"chosen_agent"`
	CurrentAgent      Agent        `json:"current_agent"`
	WorkflowStep      WorkflowStep `json:"workflow_step"`
	CollaborationMode bool         `json:"collaboration_mode"`
	Summary           string       `json:"conversation_summary,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// LatestUserMessage returns the content of the most recent user message.
func (c *Conversation) LatestUserMessage() (string, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content, true
		}
	}
	return "", false
}

// LatestAssistantMessage returns the most recent assistant message.
func (c *Conversation) LatestAssistantMessage() (*Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return &c.Messages[i], true
		}
	}
	return nil, false
}

// Summary derivation constants.
const (
	// SummaryThreshold is the message count a conversation must exceed before a
	// summary is derived.
	SummaryThreshold = 4
	// SummaryTopicLimit is how many leading user messages the digest references.
	SummaryTopicLimit = 3
)

// SummarizeMessages derives a short digest referencing the first few user
// messages. Pure function of the message sequence; returns "" when the
// conversation is below the threshold.
func SummarizeMessages(messages []Message) string {
	if len(messages) <= SummaryThreshold {
		return ""
	}
	var topics []string
	for _, m := range messages {
		if m.Role != RoleUser {
			continue
		}
		topics = append(topics, m.Content)
		if len(topics) == SummaryTopicLimit {
			break
		}
	}
	if len(topics) == 0 {
		return ""
	}
	return "User has asked about: " + strings.Join(topics, ", ")
}

// UserSession tracks upload state for the legacy per-user chat endpoints.
type UserSession struct {
	UserID    string    `json:"user_id"`
	FileID    string    `json:"file_id,omitempty"`
	Profile   *Profile  `json:"profile,omitempty"`
	HasUpload bool      `json:"has_uploaded_pdf"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnonymousUserID keys sessions for callers that do not supply a user id.
const AnonymousUserID = "anonymous"

// SessionKey normalizes an optional user id to a session key.
func SessionKey(userID string) string {
	if userID == "" {
		return AnonymousUserID
	}
	return userID
}

// TurnResult is the outcome of processing one conversation turn through the
// workflow engine.
type TurnResult struct {
	Success           bool         `json:"success"`
	Response          string       `json:"response,omitempty"`
	Agent             Agent        `json:"agent,omitempty"`
	ConversationID    string       `json:"conversation_id"`
	WorkflowStep      WorkflowStep `json:"workflow_step,omitempty"`
	CollaborationMode bool         `json:"collaboration_mode"`
	Error             string       `json:"error,omitempty"`
}

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for a chat message.
	MaxMessageLength = 4096
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessage          = errors.New("message cannot be empty")
	ErrMessageTooLong        = errors.New("message exceeds maximum length")
	ErrMissingConversationID = errors.New("conversation_id is required")
	ErrInvalidAgent          = errors.New("invalid agent")
)

// ChatRequest is the payload for the legacy /chat/{agent} endpoints.
type ChatRequest struct {
	Message        string `json:"message"`
	UserID         string `json:"user_id,omitempty"`
	HasUploadedPDF bool   `json:"has_uploaded_pdf,omitempty"`
}

// Validate checks the chat request payload.
func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// ChatResponse is the reply shape for the legacy /chat/{agent} endpoints.
type ChatResponse struct {
	Response       string `json:"response"`
	PersonaUsed    Agent  `json:"persona_used"`
	UserID         string `json:"user_id,omitempty"`
	NeedsPDFUpload bool   `json:"needs_pdf_upload"`
	Redirected     bool   `json:"redirected"`
}

// UploadResponse is the reply shape for the /upload endpoint.
type UploadResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Profile *Profile `json:"profile,omitempty"`
	FileID  string   `json:"file_id,omitempty"`
}

// ConversationStartRequest is the payload for POST /conversation/start.
type ConversationStartRequest struct {
	UserID string `json:"user_id,omitempty"`
}

// ConversationStartResponse is the reply for POST /conversation/start.
type ConversationStartResponse struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
	Message        string `json:"message"`
}

// ConversationChatRequest is the payload for POST /conversation/chat/{agent}.
type ConversationChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id,omitempty"`
}

// Validate checks the orchestrated chat request payload.
func (r *ConversationChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if r.ConversationID == "" {
		return ErrMissingConversationID
	}
	return nil
}

// ConversationChatResponse is the reply for POST /conversation/chat/{agent}.
type ConversationChatResponse struct {
	Success           bool         `json:"success"`
	Response          string       `json:"response"`
	Agent             Agent        `json:"agent"`
	ConversationID    string       `json:"conversation_id"`
	WorkflowStep      WorkflowStep `json:"workflow_step"`
	CollaborationMode bool         `json:"collaboration_mode"`
	UserID            string       `json:"user_id,omitempty"`
	Redirected        bool         `json:"redirected"`
}

// ConversationUploadResponse is the reply for POST /conversation/{id}/upload.
type ConversationUploadResponse struct {
	Success        bool     `json:"success"`
	Message        string   `json:"message"`
	Profile        *Profile `json:"profile,omitempty"`
	ConversationID string   `json:"conversation_id"`
}

// ConversationHistoryResponse is the reply for GET /conversation/{id}/history.
type ConversationHistoryResponse struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	UserID         string    `json:"user_id,omitempty"`
}
