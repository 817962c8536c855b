// Package store provides storage backends for coachflow.
//
// It includes an in-memory store (the default) plus SQLite and PostgreSQL
// backed stores for deployments that need conversations to survive restarts.
// The backend is selected by DSN detection, mirroring how the rest of the
// service is configured.
package store

import (
	"errors"
	"strings"
	"time"

	"github.com/brandscaling/coachflow/internal/models"
)

// ErrConversationNotFound is returned by id-keyed operations when the
// conversation is unknown to the store. Callers surface it as a client error,
// never a fatal one.
var ErrConversationNotFound = errors.New("conversation not found")

// Store defines the conversation and session storage contract shared by all
// backends. Every mutating operation bumps the conversation's UpdatedAt.
type Store interface {
	// CreateConversation allocates a new conversation with NeedsUpload=true and
	// the chosen agent defaulted to the Architect. Returns a fresh unique id.
	CreateConversation(userID string) (string, error)
	// GetConversation returns a copy of the conversation, or ErrConversationNotFound.
	GetConversation(id string) (*models.Conversation, error)
	// DeleteConversation removes a conversation.
	DeleteConversation(id string) error
	// ListUserConversations returns all conversations belonging to a user.
	ListUserConversations(userID string) ([]models.Conversation, error)
	// CountConversations reports how many conversations are live.
	CountConversations() (int, error)
	// SetChosenAgent records the caller's explicit persona choice. The current
	// agent mirrors the chosen agent (collaboration mode is disabled).
	SetChosenAgent(id string, agent models.Agent) error
	// AttachProfile sets the profile and flips NeedsUpload to false. A later
	// upload replaces the profile wholesale; it is never partially mutated.
	AttachProfile(id string, profile models.Profile) error
	// AppendMessage appends to the message sequence, preserving arrival order
	// per conversation even under concurrent callers.
	AppendMessage(id string, role models.MessageRole, content string, agent models.Agent) error
	// SetWorkflowStep records the conversation's position in the turn graph.
	SetWorkflowStep(id string, step models.WorkflowStep) error
	// Summarize derives the conversation digest. Returns "" when the message
	// count is at or below the threshold. Pure function of the messages.
	Summarize(id string) (string, error)
	// UpdateSummary stores the derived digest on the conversation record.
	UpdateSummary(id string, summary string) error
	// SweepConversations removes conversations whose UpdatedAt is older than
	// the cutoff and returns the number removed.
	SweepConversations(maxAge time.Duration) (int, error)
	// SaveSession upserts a user session for the legacy chat endpoints.
	SaveSession(session models.UserSession) error
	// GetSession returns the session for a user, or nil when absent.
	GetSession(userID string) (*models.UserSession, error)
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports "postgres" for PostgreSQL connection strings and
// "sqlite" for anything else (treated as a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
