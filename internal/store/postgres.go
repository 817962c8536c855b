// Package store provides storage backends for coachflow.
//
// This file implements a PostgreSQL-backed store for conversations and sessions.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/brandscaling/coachflow/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists conversations and sessions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL store with the given DSN.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// CreateConversation allocates a new conversation row.
func (s *PostgresStore) CreateConversation(userID string) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, user_id, needs_upload, chosen_agent, current_agent, workflow_step, created_at, updated_at)
		 VALUES ($1, $2, TRUE, $3, $4, $5, $6, $7)`,
		id, userID, models.AgentArchitect, models.AgentArchitect, models.StepInitial, now, now,
	)
	if err != nil {
		slog.Error("PostgresStore CreateConversation failed", "error", err)
		return "", fmt.Errorf("failed to insert conversation: %w", err)
	}
	slog.Debug("PostgresStore CreateConversation succeeded", "conversationID", id)
	return id, nil
}

// GetConversation loads a conversation and its ordered messages.
func (s *PostgresStore) GetConversation(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, profile_json, needs_upload, chosen_agent, current_agent, workflow_step, summary, created_at, updated_at
		 FROM conversations WHERE id = $1`, id)
	conv, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		slog.Error("PostgresStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT role, content, agent, timestamp FROM messages WHERE conversation_id = $1 ORDER BY id`, id)
	if err != nil {
		slog.Error("PostgresStore GetConversation messages query failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	conv.Messages, err = scanMessages(rows)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// DeleteConversation removes a conversation and its messages.
func (s *PostgresStore) DeleteConversation(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteConversation failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return notFoundIfZero(res)
}

// ListUserConversations returns all conversations for a user, without messages.
func (s *PostgresStore) ListUserConversations(userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, profile_json, needs_upload, chosen_agent, current_agent, workflow_step, summary, created_at, updated_at
		 FROM conversations WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("PostgresStore ListUserConversations failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate conversation rows: %w", err)
	}
	return out, nil
}

// CountConversations reports how many conversations are live.
func (s *PostgresStore) CountConversations() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// SetChosenAgent records the caller's explicit persona choice.
func (s *PostgresStore) SetChosenAgent(id string, agent models.Agent) error {
	if !models.IsValidAgent(agent) {
		return models.ErrInvalidAgent
	}
	res, err := s.db.Exec(
		`UPDATE conversations SET chosen_agent = $1, current_agent = $2, updated_at = $3 WHERE id = $4`,
		agent, agent, time.Now(), id)
	if err != nil {
		slog.Error("PostgresStore SetChosenAgent failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to update chosen agent: %w", err)
	}
	return notFoundIfZero(res)
}

// AttachProfile sets the profile and flips needs_upload to false.
func (s *PostgresStore) AttachProfile(id string, profile models.Profile) error {
	profileJSON, err := marshalProfile(&profile)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE conversations SET profile_json = $1, needs_upload = FALSE, updated_at = $2 WHERE id = $3`,
		profileJSON, time.Now(), id)
	if err != nil {
		slog.Error("PostgresStore AttachProfile failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to attach profile: %w", err)
	}
	return notFoundIfZero(res)
}

// AppendMessage appends to the message sequence. Row ids preserve arrival order.
func (s *PostgresStore) AppendMessage(id string, role models.MessageRole, content string, agent models.Agent) error {
	now := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE conversations SET updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		slog.Error("PostgresStore AppendMessage touch failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if err := notFoundIfZero(res); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO messages (conversation_id, role, content, agent, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		id, role, content, agent, now)
	if err != nil {
		slog.Error("PostgresStore AppendMessage insert failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return tx.Commit()
}

// SetWorkflowStep records the conversation's position in the turn graph.
func (s *PostgresStore) SetWorkflowStep(id string, step models.WorkflowStep) error {
	res, err := s.db.Exec(
		`UPDATE conversations SET workflow_step = $1, updated_at = $2 WHERE id = $3`,
		step, time.Now(), id)
	if err != nil {
		slog.Error("PostgresStore SetWorkflowStep failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to update workflow step: %w", err)
	}
	return notFoundIfZero(res)
}

// Summarize derives the conversation digest from the stored messages.
func (s *PostgresStore) Summarize(id string) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}
	return models.SummarizeMessages(conv.Messages), nil
}

// UpdateSummary stores the derived digest on the conversation row.
func (s *PostgresStore) UpdateSummary(id string, summary string) error {
	res, err := s.db.Exec(
		`UPDATE conversations SET summary = $1, updated_at = $2 WHERE id = $3`,
		summary, time.Now(), id)
	if err != nil {
		slog.Error("PostgresStore UpdateSummary failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to update summary: %w", err)
	}
	return notFoundIfZero(res)
}

// SweepConversations removes conversations older than the cutoff.
func (s *PostgresStore) SweepConversations(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := s.db.Exec(`DELETE FROM conversations WHERE updated_at < $1`, cutoff)
	if err != nil {
		slog.Error("PostgresStore SweepConversations failed", "error", err)
		return 0, fmt.Errorf("failed to sweep conversations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("PostgresStore SweepConversations removed stale conversations", "count", removed)
	}
	return int(removed), nil
}

// SaveSession upserts a user session.
func (s *PostgresStore) SaveSession(session models.UserSession) error {
	profileJSON, err := marshalProfile(session.Profile)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO sessions (user_id, file_id, profile_json, has_upload, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET file_id = EXCLUDED.file_id, profile_json = EXCLUDED.profile_json,
		 has_upload = EXCLUDED.has_upload, updated_at = EXCLUDED.updated_at`,
		models.SessionKey(session.UserID), session.FileID, profileJSON, session.HasUpload, now, now)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns the session for a user, or nil when absent.
func (s *PostgresStore) GetSession(userID string) (*models.UserSession, error) {
	var sess models.UserSession
	var profileJSON sql.NullString
	err := s.db.QueryRow(
		`SELECT user_id, file_id, profile_json, has_upload, created_at, updated_at FROM sessions WHERE user_id = $1`,
		models.SessionKey(userID)).Scan(
		&sess.UserID, &sess.FileID, &profileJSON, &sess.HasUpload, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	sess.Profile, err = unmarshalProfile(profileJSON)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
