// Package store provides storage backends for coachflow.
//
// This file implements a SQLite-backed store for conversations and sessions.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/brandscaling/coachflow/internal/models"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists conversations and sessions in a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// CreateConversation allocates a new conversation row.
func (s *SQLiteStore) CreateConversation(userID string) (string, error) {
	id := uuid.NewString()
	now := time.Now()
	_, err := s.db.Exec(
		`INSERT INTO conversations (id, user_id, needs_upload, chosen_agent, current_agent, workflow_step, created_at, updated_at)
		 VALUES (?, ?, 1, ?, ?, ?, ?, ?)`,
		id, userID, models.AgentArchitect, models.AgentArchitect, models.StepInitial, now, now,
	)
	if err != nil {
		slog.Error("SQLiteStore CreateConversation failed", "error", err)
		return "", fmt.Errorf("failed to insert conversation: %w", err)
	}
	slog.Debug("SQLiteStore CreateConversation succeeded", "conversationID", id)
	return id, nil
}

// GetConversation loads a conversation and its ordered messages.
func (s *SQLiteStore) GetConversation(id string) (*models.Conversation, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, profile_json, needs_upload, chosen_agent, current_agent, workflow_step, summary, created_at, updated_at
		 FROM conversations WHERE id = ?`, id)
	conv, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversation failed", "error", err, "conversationID", id)
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT role, content, agent, timestamp FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		slog.Error("SQLiteStore GetConversation messages query failed", "error", err, "conversationID", id)
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
func (s *SQLiteStore) DeleteConversation(id string) error {
	res, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		slog.Error("SQLiteStore DeleteConversation failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return notFoundIfZero(res)
}

// ListUserConversations returns all conversations for a user, without messages.
func (s *SQLiteStore) ListUserConversations(userID string) ([]models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, profile_json, needs_upload, chosen_agent, current_agent, workflow_step, summary, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY created_at`, userID)
	if err != nil {
		slog.Error("SQLiteStore ListUserConversations failed", "error", err, "userID", userID)
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
func (s *SQLiteStore) CountConversations() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return count, nil
}

// SetChosenAgent records the caller's explicit persona choice.
func (s *SQLiteStore) SetChosenAgent(id string, agent models.Agent) error {
	if !models.IsValidAgent(agent) {
		return models.ErrInvalidAgent
	}
	res, err := s.db.Exec(
		`UPDATE conversations SET chosen_agent = ?, current_agent = ?, updated_at = ? WHERE id = ?`,
		agent, agent, time.Now(), id)
	if err != nil {
		slog.Error("SQLiteStore SetChosenAgent failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to update chosen agent: %w", err)
	}
	return notFoundIfZero(res)
}

// AttachProfile sets the profile and flips needs_upload to false.
func (s *SQLiteStore) AttachProfile(id string, profile models.Profile) error {
	profileJSON, err := marshalProfile(&profile)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE conversations SET profile_json = ?, needs_upload = 0, updated_at = ? WHERE id = ?`,
		profileJSON, time.Now(), id)
	if err != nil {
		slog.Error("SQLiteStore AttachProfile failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to attach profile: %w", err)
	}
	return notFoundIfZero(res)
}

// AppendMessage appends to the message sequence. Row ids preserve arrival order.
func (s *SQLiteStore) AppendMessage(id string, role models.MessageRole, content string, agent models.Agent) error {
	now := time.Now()
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		slog.Error("SQLiteStore AppendMessage touch failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if err := notFoundIfZero(res); err != nil {
		return err
	}

	_, err = tx.Exec(
		`INSERT INTO messages (conversation_id, role, content, agent, timestamp) VALUES (?, ?, ?, ?, ?)`,
		id, role, content, agent, now)
	if err != nil {
		slog.Error("SQLiteStore AppendMessage insert failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return tx.Commit()
}

// SetWorkflowStep records the conversation's position in the turn graph.
func (s *SQLiteStore) SetWorkflowStep(id string, step models.WorkflowStep) error {
	res, err := s.db.Exec(
		`UPDATE conversations SET workflow_step = ?, updated_at = ? WHERE id = ?`,
		step, time.Now(), id)
	if err != nil {
		slog.Error("SQLiteStore SetWorkflowStep failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to update workflow step: %w", err)
	}
	return notFoundIfZero(res)
}

// Summarize derives the conversation digest from the stored messages.
func (s *SQLiteStore) Summarize(id string) (string, error) {
	conv, err := s.GetConversation(id)
	if err != nil {
		return "", err
	}
	return models.SummarizeMessages(conv.Messages), nil
}

// UpdateSummary stores the derived digest on the conversation row.
func (s *SQLiteStore) UpdateSummary(id string, summary string) error {
	res, err := s.db.Exec(
		`UPDATE conversations SET summary = ?, updated_at = ? WHERE id = ?`,
		summary, time.Now(), id)
	if err != nil {
		slog.Error("SQLiteStore UpdateSummary failed", "error", err, "conversationID", id)
		return fmt.Errorf("failed to update summary: %w", err)
	}
	return notFoundIfZero(res)
}

// SweepConversations removes conversations older than the cutoff.
func (s *SQLiteStore) SweepConversations(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	res, err := s.db.Exec(`DELETE FROM conversations WHERE updated_at < ?`, cutoff)
	if err != nil {
		slog.Error("SQLiteStore SweepConversations failed", "error", err)
		return 0, fmt.Errorf("failed to sweep conversations: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		slog.Info("SQLiteStore SweepConversations removed stale conversations", "count", removed)
	}
	return int(removed), nil
}

// SaveSession upserts a user session.
func (s *SQLiteStore) SaveSession(session models.UserSession) error {
	profileJSON, err := marshalProfile(session.Profile)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.Exec(
		`INSERT INTO sessions (user_id, file_id, profile_json, has_upload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET file_id = excluded.file_id, profile_json = excluded.profile_json,
		 has_upload = excluded.has_upload, updated_at = excluded.updated_at`,
		models.SessionKey(session.UserID), session.FileID, profileJSON, session.HasUpload, now, now)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession returns the session for a user, or nil when absent.
func (s *SQLiteStore) GetSession(userID string) (*models.UserSession, error) {
	var sess models.UserSession
	var profileJSON sql.NullString
	err := s.db.QueryRow(
		`SELECT user_id, file_id, profile_json, has_upload, created_at, updated_at FROM sessions WHERE user_id = ?`,
		models.SessionKey(userID)).Scan(
		&sess.UserID, &sess.FileID, &profileJSON, &sess.HasUpload, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	sess.Profile, err = unmarshalProfile(profileJSON)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}

// notFoundIfZero maps a zero-row UPDATE/DELETE to ErrConversationNotFound.
func notFoundIfZero(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConversationNotFound
	}
	return nil
}
