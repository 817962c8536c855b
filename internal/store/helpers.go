package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/brandscaling/coachflow/internal/models"
)

// marshalProfile serializes a profile for a nullable database column.
func marshalProfile(p *models.Profile) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile failed: %w", err)
	}
	return string(data), nil
}

// unmarshalProfile deserializes a nullable profile column.
func unmarshalProfile(raw sql.NullString) (*models.Profile, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var p models.Profile
	if err := json.Unmarshal([]byte(raw.String), &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile failed: %w", err)
	}
	return &p, nil
}

// scanConversationRow scans a conversation (without messages) from a single row.
func scanConversationRow(row *sql.Row) (*models.Conversation, error) {
	var conv models.Conversation
	var profileJSON sql.NullString
	err := row.Scan(
		&conv.ID, &conv.UserID, &profileJSON, &conv.NeedsUpload,
		&conv.ChosenAgent, &conv.CurrentAgent, &conv.WorkflowStep,
		&conv.Summary, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conv.Profile, err = unmarshalProfile(profileJSON)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// scanConversation scans a conversation (without messages) from sql.Rows.
func scanConversation(rows *sql.Rows) (*models.Conversation, error) {
	var conv models.Conversation
	var profileJSON sql.NullString
	err := rows.Scan(
		&conv.ID, &conv.UserID, &profileJSON, &conv.NeedsUpload,
		&conv.ChosenAgent, &conv.CurrentAgent, &conv.WorkflowStep,
		&conv.Summary, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan conversation failed: %w", err)
	}
	conv.Profile, err = unmarshalProfile(profileJSON)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// scanMessages collects ordered messages from sql.Rows.
func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.Agent, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message failed: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows failed: %w", err)
	}
	return messages, nil
}
