package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/brandscaling/coachflow/internal/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "coachflow.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Fatal("expected error when DSN is not set")
	}
}

func TestSQLiteConversationRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)

	id, err := s.CreateConversation("user-1")
	if err != nil {
		t.Fatalf("CreateConversation failed: %v", err)
	}

	conv, err := s.GetConversation(id)
	if err != nil {
		t.Fatalf("GetConversation failed: %v", err)
	}
	if !conv.NeedsUpload || conv.ChosenAgent != models.AgentArchitect || conv.WorkflowStep != models.StepInitial {
		t.Errorf("unexpected new conversation defaults %+v", conv)
	}
	if conv.UserID != "user-1" {
		t.Errorf("expected user id to round-trip, got %q", conv.UserID)
	}

	if _, err := s.GetConversation("missing"); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSQLiteAppendAndMessages(t *testing.T) {
	s := newTestSQLiteStore(t)
	id, _ := s.CreateConversation("")

	if err := s.AppendMessage(id, models.RoleUser, "first", ""); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := s.AppendMessage(id, models.RoleAssistant, "second", models.AgentAlchemist); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}

	conv, _ := s.GetConversation(id)
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[0].Content != "first" || conv.Messages[1].Content != "second" {
		t.Errorf("messages out of order: %+v", conv.Messages)
	}
	if conv.Messages[1].Agent != models.AgentAlchemist {
		t.Errorf("expected assistant message tagged alchemist, got %q", conv.Messages[1].Agent)
	}

	if err := s.AppendMessage("missing", models.RoleUser, "x", ""); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestSQLiteProfileAndWorkflow(t *testing.T) {
	s := newTestSQLiteStore(t)
	id, _ := s.CreateConversation("")

	p := models.Profile{Type: models.ProfileTypeBlurred, Confidence: 0.9, Excerpt: "snippet"}
	if err := s.AttachProfile(id, p); err != nil {
		t.Fatalf("AttachProfile failed: %v", err)
	}
	if err := s.SetChosenAgent(id, models.AgentAlchemist); err != nil {
		t.Fatalf("SetChosenAgent failed: %v", err)
	}
	if err := s.SetWorkflowStep(id, models.StepCompleted); err != nil {
		t.Fatalf("SetWorkflowStep failed: %v", err)
	}

	conv, _ := s.GetConversation(id)
	if conv.NeedsUpload {
		t.Error("expected NeedsUpload false after profile attach")
	}
	if conv.Profile == nil || conv.Profile.Type != models.ProfileTypeBlurred || conv.Profile.Excerpt != "snippet" {
		t.Errorf("profile did not round-trip: %+v", conv.Profile)
	}
	if conv.ChosenAgent != models.AgentAlchemist || conv.CurrentAgent != models.AgentAlchemist {
		t.Errorf("agent choice did not round-trip: %+v", conv)
	}
	if conv.WorkflowStep != models.StepCompleted {
		t.Errorf("workflow step did not round-trip: %s", conv.WorkflowStep)
	}
}

func TestSQLiteSummaryAndSweep(t *testing.T) {
	s := newTestSQLiteStore(t)
	id, _ := s.CreateConversation("")

	for _, topic := range []string{"pricing", "hiring", "marketing"} {
		s.AppendMessage(id, models.RoleUser, topic, "")
		s.AppendMessage(id, models.RoleAssistant, "reply", models.AgentArchitect)
	}

	want := "User has asked about: pricing, hiring, marketing"
	summary, err := s.Summarize(id)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != want {
		t.Errorf("expected %q, got %q", want, summary)
	}
	if err := s.UpdateSummary(id, summary); err != nil {
		t.Fatalf("UpdateSummary failed: %v", err)
	}
	conv, _ := s.GetConversation(id)
	if conv.Summary != want {
		t.Errorf("stored summary mismatch: %q", conv.Summary)
	}

	removed, err := s.SweepConversations(time.Hour)
	if err != nil {
		t.Fatalf("SweepConversations failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected fresh conversation to survive, removed %d", removed)
	}
	removed, _ = s.SweepConversations(-time.Second)
	if removed != 1 {
		t.Errorf("expected 1 conversation removed, got %d", removed)
	}
	if count, _ := s.CountConversations(); count != 0 {
		t.Errorf("expected empty store after sweep, got %d", count)
	}
}

func TestSQLiteSessions(t *testing.T) {
	s := newTestSQLiteStore(t)

	sess, err := s.GetSession("nobody")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session for unknown user, got %+v", sess)
	}

	p := models.Profile{Type: models.ProfileTypeArchitect, Confidence: 0.9}
	if err := s.SaveSession(models.UserSession{UserID: "u1", FileID: "f1", Profile: &p, HasUpload: true}); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}
	if err := s.SaveSession(models.UserSession{UserID: "u1", FileID: "f2", Profile: &p, HasUpload: true}); err != nil {
		t.Fatalf("SaveSession upsert failed: %v", err)
	}

	sess, _ = s.GetSession("u1")
	if sess == nil || sess.FileID != "f2" || !sess.HasUpload {
		t.Fatalf("unexpected session after upsert: %+v", sess)
	}
	if sess.Profile == nil || sess.Profile.Type != models.ProfileTypeArchitect {
		t.Errorf("session profile did not round-trip: %+v", sess.Profile)
	}
}

func TestSQLiteDeleteCascadesMessages(t *testing.T) {
	s := newTestSQLiteStore(t)
	id, _ := s.CreateConversation("user-a")
	s.AppendMessage(id, models.RoleUser, "hello", "")

	if err := s.DeleteConversation(id); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}
	if err := s.DeleteConversation(id); !errors.Is(err, ErrConversationNotFound) {
		t.Errorf("expected ErrConversationNotFound on double delete, got %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		t.Fatalf("count messages failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected messages to cascade on delete, found %d", count)
	}
}
