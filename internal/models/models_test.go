package models

import (
	"strings"
	"testing"
)

func TestAgentHelpers(t *testing.T) {
	if !IsValidAgent(AgentArchitect) || !IsValidAgent(AgentAlchemist) {
		t.Error("expected both personas to be valid agents")
	}
	if IsValidAgent("wizard") {
		t.Error("expected unknown agent to be invalid")
	}

	if AgentArchitect.Other() != AgentAlchemist {
		t.Error("expected architect's counterpart to be alchemist")
	}
	if AgentAlchemist.Other() != AgentArchitect {
		t.Error("expected alchemist's counterpart to be architect")
	}

	if got := AgentArchitect.DisplayName(); got != "AI Architect" {
		t.Errorf("unexpected architect display name %q", got)
	}
	if got := AgentAlchemist.DisplayName(); got != "AI Alchemist" {
		t.Errorf("unexpected alchemist display name %q", got)
	}
}

func TestAgentResponseStep(t *testing.T) {
	if got := AgentResponseStep(AgentArchitect); got != WorkflowStep("architect_response") {
		t.Errorf("unexpected step %q", got)
	}
	if got := AgentResponseStep(AgentAlchemist); got != WorkflowStep("alchemist_response") {
		t.Errorf("unexpected step %q", got)
	}
}

func TestSummarizeMessagesBelowThreshold(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "pricing"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "hiring"},
		{Role: RoleAssistant, Content: "reply"},
	}
	if got := SummarizeMessages(messages); got != "" {
		t.Errorf("expected empty summary at threshold, got %q", got)
	}
}

func TestSummarizeMessagesDigest(t *testing.T) {
	messages := []Message{
		{Role: RoleUser, Content: "pricing"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "hiring"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "marketing"},
		{Role: RoleAssistant, Content: "reply"},
		{Role: RoleUser, Content: "a fourth topic"},
	}
	want := "User has asked about: pricing, hiring, marketing"
	if got := SummarizeMessages(messages); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestSummarizeMessagesIgnoresAssistantContent(t *testing.T) {
	messages := []Message{
		{Role: RoleAssistant, Content: "one"},
		{Role: RoleAssistant, Content: "two"},
		{Role: RoleAssistant, Content: "three"},
		{Role: RoleAssistant, Content: "four"},
		{Role: RoleAssistant, Content: "five"},
	}
	if got := SummarizeMessages(messages); got != "" {
		t.Errorf("expected empty summary without user messages, got %q", got)
	}
}

func TestLatestMessageLookups(t *testing.T) {
	conv := Conversation{Messages: []Message{
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "reply one", Agent: AgentArchitect},
		{Role: RoleUser, Content: "second"},
		{Role: RoleAssistant, Content: "reply two", Agent: AgentAlchemist},
	}}

	content, ok := conv.LatestUserMessage()
	if !ok || content != "second" {
		t.Errorf("expected latest user message 'second', got %q ok=%v", content, ok)
	}

	msg, ok := conv.LatestAssistantMessage()
	if !ok || msg.Content != "reply two" || msg.Agent != AgentAlchemist {
		t.Errorf("unexpected latest assistant message %+v ok=%v", msg, ok)
	}

	empty := Conversation{}
	if _, ok := empty.LatestUserMessage(); ok {
		t.Error("expected no user message in empty conversation")
	}
	if _, ok := empty.LatestAssistantMessage(); ok {
		t.Error("expected no assistant message in empty conversation")
	}
}

func TestSessionKey(t *testing.T) {
	if got := SessionKey(""); got != AnonymousUserID {
		t.Errorf("expected anonymous key for empty user id, got %q", got)
	}
	if got := SessionKey("user-42"); got != "user-42" {
		t.Errorf("expected passthrough key, got %q", got)
	}
}

func TestChatRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     ChatRequest
		wantErr error
	}{
		{"valid", ChatRequest{Message: "hello"}, nil},
		{"empty", ChatRequest{Message: ""}, ErrEmptyMessage},
		{"whitespace", ChatRequest{Message: "   "}, ErrEmptyMessage},
		{"too long", ChatRequest{Message: strings.Repeat("a", MaxMessageLength+1)}, ErrMessageTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.req.Validate(); err != tc.wantErr {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestConversationChatRequestValidate(t *testing.T) {
	req := ConversationChatRequest{Message: "hello"}
	if err := req.Validate(); err != ErrMissingConversationID {
		t.Errorf("expected missing conversation id error, got %v", err)
	}

	req.ConversationID = "abc"
	if err := req.Validate(); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}

	req.Message = ""
	if err := req.Validate(); err != ErrEmptyMessage {
		t.Errorf("expected empty message error, got %v", err)
	}
}
