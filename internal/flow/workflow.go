package flow

import (
	"context"
	"log/slog"

	"github.com/brandscaling/coachflow/internal/models"
	"github.com/brandscaling/coachflow/internal/store"
)

// summaryRefreshThreshold is the message count past which finalization
// recomputes the conversation digest.
const summaryRefreshThreshold = 5

// Engine drives one conversation turn through the fixed workflow:
// check upload gate, route to the chosen persona, generate the response,
// finalize. The step set is closed; there is no dynamic graph.
type Engine struct {
	st        store.Store
	responder *PersonaResponder
}

// NewEngine creates a workflow engine over the given store and responder.
func NewEngine(st store.Store, responder *PersonaResponder) *Engine {
	return &Engine{st: st, responder: responder}
}

// ProcessTurn runs a single user message through the workflow and returns the
// outcome. An unknown conversation id fails without mutating anything. On
// success the result carries the latest assistant message, the persona that
// produced it, and the terminal workflow step.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, userMessage string, chosenAgent models.Agent) models.TurnResult {
	slog.Debug("Engine.ProcessTurn invoked", "conversationID", conversationID, "chosenAgent", chosenAgent)

	conv, err := e.st.GetConversation(conversationID)
	if err != nil {
		slog.Warn("Engine.ProcessTurn conversation lookup failed", "error", err, "conversationID", conversationID)
		return e.failure(conversationID, "Conversation not found")
	}

	// The caller's persona choice lands before the message so the upload gate
	// speaks in the right voice.
	if err := e.st.SetChosenAgent(conversationID, chosenAgent); err != nil {
		return e.failure(conversationID, err.Error())
	}
	if err := e.st.AppendMessage(conversationID, models.RoleUser, userMessage, ""); err != nil {
		return e.failure(conversationID, err.Error())
	}

	step := models.StepCheckUpload
	for {
		switch step {
		case models.StepCheckUpload:
			if conv.NeedsUpload || conv.Profile == nil {
				return e.requestUpload(conversationID, chosenAgent)
			}
			step = models.StepRouteToAgent

		case models.StepRouteToAgent:
			if err := e.st.SetWorkflowStep(conversationID, models.AgentResponseStep(chosenAgent)); err != nil {
				return e.failure(conversationID, err.Error())
			}
			step = models.AgentResponseStep(chosenAgent)

		case models.AgentResponseStep(models.AgentArchitect), models.AgentResponseStep(models.AgentAlchemist):
			response := e.responder.Respond(ctx, userMessage, chosenAgent, conv.Profile, true)
			if err := e.st.AppendMessage(conversationID, models.RoleAssistant, response, chosenAgent); err != nil {
				return e.failure(conversationID, err.Error())
			}
			step = models.StepFinalize

		case models.StepFinalize:
			return e.finalize(conversationID, chosenAgent)
		}
	}
}

// requestUpload terminates the turn with the persona's onboarding message and
// leaves the conversation parked at the upload step.
func (e *Engine) requestUpload(conversationID string, chosenAgent models.Agent) models.TurnResult {
	onboarding := Onboarding(chosenAgent)
	if err := e.st.AppendMessage(conversationID, models.RoleAssistant, onboarding, chosenAgent); err != nil {
		return e.failure(conversationID, err.Error())
	}
	if err := e.st.SetWorkflowStep(conversationID, models.StepPDFUpload); err != nil {
		return e.failure(conversationID, err.Error())
	}
	slog.Debug("Engine turn parked awaiting upload", "conversationID", conversationID, "agent", chosenAgent)
	return models.TurnResult{
		Success:        true,
		Response:       onboarding,
		Agent:          chosenAgent,
		ConversationID: conversationID,
		WorkflowStep:   models.StepPDFUpload,
	}
}

// finalize refreshes the derived summary when the conversation has grown past
// the threshold, marks the turn completed, and surfaces the latest reply.
func (e *Engine) finalize(conversationID string, chosenAgent models.Agent) models.TurnResult {
	conv, err := e.st.GetConversation(conversationID)
	if err != nil {
		return e.failure(conversationID, err.Error())
	}

	if len(conv.Messages) > summaryRefreshThreshold {
		summary, err := e.st.Summarize(conversationID)
		if err != nil {
			return e.failure(conversationID, err.Error())
		}
		if err := e.st.UpdateSummary(conversationID, summary); err != nil {
			return e.failure(conversationID, err.Error())
		}
	}

	if err := e.st.SetWorkflowStep(conversationID, models.StepCompleted); err != nil {
		return e.failure(conversationID, err.Error())
	}

	result := models.TurnResult{
		Success:        true,
		Response:       "No response generated",
		Agent:          chosenAgent,
		ConversationID: conversationID,
		WorkflowStep:   models.StepCompleted,
	}
	if latest, ok := conv.LatestAssistantMessage(); ok {
		result.Response = latest.Content
		if latest.Agent != "" {
			result.Agent = latest.Agent
		}
	}
	return result
}

func (e *Engine) failure(conversationID, msg string) models.TurnResult {
	return models.TurnResult{
		Success:        false,
		ConversationID: conversationID,
		Error:          msg,
	}
}
