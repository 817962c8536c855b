// Package flow implements the conversation workflow: persona response
// generation, hand-off between personas, and the fixed turn-processing engine.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brandscaling/coachflow/internal/classifier"
	"github.com/brandscaling/coachflow/internal/genai"
	"github.com/brandscaling/coachflow/internal/models"
)

// Onboarding texts returned before a profile is attached. The persona asks for
// the E-DNA results upload instead of answering.
const (
	architectOnboarding = `Hello! I'm Hanif Khan, The Architect from Brandscaling.

Before I can provide you with the most precise and strategic guidance, I need to understand your Entrepreneurial DNA profile.

Please upload your E-DNA quiz results PDF so I can:
1. Understand your specific entrepreneurial type
2. Tailor my systematic approach to your unique profile
3. Provide frameworks that align with your natural strengths

Once you upload your results, I'll be able to give you the exact strategic guidance you need to scale your business systematically.

Use the /upload endpoint to share your E-DNA results PDF.`

	alchemistOnboarding = `Hello beautiful soul! I'm Fariza Javed, The Alchemist from Brandscaling.

Before we dive into transforming your business and aligning it with your authentic purpose, I need to understand your Entrepreneurial DNA.

Please upload your E-DNA quiz results PDF so I can:
1. See your unique entrepreneurial blueprint
2. Understand your natural energy patterns
3. Guide you toward authentic alignment and purposeful scaling

Your E-DNA results will help me provide the most transformative and personalized guidance for your journey.

Use the /upload endpoint to share your E-DNA results PDF, and let's begin this beautiful transformation together! ✨`
)

// Hand-off texts returned instead of a model call when the classifier
// recommends the other persona. The %s slot carries the classifier's reason.
const (
	architectHandOff = `I appreciate your question about branding and authentic expression, but this is exactly the kind of transformational work that the AI Alchemist (Fariza) specializes in.

%s

Fariza has deep expertise in personal brand development, authentic alignment, and purpose-driven business building. She would provide you with much more insightful guidance on this topic.

Please switch to chat with the AI Alchemist using the /api/v1/chat/alchemist endpoint, and she'll help you create an authentic brand that truly resonates with your purpose.`

	alchemistHandOff = `Beautiful soul, while I sense the energy behind your question, this is more of a systematic, strategic challenge that the AI Architect (Hanif) is masterfully equipped to handle.

%s

Hanif excels at creating frameworks, optimizing processes, and building scalable systems. He would provide you with the precise, step-by-step approach you need for this particular challenge.

Please switch to chat with the AI Architect using the /api/v1/chat/architect endpoint, and he'll give you the systematic guidance you're looking for.`
)

// Persona instruction templates. The %s slot carries the profile context line.
const (
	architectInstructions = `You are Hanif Khan, "The Architect" from Brandscaling.

PERSONALITY TRAITS:
- Precise, calm, and strategic
- You cut through complexity with exact, no-fluff communication
- You always ask "What's the root problem here?"
- You focus on systematic solutions and frameworks
- You believe "Most problems are decisions avoided—not strategy missing"

COMMUNICATION STYLE:
- Direct and to-the-point
- Use systematic thinking
- Break down complex problems into clear steps
- Focus on root causes, not symptoms
- Provide actionable frameworks
- Start responses with "**The root problem here:**" when identifying issues

EXPERTISE:
- Business scaling strategies
- Performance optimization
- Systematic process design
- Strategic decision-making
- Operational efficiency
- Revenue optimization
- Systems and frameworks

USER'S E-DNA PROFILE: %s

RESPONSE FORMAT:
- Start with identifying the core issue using "**The root problem here:**"
- Provide numbered, systematic steps
- Include specific, actionable advice
- End with a strategic insight or framework
- Keep responses focused and precise

Remember: You are Hanif Khan. Respond as him, with his precise, strategic approach.`

	alchemistInstructions = `You are Fariza Javed, "The Alchemist" from Brandscaling.

PERSONALITY TRAITS:
- Warm, magnetic, and empowering
- You sense what the market wants before it knows it wants it
- You help founders align internal evolution with external brand presence
- You believe "You can't scale what you haven't clarified"
- You focus on authentic transformation and energetic alignment

COMMUNICATION STYLE:
- Warm and nurturing tone
- Use transformational language
- Focus on authentic alignment
- Inspire depth and clarity
- Provide intuitive insights
- Often start with empathetic expressions like "*leans in*" or "Beautiful soul"

EXPERTISE:
- Personal brand development
- Authentic scaling methods
- Energy optimization
- Creative manifestation
- Purpose-profit alignment
- Transformational leadership
- Intuitive business guidance

USER'S E-DNA PROFILE: %s

RESPONSE FORMAT:
- Start with empathetic understanding and warm connection
- Guide through transformational insights
- Focus on authentic alignment and purpose
- Provide creative, intuitive solutions
- End with empowering affirmation
- Use warm, inspiring language throughout

Remember: You are Fariza Javed. Respond as her, with her warm, transformational approach.`
)

// Default profile context used when no profile has been attached.
const (
	architectDefaultProfile = "Architect type - systematic, strategic thinker"
	alchemistDefaultProfile = "Alchemist type - intuitive, transformational leader"
)

const apologyTemplate = "I apologize, but I'm experiencing technical difficulties. Please try again. Error: %s"

// PersonaResponder produces a display-ready reply for one persona turn. It
// short-circuits on missing profile (onboarding) and on specialization
// mismatch (hand-off) before reaching for the model.
type PersonaResponder struct {
	model      genai.ClientInterface
	classifier *classifier.Classifier
}

// NewPersonaResponder creates a responder backed by the given model client
// and keyword classifier.
func NewPersonaResponder(model genai.ClientInterface, cls *classifier.Classifier) *PersonaResponder {
	if cls == nil {
		cls = classifier.New()
	}
	return &PersonaResponder{model: model, classifier: cls}
}

// Onboarding returns the persona's request for an E-DNA upload.
func Onboarding(agent models.Agent) string {
	if agent == models.AgentAlchemist {
		return alchemistOnboarding
	}
	return architectOnboarding
}

// Respond generates the persona's reply to the user message. It never returns
// an error: model failures surface as an apology text so every turn yields a
// display-ready string.
func (p *PersonaResponder) Respond(ctx context.Context, message string, agent models.Agent, profile *models.Profile, hasProfile bool) string {
	slog.Debug("PersonaResponder.Respond invoked", "agent", agent, "hasProfile", hasProfile)

	if !hasProfile {
		return Onboarding(agent)
	}

	if result := p.classifier.Classify(message, agent); result.ShouldRedirect {
		slog.Debug("PersonaResponder.Respond handing off", "from", agent, "to", result.RecommendedAgent)
		if agent == models.AgentAlchemist {
			return fmt.Sprintf(alchemistHandOff, result.Reason)
		}
		return fmt.Sprintf(architectHandOff, result.Reason)
	}

	systemPrompt := buildInstructions(agent, profile)
	response, err := p.model.GeneratePrompt(ctx, systemPrompt, message)
	if err != nil {
		slog.Error("PersonaResponder.Respond model call failed", "error", err, "agent", agent)
		return fmt.Sprintf(apologyTemplate, err)
	}
	return response
}

// buildInstructions assembles the persona system prompt with profile context.
func buildInstructions(agent models.Agent, profile *models.Profile) string {
	if agent == models.AgentAlchemist {
		return fmt.Sprintf(alchemistInstructions, profileContext(profile, alchemistDefaultProfile))
	}
	return fmt.Sprintf(architectInstructions, profileContext(profile, architectDefaultProfile))
}

func profileContext(profile *models.Profile, fallback string) string {
	if profile == nil {
		return fallback
	}
	return fmt.Sprintf("%s type (confidence %.1f). Results excerpt: %s", profile.Type, profile.Confidence, profile.Excerpt)
}
