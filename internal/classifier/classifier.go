// Package classifier decides whether a message should be handled by the other
// coach persona.
//
// It scores case-insensitive keyword occurrences against two fixed topic
// vocabularies and returns a routing recommendation. It is a pure function over
// static tables: it recommends, it never changes the active persona itself.
package classifier

import (
	"strings"

	"github.com/brandscaling/coachflow/internal/models"
)

// Default topic vocabularies per persona. The two sets are disjoint.
var (
	// ArchitectKeywords cover business strategy, systems, and scaling topics.
	ArchitectKeywords = []string{
		"scale", "scaling", "systematic", "strategy", "framework", "process",
		"optimization", "efficiency", "metrics", "analytics", "operations",
		"growth", "revenue", "profit", "business model", "systems", "structure",
		"planning", "performance", "data", "roi", "kpi", "funnel", "conversion",
	}
	// AlchemistKeywords cover branding, purpose, and transformation topics.
	AlchemistKeywords = []string{
		"brand", "branding", "personal brand", "authentic", "purpose",
		"vision", "creativity", "transformation", "energy", "alignment",
		"intuition", "spiritual", "mindset", "beliefs", "values", "mission",
		"manifestation", "soul", "heart", "passion", "calling", "identity",
	}
)

// Redirect reason texts, surfaced verbatim inside hand-off messages.
const (
	reasonToAlchemist = "This question focuses on branding, purpose, and authentic expression - areas where the AI Alchemist (Fariza) specializes."
	reasonToArchitect = "This question focuses on business strategy, scaling, and systematic approaches - areas where the AI Architect (Hanif) specializes."
)

// Result is a routing recommendation for a single message.
type Result struct {
	ShouldRedirect   bool         `json:"should_redirect"`
	RecommendedAgent models.Agent `json:"recommended_agent,omitempty"`
	Reason           string       `json:"reason,omitempty"`
}

// Classifier scores messages against per-persona keyword vocabularies.
// The tables are immutable after construction and safe for concurrent use.
type Classifier struct {
	vocabularies map[models.Agent][]string
}

// New creates a Classifier with the default vocabularies.
func New() *Classifier {
	return NewWithVocabularies(ArchitectKeywords, AlchemistKeywords)
}

// NewWithVocabularies creates a Classifier with explicit vocabularies so the
// tables are independently testable and tunable.
func NewWithVocabularies(architect, alchemist []string) *Classifier {
	return &Classifier{
		vocabularies: map[models.Agent][]string{
			models.AgentArchitect: architect,
			models.AgentAlchemist: alchemist,
		},
	}
}

// Score returns the total occurrence count of a vocabulary's keywords in the
// lower-cased message. Duplicate occurrences of the same keyword all count.
func (c *Classifier) Score(message string, agent models.Agent) int {
	messageLower := strings.ToLower(message)
	count := 0
	for _, keyword := range c.vocabularies[agent] {
		count += strings.Count(messageLower, keyword)
	}
	return count
}

// Classify checks whether the message should be handled by the other persona.
//
// Redirect away from the current persona only when the other persona's score is
// strictly positive and at least as large as the current persona's. Ties favor
// switching; the Architect-leaving check is evaluated first.
func (c *Classifier) Classify(message string, currentAgent models.Agent) Result {
	architectMatches := c.Score(message, models.AgentArchitect)
	alchemistMatches := c.Score(message, models.AgentAlchemist)

	if currentAgent == models.AgentArchitect && alchemistMatches > 0 && alchemistMatches >= architectMatches {
		return Result{
			ShouldRedirect:   true,
			RecommendedAgent: models.AgentAlchemist,
			Reason:           reasonToAlchemist,
		}
	}
	if currentAgent == models.AgentAlchemist && architectMatches > 0 && architectMatches >= alchemistMatches {
		return Result{
			ShouldRedirect:   true,
			RecommendedAgent: models.AgentArchitect,
			Reason:           reasonToArchitect,
		}
	}

	return Result{ShouldRedirect: false}
}
