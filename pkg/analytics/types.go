package analytics

import (
	"time"

	"github.com/dotsetgreg/parley/pkg/analysis"
)

// Category partitions the event log.
type Category string

const (
	CategorySystem      Category = "system"
	CategoryInteraction Category = "interaction"
	CategoryOutcome     Category = "outcome"
)

// ScenarioContext is the current inferred classification of the
// conversation. It is recomputed wholesale on every utterance, never
// merged with its predecessor.
type ScenarioContext struct {
	Domain               string
	Intents              []string
	Complexity           analysis.Complexity
	RequiredCapabilities []string
	AmbiguityFactors     []analysis.AmbiguityFactor
	MemoryDependencies   []analysis.MemoryDependency
}

// InteractionPattern is the accumulated stylistic profile of how the user
// communicates. Unlike ScenarioContext it survives across turns and is
// updated by shallow merge.
type InteractionPattern struct {
	PrimaryIntent    string
	SecondaryIntents []string
	KnowledgeDepth   string
	Formality        string
	DetailLevel      string
	PreferredFormat  string
	UserExpertise    string
	GoalClarity      string
	Engagement       string
}

// PatternPatch is a partial InteractionPattern update. Nil fields leave
// the prior value untouched; set fields replace it entirely.
type PatternPatch struct {
	PrimaryIntent    *string
	SecondaryIntents *[]string
	KnowledgeDepth   *string
	Formality        *string
	DetailLevel      *string
	PreferredFormat  *string
	UserExpertise    *string
	GoalClarity      *string
	Engagement       *string
}

// OutcomeProjection is a forward-looking goal/capability/risk record.
// Projections accumulate per session and are never removed.
type OutcomeProjection struct {
	ImmediateGoal      string
	CapabilitiesNeeded []string
	RiskFactors        []string
	DelegationHint     string
	CreatedAt          time.Time
}

// Metadata tags every event with session-level context.
type Metadata struct {
	SessionID       string
	AgentName       string
	ContextualGoals []string
	Scenario        *ScenarioContext
}

// Event is one append-only analytics log entry. Payload is one of the
// typed payloads below, keyed by its Type; interaction events carry the
// live pattern snapshot, outcome events the full projection list.
type Event struct {
	Time        time.Time
	Category    Category
	Type        string
	Payload     Payload
	Metadata    Metadata
	Patterns    *InteractionPattern
	Projections []OutcomeProjection
}

// Payload is the per-type event body. Each event type carries its own
// strongly-typed payload rather than an untyped map.
type Payload interface {
	EventType() string
}

// ScenarioContextUpdated records a wholesale scenario replacement.
type ScenarioContextUpdated struct {
	Previous *ScenarioContext
	Analysis analysis.Analysis
}

func (ScenarioContextUpdated) EventType() string { return "scenario_context_updated" }

// AgentContextUpdated records the active persona changing.
type AgentContextUpdated struct {
	AgentName string
}

func (AgentContextUpdated) EventType() string { return "agent_context_updated" }

// PatternsUpdated records an interaction-pattern merge.
type PatternsUpdated struct {
	Patch  PatternPatch
	Merged InteractionPattern
}

func (PatternsUpdated) EventType() string { return "interaction_patterns_updated" }

// OutcomeProjected records a newly appended projection.
type OutcomeProjected struct {
	Projection OutcomeProjection
	Total      int
}

func (OutcomeProjected) EventType() string { return "outcome_projected" }

// DelegationRejected records an auto-delegation gate failure with the
// exact values that missed, so near-misses can be diagnosed.
type DelegationRejected struct {
	Confidence     float64
	ReasoningCount int
	ContextMatch   map[string]float64
	Failures       []string
}

func (DelegationRejected) EventType() string { return "delegation_rejected" }

// DelegationAccepted records an automatic agent switch that passed the
// gate.
type DelegationAccepted struct {
	AgentName  string
	Confidence float64
}

func (DelegationAccepted) EventType() string { return "delegation_accepted" }

// MessageExchanged records one transcript-visible message of a turn.
type MessageExchanged struct {
	Role  string
	Chars int
}

func (MessageExchanged) EventType() string { return "message_exchanged" }

// TurnFailed records a turn whose completion call did not produce an
// assistant message.
type TurnFailed struct {
	TurnID string
	Error  string
}

func (TurnFailed) EventType() string { return "turn_failed" }

// Insights is the read-only snapshot served to consumers.
type Insights struct {
	InteractionInsights *InteractionPattern
	OutcomeInsights     []OutcomeProjection
	RecentEvents        []Event
}
