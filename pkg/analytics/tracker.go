// Package analytics tracks per-session interaction state: the current
// scenario context, the accumulated interaction pattern, outcome
// projections, and an append-only event log. One Tracker is constructed
// per session and passed explicitly to every component that logs; there
// is no process-wide singleton.
package analytics

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/parley/pkg/analysis"
)

// RecentEventLimit caps how many events Insights returns.
const RecentEventLimit = 50

// Generic capabilities added when complexity is high.
var highComplexityCapabilities = []string{"detailed_analysis", "complex_reasoning"}

// Base capabilities contributed per domain.
var domainCapabilities = map[string][]string{
	"technology": {"technical_knowledge", "code_understanding"},
	"science":    {"scientific_reasoning"},
	"business":   {"business_analysis", "planning"},
	"health":     {"health_guidance"},
	"travel":     {"trip_planning"},
	"finance":    {"financial_analysis"},
	"general":    {"general_assistance"},
}

// Tracker owns one session's analytics state. Methods are safe for
// concurrent use, though mutation is normally single-threaded per the
// event-driven session flow.
type Tracker struct {
	mu          sync.Mutex
	sessionID   string
	agentName   string
	scenario    *ScenarioContext
	pattern     *InteractionPattern
	projections []OutcomeProjection
	events      []Event
	now         func() time.Time
}

// NewTracker mints a fresh session id and an empty state. The id is an
// event-log tag only; it is never persisted.
func NewTracker() *Tracker {
	return &Tracker{
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// UpdateScenarioContext analyzes the utterance and replaces the current
// scenario context wholesale. The previous context is preserved only in
// the emitted event.
func (t *Tracker) UpdateScenarioContext(content string) ScenarioContext {
	a := analysis.Analyze(content)

	next := ScenarioContext{
		Domain:               a.Domain,
		Intents:              append([]string(nil), a.Intents...),
		Complexity:           a.Complexity,
		RequiredCapabilities: capabilitiesFor(a),
		AmbiguityFactors:     append([]analysis.AmbiguityFactor(nil), a.AmbiguityFactors...),
		MemoryDependencies:   append([]analysis.MemoryDependency(nil), a.MemoryDependencies...),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.scenario
	t.scenario = &next
	t.logLocked(CategorySystem, ScenarioContextUpdated{Previous: prev, Analysis: a})
	return next
}

// SetCurrentAgent records the active persona.
func (t *Tracker) SetCurrentAgent(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.agentName = name
	t.logLocked(CategorySystem, AgentContextUpdated{AgentName: name})
}

func (t *Tracker) CurrentAgent() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.agentName
}

// UpdatePatterns shallow-merges the patch into the current pattern,
// creating one if absent, and returns the merged result.
func (t *Tracker) UpdatePatterns(patch PatternPatch) InteractionPattern {
	t.mu.Lock()
	defer t.mu.Unlock()

	base := InteractionPattern{}
	if t.pattern != nil {
		base = *t.pattern
	}
	merged := MergePattern(base, patch)
	t.pattern = &merged
	t.logLocked(CategoryInteraction, PatternsUpdated{Patch: patch, Merged: merged})
	return merged
}

// AddOutcomeProjection appends to the unbounded projection list.
func (t *Tracker) AddOutcomeProjection(p OutcomeProjection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.now()
	}
	t.projections = append(t.projections, p)
	t.logLocked(CategoryOutcome, OutcomeProjected{Projection: p, Total: len(t.projections)})
}

// LogSystem, LogInteraction and LogOutcome append an event in the named
// category. Interaction events carry the live pattern snapshot, outcome
// events the full projection list.
func (t *Tracker) LogSystem(p Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLocked(CategorySystem, p)
}

func (t *Tracker) LogInteraction(p Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLocked(CategoryInteraction, p)
}

func (t *Tracker) LogOutcome(p Payload) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.logLocked(CategoryOutcome, p)
}

// Scenario returns a copy of the current scenario context, or nil before
// the first utterance.
func (t *Tracker) Scenario() *ScenarioContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyScenario(t.scenario)
}

// Pattern returns a copy of the current interaction pattern, or nil
// before the first patch.
func (t *Tracker) Pattern() *InteractionPattern {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyPattern(t.pattern)
}

// Insights returns the read-only analytics snapshot: the pattern, the
// full projection list and the most recent events.
func (t *Tracker) Insights() Insights {
	t.mu.Lock()
	defer t.mu.Unlock()

	events := t.events
	if len(events) > RecentEventLimit {
		events = events[len(events)-RecentEventLimit:]
	}
	return Insights{
		InteractionInsights: copyPattern(t.pattern),
		OutcomeInsights:     append([]OutcomeProjection(nil), t.projections...),
		RecentEvents:        append([]Event(nil), events...),
	}
}

func (t *Tracker) logLocked(category Category, p Payload) {
	ev := Event{
		Time:     t.now(),
		Category: category,
		Type:     p.EventType(),
		Payload:  p,
		Metadata: Metadata{
			SessionID:       t.sessionID,
			AgentName:       t.agentName,
			ContextualGoals: t.contextualGoalsLocked(),
			Scenario:        copyScenario(t.scenario),
		},
	}
	switch category {
	case CategoryInteraction:
		ev.Patterns = copyPattern(t.pattern)
	case CategoryOutcome:
		ev.Projections = append([]OutcomeProjection(nil), t.projections...)
	}
	t.events = append(t.events, ev)
}

func (t *Tracker) contextualGoalsLocked() []string {
	if len(t.projections) == 0 {
		return nil
	}
	goals := make([]string, 0, len(t.projections))
	for _, p := range t.projections {
		if p.ImmediateGoal != "" {
			goals = append(goals, p.ImmediateGoal)
		}
	}
	return goals
}

func capabilitiesFor(a analysis.Analysis) []string {
	caps := append([]string(nil), domainCapabilities[a.Domain]...)
	if len(caps) == 0 {
		caps = append(caps, domainCapabilities["general"]...)
	}
	if a.Complexity == analysis.ComplexityHigh {
		caps = append(caps, highComplexityCapabilities...)
	}
	return caps
}

func copyScenario(sc *ScenarioContext) *ScenarioContext {
	if sc == nil {
		return nil
	}
	out := *sc
	out.Intents = append([]string(nil), sc.Intents...)
	out.RequiredCapabilities = append([]string(nil), sc.RequiredCapabilities...)
	out.AmbiguityFactors = append([]analysis.AmbiguityFactor(nil), sc.AmbiguityFactors...)
	out.MemoryDependencies = append([]analysis.MemoryDependency(nil), sc.MemoryDependencies...)
	return &out
}

func copyPattern(p *InteractionPattern) *InteractionPattern {
	if p == nil {
		return nil
	}
	out := *p
	out.SecondaryIntents = append([]string(nil), p.SecondaryIntents...)
	return &out
}
