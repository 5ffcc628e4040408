// Package session orchestrates one conversation: it runs the per-turn
// flow (analyze, remember, assemble, send, record), enforces the
// single-outstanding-send rule, and applies the delegation gate to
// autonomous agent switches.
package session

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dotsetgreg/parley/pkg/analysis"
	"github.com/dotsetgreg/parley/pkg/analytics"
	"github.com/dotsetgreg/parley/pkg/delegation"
	"github.com/dotsetgreg/parley/pkg/logger"
	"github.com/dotsetgreg/parley/pkg/memory"
	"github.com/dotsetgreg/parley/pkg/providers"
	"github.com/dotsetgreg/parley/pkg/transcript"
)

// ErrSendInFlight rejects a second send while one is outstanding for the
// same conversation. The caller retries after the current turn resolves;
// nothing is queued.
var ErrSendInFlight = errors.New("a send is already in flight for this conversation")

// DefaultSystemPrompt anchors the assistant identity when the config
// provides none.
const DefaultSystemPrompt = "You are a helpful conversational assistant. Use the provided conversation summary and key points as authoritative context."

// Options configures one engine instance.
type Options struct {
	SystemPrompt string
	Model        string
	Temperature  float64
	MaxTokens    int
	Gate         delegation.GateConfig
}

// Engine owns all live state for one conversation session. Everything is
// in-memory and discarded on Disconnect.
type Engine struct {
	opts       Options
	chain      *memory.Chain
	tracker    *analytics.Tracker
	advisor    *delegation.Advisor
	completer  providers.Completer
	transcript *transcript.Store
	sending    atomic.Bool
}

func NewEngine(opts Options, chain *memory.Chain, tracker *analytics.Tracker, advisor *delegation.Advisor, completer providers.Completer) *Engine {
	if strings.TrimSpace(opts.SystemPrompt) == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.Gate == (delegation.GateConfig{}) {
		opts.Gate = delegation.DefaultGateConfig()
	}
	return &Engine{
		opts:       opts,
		chain:      chain,
		tracker:    tracker,
		advisor:    advisor,
		completer:  completer,
		transcript: transcript.NewStore(),
	}
}

// Send runs one conversation turn. The user message is always recorded;
// a failed completion leaves the transcript without an assistant message
// and surfaces the error.
func (e *Engine) Send(ctx context.Context, text string) (providers.Message, error) {
	if !e.sending.CompareAndSwap(false, true) {
		return providers.Message{}, ErrSendInFlight
	}
	defer e.sending.Store(false)

	turnID := uuid.NewString()

	scenario := e.tracker.UpdateScenarioContext(text)
	e.tracker.UpdatePatterns(patchFromScenario(scenario))
	if scenario.Complexity == analysis.ComplexityHigh {
		e.tracker.AddOutcomeProjection(analytics.OutcomeProjection{
			ImmediateGoal:      text,
			CapabilitiesNeeded: scenario.RequiredCapabilities,
			DelegationHint:     scenario.Domain,
		})
	}

	userItemID := uuid.NewString()
	if err := e.transcript.Add(userItemID, memory.RoleUser, text); err == nil {
		_ = e.transcript.UpdateStatus(userItemID, transcript.StatusDone)
	}
	e.chain.Add(ctx, memory.Message{Role: memory.RoleUser, Content: text})
	e.tracker.LogInteraction(analytics.MessageExchanged{Role: memory.RoleUser, Chars: len(text)})

	messages := e.assembleMessages(text)

	reply, err := e.completer.Complete(ctx, messages, providers.Options{
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		MaxTokens:   e.opts.MaxTokens,
	})
	if err != nil {
		e.tracker.LogSystem(analytics.TurnFailed{TurnID: turnID, Error: err.Error()})
		logger.ErrorCF("session", "Turn failed without assistant reply",
			map[string]interface{}{"turn_id": turnID, "error": err.Error()})
		return providers.Message{}, err
	}

	e.chain.Add(ctx, memory.Message{Role: memory.RoleAssistant, Content: reply.Content})
	assistantItemID := uuid.NewString()
	if err := e.transcript.Add(assistantItemID, memory.RoleAssistant, reply.Content); err == nil {
		_ = e.transcript.UpdateStatus(assistantItemID, transcript.StatusDone)
	}
	e.tracker.LogInteraction(analytics.MessageExchanged{Role: memory.RoleAssistant, Chars: len(reply.Content)})

	return reply, nil
}

// patchFromScenario folds the latest utterance signals into the rolling
// interaction pattern. Only intent and goal clarity change per turn;
// preference fields persist until something else patches them.
func patchFromScenario(sc analytics.ScenarioContext) analytics.PatternPatch {
	patch := analytics.PatternPatch{}
	if len(sc.Intents) > 0 {
		patch.PrimaryIntent = &sc.Intents[0]
		secondary := append([]string(nil), sc.Intents[1:]...)
		patch.SecondaryIntents = &secondary
	}
	clarity := "high"
	switch {
	case len(sc.AmbiguityFactors) == 1:
		clarity = "medium"
	case len(sc.AmbiguityFactors) > 1:
		clarity = "low"
	}
	patch.GoalClarity = &clarity
	return patch
}

// assembleMessages builds the outgoing list: base system prompt, the
// rolling history, a synthetic system message carrying the compressed
// context, then the live user turn. The history snapshot already holds
// the just-recorded user message, so it is stripped from the middle and
// re-appended last.
func (e *Engine) assembleMessages(current string) []providers.Message {
	snap := e.chain.Context()
	history := snap.Messages
	if n := len(history); n > 0 && history[n-1].Role == memory.RoleUser && history[n-1].Content == current {
		history = history[:n-1]
	}

	messages := make([]providers.Message, 0, len(history)+3)
	messages = append(messages, providers.Message{Role: memory.RoleSystem, Content: e.opts.SystemPrompt})
	for _, m := range history {
		messages = append(messages, providers.Message{Role: m.Role, Content: m.Content})
	}
	if formatted := e.chain.FormattedContext(); formatted != "" {
		messages = append(messages, providers.Message{Role: memory.RoleSystem, Content: formatted})
	}
	messages = append(messages, providers.Message{Role: memory.RoleUser, Content: current})
	return messages
}

// SwitchAgent performs a manual persona switch. Manual mode bypasses the
// delegation gate entirely and takes effect immediately.
func (e *Engine) SwitchAgent(name string) {
	previous := e.tracker.CurrentAgent()
	e.tracker.SetCurrentAgent(name)
	logger.InfoCF("session", "Agent switched",
		map[string]interface{}{"from": previous, "to": name, "mode": "manual"})
}

// TryAutoSwitch polls the advisor and applies the auto-delegation gate.
// On rejection the failing values are logged for diagnosis and no switch
// happens. Returns the gate decision and the agent switched to, if any.
func (e *Engine) TryAutoSwitch() (delegation.GateDecision, string) {
	suggestion := e.advisor.Suggestions()
	decision := delegation.EvaluateGate(e.opts.Gate, suggestion)

	if !decision.Allowed || len(suggestion.SuggestedAgents) == 0 {
		e.tracker.LogSystem(analytics.DelegationRejected{
			Confidence:     suggestion.Confidence,
			ReasoningCount: len(suggestion.Reasoning),
			ContextMatch:   suggestion.ContextMatch,
			Failures:       decision.Failures,
		})
		logger.InfoCF("session", "Auto-delegation rejected",
			map[string]interface{}{
				"confidence":      suggestion.Confidence,
				"reasoning_count": len(suggestion.Reasoning),
				"failures":        decision.Failures,
			})
		return decision, ""
	}

	target := suggestion.SuggestedAgents[0]
	if target != e.tracker.CurrentAgent() {
		e.tracker.SetCurrentAgent(target)
		logger.InfoCF("session", "Agent switched",
			map[string]interface{}{"to": target, "mode": "auto", "confidence": suggestion.Confidence})
	}
	e.tracker.LogOutcome(analytics.DelegationAccepted{AgentName: target, Confidence: suggestion.Confidence})
	return decision, target
}

// FlushSummary forces a summarization pass over the current window.
func (e *Engine) FlushSummary(ctx context.Context) error {
	return e.chain.Summarize(ctx)
}

// LastSummarizedAt reports when the memory window was last compressed.
func (e *Engine) LastSummarizedAt() time.Time {
	return e.chain.LastSummarizedAt()
}

// Insights exposes the session analytics snapshot.
func (e *Engine) Insights() analytics.Insights {
	return e.tracker.Insights()
}

// Transcript exposes the UI-facing message store.
func (e *Engine) Transcript() *transcript.Store {
	return e.transcript
}

// SessionID is the tracker's session tag.
func (e *Engine) SessionID() string {
	return e.tracker.SessionID()
}

// Disconnect discards all conversation state. A reconnect starts from a
// fresh engine with a new session id.
func (e *Engine) Disconnect() {
	e.chain.Clear()
	e.transcript.Clear()
	logger.InfoCF("session", "Session torn down",
		map[string]interface{}{"session_id": e.tracker.SessionID()})
}
