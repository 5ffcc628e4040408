package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/parley/pkg/analytics"
	"github.com/dotsetgreg/parley/pkg/delegation"
	"github.com/dotsetgreg/parley/pkg/memory"
	"github.com/dotsetgreg/parley/pkg/providers"
)

type stubCompleter struct {
	reply    string
	err      error
	block    chan struct{}
	captured [][]providers.Message
}

func (s *stubCompleter) Complete(ctx context.Context, messages []providers.Message, _ providers.Options) (providers.Message, error) {
	s.captured = append(s.captured, messages)
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return providers.Message{}, ctx.Err()
		}
	}
	if s.err != nil {
		return providers.Message{}, s.err
	}
	return providers.Message{Role: memory.RoleAssistant, Content: s.reply}, nil
}

func newTestEngine(completer providers.Completer) (*Engine, *analytics.Tracker, *memory.Chain) {
	chain := memory.NewChain(memory.Config{MaxMessages: 20, SummarizeThreshold: 50}, nil)
	tracker := analytics.NewTracker()
	advisor := delegation.NewAdvisor(tracker, []delegation.AgentProfile{
		{Name: "generalist", Domains: []string{"general"}, Capabilities: []string{"general_assistance"}},
	})
	engine := NewEngine(Options{SystemPrompt: "You are a test assistant."}, chain, tracker, advisor, completer)
	return engine, tracker, chain
}

func TestEngine_SendRecordsBothSidesOfTurn(t *testing.T) {
	stub := &stubCompleter{reply: "hi there"}
	engine, _, chain := newTestEngine(stub)

	reply, err := engine.Send(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply.Content)

	msgs := chain.Context().Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, memory.RoleUser, msgs[0].Role)
	assert.Equal(t, memory.RoleAssistant, msgs[1].Role)

	items := engine.Transcript().Items()
	require.Len(t, items, 2)
	assert.Equal(t, "hello", items[0].Content)
	assert.Equal(t, "hi there", items[1].Content)
}

func TestEngine_SendAssemblesMessagesInOrder(t *testing.T) {
	stub := &stubCompleter{reply: "ok"}
	engine, _, chain := newTestEngine(stub)

	_, err := engine.Send(context.Background(), "first question")
	require.NoError(t, err)
	_, err = engine.Send(context.Background(), "second question")
	require.NoError(t, err)

	require.Len(t, stub.captured, 2)
	second := stub.captured[1]
	require.Len(t, second, 4)
	assert.Equal(t, memory.RoleSystem, second[0].Role)
	assert.Equal(t, "You are a test assistant.", second[0].Content)
	assert.Equal(t, "first question", second[1].Content)
	assert.Equal(t, "ok", second[2].Content)
	assert.Equal(t, memory.RoleUser, second[3].Role)
	assert.Equal(t, "second question", second[3].Content)

	// No summary exists yet so no synthetic context message is injected.
	assert.Empty(t, chain.FormattedContext())
}

func TestEngine_SendInjectsFormattedContextAfterSummary(t *testing.T) {
	summaryFn := func(ctx context.Context, prompt, transcript string) (string, error) {
		return "They talked about gardens.", nil
	}
	chain := memory.NewChain(memory.Config{MaxMessages: 20, SummarizeThreshold: 2}, summaryFn)
	tracker := analytics.NewTracker()
	advisor := delegation.NewAdvisor(tracker, nil)
	stub := &stubCompleter{reply: "noted"}
	engine := NewEngine(Options{}, chain, tracker, advisor, stub)

	_, err := engine.Send(context.Background(), "tell me about gardens")
	require.NoError(t, err)
	_, err = engine.Send(context.Background(), "which flowers grow in shade")
	require.NoError(t, err)

	last := stub.captured[len(stub.captured)-1]
	var contextMsg string
	for _, m := range last[:len(last)-1] {
		if m.Role == memory.RoleSystem && m.Content != DefaultSystemPrompt {
			contextMsg = m.Content
		}
	}
	require.NotEmpty(t, contextMsg)
	assert.Contains(t, contextMsg, "They talked about gardens.")
	// The live user turn stays last even with the context block present.
	assert.Equal(t, memory.RoleUser, last[len(last)-1].Role)
}

func TestEngine_SendRejectsConcurrentSend(t *testing.T) {
	block := make(chan struct{})
	stub := &stubCompleter{reply: "slow", block: block}
	engine, _, _ := newTestEngine(stub)

	firstDone := make(chan error, 1)
	go func() {
		_, err := engine.Send(context.Background(), "long running")
		firstDone <- err
	}()

	require.Eventually(t, func() bool {
		return engine.sending.Load()
	}, time.Second, time.Millisecond)

	_, err := engine.Send(context.Background(), "impatient")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(block)
	require.NoError(t, <-firstDone)

	// The slot frees after the turn resolves.
	_, err = engine.Send(context.Background(), "retry")
	assert.NoError(t, err)
}

func TestEngine_FailedCompletionKeepsUserMessageOnly(t *testing.T) {
	stub := &stubCompleter{err: errors.New("upstream unavailable")}
	engine, tracker, chain := newTestEngine(stub)

	_, err := engine.Send(context.Background(), "hello?")
	require.Error(t, err)

	msgs := chain.Context().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, memory.RoleUser, msgs[0].Role)

	var failed *analytics.TurnFailed
	for _, ev := range tracker.Insights().RecentEvents {
		if p, ok := ev.Payload.(analytics.TurnFailed); ok {
			failed = &p
		}
	}
	require.NotNil(t, failed)
	assert.Contains(t, failed.Error, "upstream unavailable")
}

func TestEngine_TryAutoSwitchFailsClosedWithoutContext(t *testing.T) {
	engine, tracker, _ := newTestEngine(&stubCompleter{reply: "x"})

	decision, agent := engine.TryAutoSwitch()
	assert.False(t, decision.Allowed)
	assert.Empty(t, agent)

	var rejected bool
	for _, ev := range tracker.Insights().RecentEvents {
		if _, ok := ev.Payload.(analytics.DelegationRejected); ok {
			rejected = true
		}
	}
	assert.True(t, rejected)
}

func TestEngine_SendFeedsInteractionPattern(t *testing.T) {
	stub := &stubCompleter{reply: "sure"}
	engine, tracker, _ := newTestEngine(stub)

	_, err := engine.Send(context.Background(), "Can you fix the server code bug?")
	require.NoError(t, err)

	pattern := tracker.Pattern()
	require.NotNil(t, pattern)
	assert.NotEmpty(t, pattern.PrimaryIntent)
	assert.NotEmpty(t, pattern.GoalClarity)

	// Both advisor inputs exist now, so the gate evaluates real scores
	// instead of failing closed; the lone generalist still falls short of
	// the auto-switch thresholds.
	decision, _ := engine.TryAutoSwitch()
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.Confidence, 0.0)
}

func TestEngine_ManualSwitchBypassesGate(t *testing.T) {
	engine, tracker, _ := newTestEngine(&stubCompleter{reply: "x"})

	engine.SwitchAgent("concierge")
	assert.Equal(t, "concierge", tracker.CurrentAgent())
}

func TestEngine_AutoSwitchLogsAcceptedOutcome(t *testing.T) {
	chain := memory.NewChain(memory.Config{MaxMessages: 20, SummarizeThreshold: 50}, nil)
	tracker := analytics.NewTracker()
	advisor := delegation.NewAdvisor(tracker, []delegation.AgentProfile{{
		Name:         "engineer",
		Domains:      []string{"technology"},
		Capabilities: []string{"technical_knowledge", "code_understanding"},
		Intents:      []string{"information_seeking", "action_request"},
	}})
	engine := NewEngine(Options{
		Gate: delegation.GateConfig{MinConfidence: 0.5, MinReasoning: 1, MinFactorScore: 0.05},
	}, chain, tracker, advisor, &stubCompleter{reply: "on it"})

	_, err := engine.Send(context.Background(), "Can you fix the server code bug?")
	require.NoError(t, err)

	decision, agent := engine.TryAutoSwitch()
	require.True(t, decision.Allowed, "failures: %v", decision.Failures)
	assert.Equal(t, "engineer", agent)
	assert.Equal(t, "engineer", tracker.CurrentAgent())

	var accepted *analytics.DelegationAccepted
	for _, ev := range tracker.Insights().RecentEvents {
		if p, ok := ev.Payload.(analytics.DelegationAccepted); ok {
			accepted = &p
			assert.Equal(t, analytics.CategoryOutcome, ev.Category)
		}
	}
	require.NotNil(t, accepted)
	assert.Equal(t, "engineer", accepted.AgentName)
	assert.Greater(t, accepted.Confidence, 0.5)
}

func TestEngine_FlushSummaryAdvancesLastSummarizedAt(t *testing.T) {
	engine, _, _ := newTestEngine(&stubCompleter{reply: "noted"})
	before := engine.LastSummarizedAt()

	_, err := engine.Send(context.Background(), "keep this in mind")
	require.NoError(t, err)
	require.NoError(t, engine.FlushSummary(context.Background()))

	assert.True(t, engine.LastSummarizedAt().After(before))
}

func TestEngine_DisconnectClearsState(t *testing.T) {
	stub := &stubCompleter{reply: "hi"}
	engine, _, chain := newTestEngine(stub)

	_, err := engine.Send(context.Background(), "hello")
	require.NoError(t, err)

	engine.Disconnect()
	assert.Empty(t, chain.Context().Messages)
	assert.Empty(t, engine.Transcript().Items())
}
