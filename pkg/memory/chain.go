// Package memory owns the bounded conversation history for one session:
// it retains recent messages, compresses older ones into a rolling summary
// with key points, and renders the compressed context for prompt assembly.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/parley/pkg/logger"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversation entry.
type Message struct {
	Role    string
	Content string
}

// Context is a read-only snapshot of the chain state. The returned
// containers are copies; mutating them does not affect the chain.
type Context struct {
	Messages  []Message
	Summary   string
	KeyPoints []string
}

// SummaryFunc generates a summary for the given instruction prompt and
// flattened transcript. Implementations are expected to call an LLM; the
// chain falls back to a placeholder when none is configured or the call
// fails.
type SummaryFunc func(ctx context.Context, prompt, transcript string) (string, error)

// DefaultSummaryPrompt is the instruction prepended to the transcript
// when no custom prompt is configured.
const DefaultSummaryPrompt = "Summarize the conversation so far, keeping decisions, open questions and user preferences:"

const keyPointMaxChars = 100

// Config bounds the chain.
type Config struct {
	MaxMessages        int
	SummarizeThreshold int
	SummaryPrompt      string
}

func (c Config) withDefaults() Config {
	if c.MaxMessages <= 0 {
		c.MaxMessages = 10
	}
	if c.SummarizeThreshold <= 0 {
		c.SummarizeThreshold = 5
	}
	if strings.TrimSpace(c.SummaryPrompt) == "" {
		c.SummaryPrompt = DefaultSummaryPrompt
	}
	return c
}

// Chain is the bounded conversational memory for one session. All state
// is in-memory and discarded with the session.
type Chain struct {
	mu        sync.Mutex
	cfg       Config
	summarize SummaryFunc

	messages         []Message
	summary          string
	keyPoints        []string
	lastSummarizedAt time.Time
}

func NewChain(cfg Config, summarize SummaryFunc) *Chain {
	return &Chain{
		cfg:              cfg.withDefaults(),
		summarize:        summarize,
		lastSummarizedAt: time.Now(),
	}
}

// Add appends a message. When the pre-trim length reaches the summarize
// threshold the chain summarizes first (over the full window), then trims
// down to MaxMessages, dropping the oldest entries. Add never fails on
// normal text input; a failing summarizer degrades to the placeholder
// summary.
func (c *Chain) Add(ctx context.Context, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = append(c.messages, msg)
	if len(c.messages) >= c.cfg.SummarizeThreshold {
		if err := c.summarizeLocked(ctx); err != nil {
			logger.WarnCF("memory", "Summarizer failed, placeholder summary recorded",
				map[string]interface{}{"error": err.Error()})
		}
	}
	if len(c.messages) > c.cfg.MaxMessages {
		trimmed := c.messages[len(c.messages)-c.cfg.MaxMessages:]
		c.messages = append([]Message(nil), trimmed...)
	}
}

// Summarize forces a summarization pass over the current window. Returns
// the summarizer error, if any; the chain always records at least the
// placeholder summary and derived key points.
func (c *Chain) Summarize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summarizeLocked(ctx)
}

// summarizeLocked compresses the window starting at the first non-system
// message. An empty window is a no-op.
func (c *Chain) summarizeLocked(ctx context.Context) error {
	window := c.summaryWindowLocked()
	if len(window) == 0 {
		return nil
	}

	transcript := flattenTranscript(window)

	var summarizeErr error
	summary := ""
	if c.summarize != nil {
		summary, summarizeErr = c.summarize(ctx, c.cfg.SummaryPrompt, transcript)
	}
	if strings.TrimSpace(summary) == "" {
		summary = placeholderSummary(c.summary, window)
	}

	c.summary = strings.TrimSpace(summary)
	c.keyPoints = deriveKeyPoints(window)
	c.lastSummarizedAt = time.Now()
	return summarizeErr
}

func (c *Chain) summaryWindowLocked() []Message {
	for i, msg := range c.messages {
		if msg.Role != RoleSystem {
			return c.messages[i:]
		}
	}
	return nil
}

// Context returns a snapshot of the current chain state.
func (c *Chain) Context() Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Context{
		Messages:  append([]Message(nil), c.messages...),
		Summary:   c.summary,
		KeyPoints: append([]string(nil), c.keyPoints...),
	}
}

// FormattedContext renders the summary and key points as a single text
// block for injection as a system message. Empty when nothing has been
// summarized yet.
func (c *Chain) FormattedContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	blocks := make([]string, 0, 2)
	if c.summary != "" {
		blocks = append(blocks, "## Summary of Previous Conversation\n\n"+c.summary)
	}
	if len(c.keyPoints) > 0 {
		var b strings.Builder
		b.WriteString("## Key Points\n")
		for _, kp := range c.keyPoints {
			b.WriteString("- ")
			b.WriteString(kp)
			b.WriteString("\n")
		}
		blocks = append(blocks, strings.TrimRight(b.String(), "\n"))
	}
	return strings.Join(blocks, "\n\n")
}

// LastSummarizedAt reports when the summary was last refreshed.
func (c *Chain) LastSummarizedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSummarizedAt
}

// Clear resets the chain to its initial empty state.
func (c *Chain) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
	c.summary = ""
	c.keyPoints = nil
	c.lastSummarizedAt = time.Now()
}

func flattenTranscript(window []Message) string {
	var b strings.Builder
	for _, msg := range window {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		b.WriteString(msg.Role)
		b.WriteString(": ")
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}

func placeholderSummary(existing string, window []Message) string {
	parts := []string{}
	if strings.TrimSpace(existing) != "" {
		parts = append(parts, strings.TrimSpace(existing))
	}
	users, assistants := 0, 0
	for _, msg := range window {
		switch msg.Role {
		case RoleUser:
			users++
		case RoleAssistant:
			assistants++
		}
	}
	parts = append(parts, fmt.Sprintf("Compacted conversation window of %d messages (%d user, %d assistant).",
		len(window), users, assistants))
	return strings.Join(parts, "\n")
}

func deriveKeyPoints(window []Message) []string {
	points := []string{}
	for _, msg := range window {
		if msg.Role != RoleAssistant {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		runes := []rune(content)
		if len(runes) > keyPointMaxChars {
			content = string(runes[:keyPointMaxChars]) + "..."
		}
		points = append(points, content)
	}
	return points
}
