package providers

import (
	"context"
	"errors"
)

// Message is the provider-agnostic prompt message representation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes one completion call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completer sends an assembled message list to a completion backend and
// returns the assistant reply.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (Message, error)
}

// ErrMalformedResponse marks a completion response missing
// choices[0].message. The turn fails without an assistant message.
var ErrMalformedResponse = errors.New("malformed completion response: missing choices[0].message")
