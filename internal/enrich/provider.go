package enrich

import "context"

// Completion is one model reply plus the token usage the service reported
// for it.
type Completion struct {
	Content      string
	InputTokens  int64
	OutputTokens int64
}

// Provider defines the interface for LLM backends. A Provider returns an
// error for any non-success service status; payload problems inside a
// successful reply are the caller's concern.
type Provider interface {
	Complete(ctx context.Context, system, user string) (*Completion, error)
}
