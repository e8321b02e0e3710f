package agent

import (
	"context"
	"sync"

	"hypertrader/pkg/errors"
)

// ErrConversationClosed is returned for sends after Close
var ErrConversationClosed = errors.New("conversation is closed")

// Conversation reuses one Session across user turns until it is closed.
// Each Send is a full request with its own step limit and failure budget.
type Conversation struct {
	agent *Agent
	base  Request

	mu      sync.Mutex
	session *Session
}

// NewConversation starts an interactive session. base carries the symbol, explicit
// execution parameters and dry-run flag applied to every turn.
func (a *Agent) NewConversation(base Request) *Conversation {
	return &Conversation{
		agent:   a,
		base:    base,
		session: NewSession(a.cfg.AccountID),
	}
}

// Send runs one user turn. Turns are serialized.
func (c *Conversation) Send(ctx context.Context, text string) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Outcome{Status: StatusFailed, Answer: ErrConversationClosed.Error(), Error: ErrConversationClosed.Error()}
	}

	req := c.base
	req.Prompt = text
	return c.agent.run(ctx, c.session, req)
}

// Session exposes the conversation transcript, or nil once closed
func (c *Conversation) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Close discards the session
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = nil
}
