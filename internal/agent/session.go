package agent

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"hypertrader/internal/adapters/ai"
	"hypertrader/internal/tools"
	"hypertrader/internal/tools/shared"
	"hypertrader/pkg/errors"
)

// TurnKind identifies the entries of a session transcript
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnModel      TurnKind = "model"
	TurnToolCall   TurnKind = "tool_call"
	TurnToolResult TurnKind = "tool_result"
)

// Turn is one append-only entry of the transcript
type Turn struct {
	Kind    TurnKind
	Content string
	Call    *ai.ToolCall
	Result  *tools.Result
	At      time.Time
}

// Session is the conversation state of one request or one interactive conversation.
// It is owned by a single loop; the mutex only guards reads from tools running
// under that loop.
type Session struct {
	ID        string
	AccountID string
	StartedAt time.Time

	mu      sync.RWMutex
	turns   []Turn
	pending map[string]string // call id -> tool name, awaiting a result
	latest  map[string]map[string]interface{}
	ledger  map[string]struct{}
}

var _ shared.SessionView = (*Session)(nil)

// NewSession creates an empty session for the account
func NewSession(accountID string) *Session {
	return &Session{
		ID:        uuid.New().String(),
		AccountID: accountID,
		StartedAt: time.Now(),
		pending:   make(map[string]string),
		latest:    make(map[string]map[string]interface{}),
		ledger:    make(map[string]struct{}),
	}
}

// AddUserMessage appends the user's text
func (s *Session) AddUserMessage(text string) {
	s.append(Turn{Kind: TurnUser, Content: text})
}

// AddModelMessage appends the model's reply followed by one tool_call turn per requested call
func (s *Session) AddModelMessage(content string, calls []ai.ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, Turn{Kind: TurnModel, Content: content, At: time.Now()})
	for i := range calls {
		call := calls[i]
		s.turns = append(s.turns, Turn{Kind: TurnToolCall, Call: &call, At: time.Now()})
		s.pending[call.ID] = call.Name
	}
}

// AddToolResult appends the result of a pending call. Successful payloads become
// visible to later tools through LatestPayload.
func (s *Session) AddToolResult(call ai.ToolCall, result tools.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pending[call.ID]; !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "no pending tool call %q", call.ID)
	}
	delete(s.pending, call.ID)

	result = result.WithCallID(call.ID)
	s.turns = append(s.turns, Turn{Kind: TurnToolResult, Result: &result, At: time.Now()})
	if result.OK() && result.Payload != nil {
		s.latest[result.Tool] = result.Payload
	}
	return nil
}

// Pending returns the number of tool calls still waiting for a result
func (s *Session) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// Turns returns a copy of the transcript
func (s *Session) Turns() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Turn(nil), s.turns...)
}

// Messages renders the transcript for the model backend. It fails while any tool
// call is still missing its result.
func (s *Session) Messages() ([]ai.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.pending) > 0 {
		return nil, errors.Newf("%d tool calls have no result yet", len(s.pending))
	}

	msgs := make([]ai.Message, 0, len(s.turns))
	for _, t := range s.turns {
		switch t.Kind {
		case TurnUser:
			msgs = append(msgs, ai.Message{Role: ai.RoleUser, Content: t.Content})
		case TurnModel:
			msgs = append(msgs, ai.Message{Role: ai.RoleAssistant, Content: t.Content})
		case TurnToolCall:
			last := &msgs[len(msgs)-1]
			last.ToolCalls = append(last.ToolCalls, *t.Call)
		case TurnToolResult:
			msgs = append(msgs, ai.Message{
				Role:       ai.RoleTool,
				Content:    t.Result.Content(),
				ToolCallID: t.Result.CallID,
				Name:       t.Result.Tool,
			})
		}
	}
	return msgs, nil
}

// LatestPayload returns the payload of the most recent successful result of a tool
func (s *Session) LatestPayload(tool string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.latest[tool]
	return p, ok
}

// HasTrade reports whether the fingerprint is in the trade ledger
func (s *Session) HasTrade(fingerprint string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ledger[fingerprint]
	return ok
}

// RecordTrade adds a fingerprint to the trade ledger
func (s *Session) RecordTrade(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger[fingerprint] = struct{}{}
}

func (s *Session) append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.At = time.Now()
	s.turns = append(s.turns, t)
}
