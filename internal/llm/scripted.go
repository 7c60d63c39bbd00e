package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrScriptExhausted is returned when a ScriptedCompleter has no reply left and no fallback.
var ErrScriptExhausted = errors.New("scripted completer has no replies left")

// Call records one request made to a ScriptedCompleter.
type Call struct {
	Messages []Message
	Params   Params
}

type scripted struct {
	reply string
	err   error
}

// ScriptedCompleter replays queued replies in order. It is safe for concurrent use.
type ScriptedCompleter struct {
	mu       sync.Mutex
	queue    []scripted
	fallback *string
	calls    []Call
}

// NewScriptedCompleter returns a completer that answers with replies in order.
func NewScriptedCompleter(replies ...string) *ScriptedCompleter {
	s := &ScriptedCompleter{}
	for _, r := range replies {
		s.queue = append(s.queue, scripted{reply: r})
	}
	return s
}

// WithFallback sets the reply used once the queue is empty.
func (s *ScriptedCompleter) WithFallback(reply string) *ScriptedCompleter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &reply
	return s
}

// Push queues another reply.
func (s *ScriptedCompleter) Push(reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scripted{reply: reply})
}

// PushError queues a failing call.
func (s *ScriptedCompleter) PushError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scripted{err: err})
}

// Calls returns a copy of the recorded calls.
func (s *ScriptedCompleter) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Complete records the call and returns the next scripted reply.
func (s *ScriptedCompleter) Complete(ctx context.Context, messages []Message, params Params) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Messages: append([]Message(nil), messages...), Params: params})
	if len(s.queue) == 0 {
		if s.fallback != nil {
			return *s.fallback, nil
		}
		return "", ErrScriptExhausted
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	return next.reply, next.err
}

var _ Completer = (*ScriptedCompleter)(nil)
