// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"sync"

	"homewise/internal/common/llm"
)

// Stub records every request and answers from Fn, Err or Text, in that order.
type Stub struct {
	Text string
	Err  error
	Fn   func(req llm.Request) (*llm.Response, error)

	mu    sync.Mutex
	calls []llm.Request
}

// NewStub answers every request with text.
func NewStub(text string) *Stub {
	return &Stub{Text: text}
}

// NewFailingStub fails every request with err.
func NewFailingStub(err error) *Stub {
	return &Stub{Err: err}
}

// NewFuncStub answers with fn.
func NewFuncStub(fn func(req llm.Request) (*llm.Response, error)) *Stub {
	return &Stub{Fn: fn}
}

func (s *Stub) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()

	if s.Fn != nil {
		return s.Fn(req)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return &llm.Response{Text: s.Text}, nil
}

// Calls returns how many times Generate ran.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastRequest returns the most recent request, or a zero Request.
func (s *Stub) LastRequest() llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		return llm.Request{}
	}
	return s.calls[len(s.calls)-1]
}
