// Package testutil provides shared helpers for package tests: a scriptable
// completion client and workflow builders.
package testutil

import (
	"context"
	"sync"

	"github.com/vk/loomgrid/internal/completion"
)

// StubClient is a completion.Client that records every request and answers
// from a fixed response, a per-call script, or a fixed error. Safe for
// concurrent use so pooled-executor tests can share one instance.
type StubClient struct {
	mu sync.Mutex

	// Response is returned for every call when Script is nil.
	Response string
	// Err, when set, fails every call.
	Err error
	// Script, when set, decides the response per call.
	Script func(req completion.Request) (string, error)

	calls []completion.Request
}

// Complete implements completion.Client.
func (s *StubClient) Complete(ctx context.Context, req completion.Request) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	script := s.Script
	resp, err := s.Response, s.Err
	s.mu.Unlock()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if script != nil {
		return script(req)
	}
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Calls returns a copy of every request seen so far.
func (s *StubClient) Calls() []completion.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]completion.Request, len(s.calls))
	copy(out, s.calls)
	return out
}
