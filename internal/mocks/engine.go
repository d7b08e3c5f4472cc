// Package mocks provides test doubles for the adns service's collaborators.
package mocks

import (
	"strconv"
	"sync"

	"github.com/lc/adns/internal/answer"
	"github.com/lc/adns/internal/registry"
	"github.com/lc/adns/internal/service"
)

var _ service.Engine = (*Engine)(nil)

// Submission records one async query accepted by the fake engine.
type Submission struct {
	Handle   registry.Handle
	Question answer.Question
	Done     func(raw *answer.Raw, err error)
}

// Engine is a scriptable resolver engine. It records every submission and
// lets the test deliver completions on demand, so lifecycle ordering can
// be exercised deterministically.
type Engine struct {
	mu sync.Mutex

	// SubmitErr, when set, makes SubmitAsync reject immediately.
	SubmitErr error
	// SyncRaw and SyncErr script the result of SubmitSync.
	SyncRaw *answer.Raw
	SyncErr error

	seq      int
	pending  map[registry.Handle]Submission
	canceled []registry.Handle
	closed   bool
}

// NewEngine returns an empty fake engine.
func NewEngine() *Engine {
	return &Engine{pending: make(map[registry.Handle]Submission)}
}

// SubmitAsync accepts the query and parks it until Complete is called.
func (e *Engine) SubmitAsync(q answer.Question, done func(raw *answer.Raw, err error)) (registry.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.SubmitErr != nil {
		return "", e.SubmitErr
	}

	e.seq++
	h := registry.Handle("mock-" + strconv.Itoa(e.seq))
	e.pending[h] = Submission{Handle: h, Question: q, Done: done}
	return h, nil
}

// SubmitSync returns the scripted sync result.
func (e *Engine) SubmitSync(answer.Question) (*answer.Raw, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.SyncRaw, e.SyncErr
}

// Cancel records the cancellation and forgets the submission.
func (e *Engine) Cancel(h registry.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.canceled = append(e.canceled, h)
	delete(e.pending, h)
	return nil
}

// Close marks the engine closed and drops all parked submissions.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.pending = make(map[registry.Handle]Submission)
	return nil
}

// Complete fires the parked completion for h. It reports false when h is
// unknown, e.g. already canceled.
func (e *Engine) Complete(h registry.Handle, raw *answer.Raw, err error) bool {
	e.mu.Lock()
	sub, ok := e.pending[h]
	delete(e.pending, h)
	e.mu.Unlock()

	if !ok {
		return false
	}
	sub.Done(raw, err)
	return true
}

// Submissions returns every parked submission, including its completion
// callback, so tests can fire completions that race other operations.
func (e *Engine) Submissions() []Submission {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := make([]Submission, 0, len(e.pending))
	for _, sub := range e.pending {
		subs = append(subs, sub)
	}
	return subs
}

// PendingHandles returns the handles of all parked submissions.
func (e *Engine) PendingHandles() []registry.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()

	hs := make([]registry.Handle, 0, len(e.pending))
	for h := range e.pending {
		hs = append(hs, h)
	}
	return hs
}

// CanceledHandles returns every handle passed to Cancel, in order.
func (e *Engine) CanceledHandles() []registry.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]registry.Handle(nil), e.canceled...)
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
