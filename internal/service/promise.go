package service

import (
	"context"

	"github.com/lc/adns/internal/answer"
	"github.com/lc/adns/internal/registry"
)

type outcome struct {
	n   *answer.Normalized
	err error
}

// Promise is a single-resolution future over one asynchronous query, for
// callers that prefer awaiting to callbacks. Exactly one terminal outcome
// is ever delivered; once resolved, Await keeps returning the same result.
//
// A Promise is not safe for concurrent use by multiple goroutines.
type Promise struct {
	handle registry.Handle
	ch     chan outcome

	resolved bool
	res      outcome
}

// SubmitPromise issues an asynchronous query and wraps its completion in a
// Promise. Submission failures are returned immediately, with no Promise.
func (s *Service) SubmitPromise(name, qtype, qclass string) (*Promise, error) {
	p := &Promise{ch: make(chan outcome, 1)}

	h, err := s.Submit(func(n *answer.Normalized, err error) {
		p.ch <- outcome{n: n, err: err}
	}, name, qtype, qclass)
	if err != nil {
		return nil, err
	}

	p.handle = h
	return p, nil
}

// Handle returns the underlying query handle, usable with Service.Cancel.
func (p *Promise) Handle() registry.Handle { return p.handle }

// Await blocks until the query resolves, or until ctx is done. A context
// error does not consume the outcome; a later Await can still observe it.
func (p *Promise) Await(ctx context.Context) (*answer.Normalized, error) {
	if p.resolved {
		return p.res.n, p.res.err
	}

	select {
	case o := <-p.ch:
		p.res = o
		p.resolved = true
		return o.n, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
