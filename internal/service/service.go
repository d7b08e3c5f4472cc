// Package service is the asynchronous query front-end. It multiplexes many
// concurrent, cancellable resolutions onto a single resolver context,
// tracks each outstanding query in a pending registry, normalizes raw
// answers for delivery, and owns the purge protocol that tears the context
// down and rebuilds it from the latest configuration snapshot.
//
// Exactly one resolver context generation is live at a time, and this
// package is its only mutator: Purge replaces the generation, Submit and
// Lookup always resolve against the current one. Every query submitted
// successfully receives exactly one terminal event - an answer, an error,
// or a cancellation - with the registry entry removed before the caller's
// callback runs.
package service

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"
	"go.uber.org/multierr"

	"github.com/lc/adns/internal/answer"
	"github.com/lc/adns/internal/config"
	"github.com/lc/adns/internal/log"
	"github.com/lc/adns/internal/registry"
)

var (
	// ErrCanceled is delivered to a caller whose query was canceled or purged.
	ErrCanceled = errors.New("canceled")
	// ErrUnknownType is returned when a record type token is not recognized.
	ErrUnknownType = errors.New("unknown record type")
	// ErrUnknownClass is returned when a record class token is not recognized.
	ErrUnknownClass = errors.New("unknown record class")
)

// Engine is the underlying resolver capability the service drives.
// Implementations must not invoke the done callback synchronously from
// within SubmitAsync; the completion must arrive after SubmitAsync returns.
type Engine interface {
	// SubmitAsync accepts a query and returns its handle immediately.
	// Exactly one completion is delivered to done.
	SubmitAsync(q answer.Question, done func(raw *answer.Raw, err error)) (registry.Handle, error)
	// SubmitSync resolves a query, blocking until an answer or error.
	SubmitSync(q answer.Question) (*answer.Raw, error)
	// Cancel abandons an in-flight query; unknown handles are a no-op.
	Cancel(h registry.Handle) error
	// Close abandons all in-flight queries and releases the engine.
	Close() error
}

// Factory constructs a new Engine from a resolver configuration snapshot.
// Purge uses it to rebuild the resolver context.
type Factory func(cfg config.ResolverConfig) (Engine, error)

// generation is one lifetime of the resolver context. Handles issued under
// one generation are permanently invalid after it is replaced.
type generation struct {
	id     string
	engine Engine
}

// Service multiplexes queries onto the current resolver context generation.
type Service struct {
	provider config.Provider
	factory  Factory

	mu  sync.Mutex // serializes generation swap and registration ordering
	cfg *config.Config
	gen *generation
	reg *registry.Registry
}

// New loads the configuration through provider, constructs the initial
// resolver context via factory, and returns a ready Service.
func New(provider config.Provider, factory Factory) (*Service, error) {
	cfg, err := provider.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	eng, err := factory(cfg.Resolver)
	if err != nil {
		return nil, fmt.Errorf("constructing resolver context: %w", err)
	}

	gen := &generation{id: uuid.NewString(), engine: eng}
	log.Info("service: resolver context ready", "generation", gen.id)

	return &Service{
		provider: provider,
		factory:  factory,
		cfg:      cfg,
		gen:      gen,
		reg:      registry.New(),
	}, nil
}

// Submit issues an asynchronous query. Empty qtype and qclass default to
// "A" and "IN"; tokens are case-insensitive. The callback receives exactly
// one terminal event unless submission itself fails, in which case the
// error is returned here and no callback is ever invoked.
//
// The handle is registered before Submit returns, so a Cancel for it can
// never race ahead of registration.
func (s *Service) Submit(cb registry.Callback, name, qtype, qclass string) (registry.Handle, error) {
	q, err := resolveTokens(name, qtype, qclass)
	if err != nil {
		log.Warn("service: rejecting query", "name", name, "err", err)
		return "", err
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var h registry.Handle
	done := func(raw *answer.Raw, err error) {
		// Taking the lock orders this completion after the registration
		// below, even if the engine races ahead.
		s.mu.Lock()
		handle := h
		s.mu.Unlock()
		s.complete(handle, q, start, raw, err)
	}

	handle, err := s.gen.engine.SubmitAsync(q, done)
	if err != nil {
		log.Warn("service: submission failed",
			"name", q.Name, "type", dns.Type(q.Type).String(), "err", err)
		return "", err
	}

	h = handle
	s.reg.Add(h, cb)
	return h, nil
}

// Lookup issues a blocking query against the current resolver context and
// normalizes the result. There is no cancellable handle for a synchronous
// call, so the registry is not involved.
func (s *Service) Lookup(name, qtype, qclass string) (*answer.Normalized, error) {
	q, err := resolveTokens(name, qtype, qclass)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	eng := s.gen.engine
	s.mu.Unlock()

	raw, err := eng.SubmitSync(q)
	if err != nil {
		return nil, err
	}
	return answer.Normalize(raw), nil
}

// Cancel cancels one outstanding query. It is idempotent and always
// reports true: if the handle is still pending its caller is notified once
// with ErrCanceled; either way the engine's cancel is attempted
// best-effort, where an already-completed handle is a harmless no-op.
func (s *Service) Cancel(h registry.Handle) bool {
	s.mu.Lock()
	eng := s.gen.engine
	s.mu.Unlock()

	if cb, ok := s.reg.Remove(h); ok {
		s.invoke(cb, nil, ErrCanceled)
	}
	_ = eng.Cancel(h)
	return true
}

// Purge cancels every pending query, notifying each caller exactly once
// with ErrCanceled, then replaces the resolver context with a fresh one
// built from the latest configuration snapshot. All notifications are
// delivered before Purge returns, and any query submitted by a notified
// callback lands on the new generation. Teardown errors are absorbed and
// logged; callers only ever see true.
func (s *Service) Purge() bool {
	s.mu.Lock()
	drained := s.reg.Drain()
	old := s.gen

	next, err := s.factory(s.cfg.Resolver)
	if err != nil {
		// Keep serving on the old context rather than going dark.
		s.mu.Unlock()
		log.Error("service: purge could not construct resolver context", "err", err)
		s.cancelDrained(old.engine, drained)
		return true
	}
	s.gen = &generation{id: uuid.NewString(), engine: next}
	genID := s.gen.id
	s.mu.Unlock()

	errs := s.cancelDrained(old.engine, drained)
	errs = multierr.Append(errs, old.engine.Close())
	if errs != nil {
		log.Warn("service: purge teardown", "err", errs)
	}

	log.Info("service: resolver context replaced",
		"generation", genID, "canceled", len(drained))
	return true
}

// Reconfigure re-reads the configuration. The refreshed snapshot is only
// consulted when the next purge constructs a new resolver context; it does
// not itself force a purge.
func (s *Service) Reconfigure() {
	cfg, err := s.provider.Load()
	if err != nil {
		log.Warn("service: reconfigure failed, keeping previous configuration", "err", err)
		return
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	log.Info("service: configuration reloaded, applies on next purge")
}

// Pending returns the number of outstanding asynchronous queries.
func (s *Service) Pending() int { return s.reg.Len() }

// Generation returns the identifier of the live resolver context.
func (s *Service) Generation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen.id
}

// Close notifies every pending caller with ErrCanceled and shuts down the
// current resolver context. The service must not be used afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	drained := s.reg.Drain()
	gen := s.gen
	s.mu.Unlock()

	for _, p := range drained {
		s.invoke(p.Callback, nil, ErrCanceled)
	}
	return gen.engine.Close()
}

// complete is the completion wrapper invoked once per handle from the
// engine's delivery goroutine. The registry entry is removed before the
// caller's callback runs, so a callback that re-issues a query never
// observes its own stale entry.
func (s *Service) complete(h registry.Handle, q answer.Question, start time.Time, raw *answer.Raw, err error) {
	cb, ok := s.reg.Remove(h)
	if !ok {
		// Canceled or purged; the caller was already notified.
		log.Debug("service: completion for retired handle", "handle", h)
		return
	}

	elapsed := time.Since(start)
	if raw == nil {
		log.Error("service: query failed",
			"name", q.Name,
			"class", dns.Class(q.Class).String(),
			"type", dns.Type(q.Type).String(),
			"elapsed", elapsed,
			"err", err)
		s.invoke(cb, nil, err)
		return
	}

	n := answer.Normalize(raw)
	log.Info("service: query complete",
		"name", q.Name,
		"class", n.Class,
		"type", n.Type,
		"status", n.Status,
		"records", len(n.Records),
		"secure", n.Secure,
		"bogus", n.Bogus(),
		"elapsed", elapsed)
	s.invoke(cb, n, nil)
}

// invoke runs a caller-supplied callback, containing any panic so it can
// never corrupt the registry or abort completion processing.
func (s *Service) invoke(cb registry.Callback, n *answer.Normalized, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("service: callback panicked", "panic", r)
		}
	}()
	cb(n, err)
}

func (s *Service) cancelDrained(eng Engine, drained []registry.Pending) error {
	var errs error
	for _, p := range drained {
		s.invoke(p.Callback, nil, ErrCanceled)
		errs = multierr.Append(errs, eng.Cancel(p.Handle))
	}
	return errs
}

// resolveTokens normalizes type/class tokens and resolves them against the
// symbolic tables. Unknown tokens fail here, before the resolver is ever
// consulted.
func resolveTokens(name, qtype, qclass string) (answer.Question, error) {
	if qtype == "" {
		qtype = "A"
	}
	if qclass == "" {
		qclass = "IN"
	}

	t, ok := dns.StringToType[strings.ToUpper(qtype)]
	if !ok {
		return answer.Question{}, fmt.Errorf("%w: %q", ErrUnknownType, qtype)
	}
	c, ok := dns.StringToClass[strings.ToUpper(qclass)]
	if !ok {
		return answer.Question{}, fmt.Errorf("%w: %q", ErrUnknownClass, qclass)
	}

	return answer.Question{Name: name, Type: t, Class: c}, nil
}
