// Package dnsengine is the default resolver engine for the adns service.
// It resolves queries by exchanging DNS messages with configured upstream
// resolvers, requesting DNSSEC validation (DO + AD) and classifying each
// answer as secure, insecure, or bogus from the AD bit and any Extended
// DNS Error the upstream attaches.
package dnsengine

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"
	"go.uber.org/atomic"

	"github.com/lc/adns/internal/answer"
	"github.com/lc/adns/internal/config"
	"github.com/lc/adns/internal/registry"
)

var (
	// ErrEmptyMsg is returned when the DNS response message is empty.
	ErrEmptyMsg = fmt.Errorf("empty message")
	// ErrEmptyName is returned when an empty query name is provided.
	ErrEmptyName = fmt.Errorf("empty query name")
	// ErrClosed is returned when submitting against a closed engine.
	ErrClosed = fmt.Errorf("engine closed")
)

// EDNS advertised UDP payload size, per the DNS flag day 2020 value.
const _udpBufferSize = 1232

// Exchanger defines the interface for DNS message exchange.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, a string) (r *dns.Msg, rtt time.Duration, err error)
}

// Engine exchanges queries with upstream resolvers. Asynchronous
// submissions run in their own goroutine and deliver their completion
// through the callback supplied at submission time; the engine never
// invokes a completion synchronously from SubmitAsync.
type Engine struct {
	Client    Exchanger
	Timeout   time.Duration
	Upstreams []string
	Retries   uint

	mu       sync.Mutex
	closed   bool
	inflight map[registry.Handle]context.CancelFunc
	pending  atomic.Int64 // metrics: in-flight async queries
}

// Opt is a function option for configuring the Engine.
type Opt func(e *Engine)

// WithExchanger returns an option to replace the DNS client used for
// exchanges. Mainly useful in tests.
func WithExchanger(ex Exchanger) Opt {
	return func(e *Engine) {
		e.Client = ex
	}
}

// New creates an Engine from a resolver configuration snapshot.
// The returned Engine is ready to accept queries.
func New(cfg config.ResolverConfig, opts ...Opt) *Engine {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	e := &Engine{
		Client: &dns.Client{
			Timeout: timeout,
		},
		Timeout:   timeout,
		Upstreams: cfg.Upstreams,
		Retries:   cfg.Retries,
		inflight:  make(map[registry.Handle]context.CancelFunc),
	}

	for _, o := range opts {
		o(e)
	}

	return e
}

// SubmitAsync accepts a query and returns a handle for it immediately.
// The done callback receives exactly one completion, from a goroutine
// owned by the engine, after SubmitAsync has returned.
func (e *Engine) SubmitAsync(q answer.Question, done func(raw *answer.Raw, err error)) (registry.Handle, error) {
	if strings.TrimSpace(q.Name) == "" {
		return "", ErrEmptyName
	}

	h := registry.Handle(uuid.NewString())
	ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return "", ErrClosed
	}
	e.inflight[h] = cancel
	e.mu.Unlock()
	e.pending.Inc()

	go func() {
		raw, err := e.resolve(ctx, q)
		e.finish(h)
		done(raw, err)
	}()

	return h, nil
}

// SubmitSync resolves a query, blocking until an answer or error.
func (e *Engine) SubmitSync(q answer.Question) (*answer.Raw, error) {
	if strings.TrimSpace(q.Name) == "" {
		return nil, ErrEmptyName
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
	defer cancel()

	return e.resolve(ctx, q)
}

// Cancel abandons the in-flight query identified by h. Canceling a handle
// that already completed, or was never issued, is a harmless no-op.
func (e *Engine) Cancel(h registry.Handle) error {
	e.mu.Lock()
	cancel, ok := e.inflight[h]
	delete(e.inflight, h)
	e.mu.Unlock()

	if ok {
		cancel()
	}
	return nil
}

// Close abandons every in-flight query and rejects future submissions.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	cancels := make([]context.CancelFunc, 0, len(e.inflight))
	for _, cancel := range e.inflight {
		cancels = append(cancels, cancel)
	}
	e.inflight = make(map[registry.Handle]context.CancelFunc)
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// Pending returns the number of in-flight asynchronous queries.
func (e *Engine) Pending() int {
	return int(e.pending.Load())
}

func (e *Engine) finish(h registry.Handle) {
	e.mu.Lock()
	cancel, ok := e.inflight[h]
	delete(e.inflight, h)
	e.mu.Unlock()

	if ok {
		cancel() // release the timeout timer
	}
	e.pending.Dec()
}

// resolve exchanges the query with an upstream, retrying e.Retries
// additional times before giving up.
func (e *Engine) resolve(ctx context.Context, q answer.Question) (*answer.Raw, error) {
	var lastErr error
	for attempt := uint(0); attempt <= e.Retries; attempt++ {
		// check for caller cancellation
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Fresh request each attempt: ExchangeContext mutates *dns.Msg
		req := newRequest(q)

		resp, _, err := e.Client.ExchangeContext(ctx, req, e.pickUpstream())
		if err != nil {
			lastErr = err
			continue // retry
		}
		if resp == nil {
			return nil, ErrEmptyMsg
		}

		return rawFromMsg(q, resp), nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("dns exchange failed for %q", q.Name)
	}
	return nil, lastErr
}

// newRequest builds a validating query: DO signals DNSSEC support, the AD
// flag asks the upstream to report validation status.
func newRequest(q answer.Question) *dns.Msg {
	req := &dns.Msg{}
	req.SetQuestion(dns.Fqdn(q.Name), q.Type)
	req.Question[0].Qclass = q.Class
	req.SetEdns0(_udpBufferSize, true)
	req.AuthenticatedData = true
	return req
}

// rawFromMsg converts a response into the engine's raw answer form.
// Only records of the queried type are kept, in answer order.
func rawFromMsg(q answer.Question, resp *dns.Msg) *answer.Raw {
	raw := &answer.Raw{
		Question: q,
		Rcode:    resp.Rcode,
		Secure:   resp.AuthenticatedData,
	}

	if reason, ok := bogusReason(resp); ok {
		raw.Secure = false
		raw.BogusReason = reason
		return raw
	}

	for _, rr := range resp.Answer {
		if rr.Header().Rrtype != q.Type {
			continue
		}
		data, err := rdata(rr)
		if err != nil {
			continue
		}
		raw.Rdata = append(raw.Rdata, data)
	}
	return raw
}

// bogusReason inspects the response's EDNS0 options for a DNSSEC-related
// Extended DNS Error and returns a human-readable reason if present.
func bogusReason(resp *dns.Msg) (string, bool) {
	opt := resp.IsEdns0()
	if opt == nil {
		return "", false
	}

	for _, o := range opt.Option {
		ede, ok := o.(*dns.EDNS0_EDE)
		if !ok || !dnssecFailure(ede.InfoCode) {
			continue
		}
		if ede.ExtraText != "" {
			return ede.ExtraText, true
		}
		if s, ok := dns.ExtendedErrorCodeToString[ede.InfoCode]; ok {
			return s, true
		}
		return fmt.Sprintf("EDE %d", ede.InfoCode), true
	}
	return "", false
}

func dnssecFailure(code uint16) bool {
	switch code {
	case dns.ExtendedErrorCodeDNSBogus,
		dns.ExtendedErrorCodeDNSSECIndeterminate,
		dns.ExtendedErrorCodeSignatureExpired,
		dns.ExtendedErrorCodeSignatureNotYetValid,
		dns.ExtendedErrorCodeDNSKEYMissing,
		dns.ExtendedErrorCodeRRSIGsMissing,
		dns.ExtendedErrorCodeNoZoneKeyBitSet,
		dns.ExtendedErrorCodeNSECMissing,
		dns.ExtendedErrorCodeUnsupportedDNSKEYAlgorithm,
		dns.ExtendedErrorCodeUnsupportedDSDigestType:
		return true
	}
	return false
}

// rdata extracts the uncompressed wire-format rdata payload from a record.
func rdata(rr dns.RR) ([]byte, error) {
	buf := make([]byte, dns.Len(rr))
	off, err := dns.PackRR(rr, buf, 0, nil, false)
	if err != nil {
		return nil, err
	}

	// rdata begins after owner name (repacked, so uncompressed),
	// type, class, ttl and rdlength.
	scratch := make([]byte, len(buf))
	nameLen, err := dns.PackDomainName(rr.Header().Name, scratch, 0, nil, false)
	if err != nil {
		return nil, err
	}
	start := nameLen + 10
	if start > off {
		return nil, fmt.Errorf("malformed record %q", rr.Header().Name)
	}
	return buf[start:off], nil
}

// pickUpstream returns a random upstream from the configured list.
func (e *Engine) pickUpstream() string {
	if len(e.Upstreams) == 0 {
		return config.DefaultUpstream
	}

	// Use crypto/rand for secure random selection
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(e.Upstreams))))
	if err != nil {
		// Fall back to first upstream on error
		return e.Upstreams[0]
	}

	return e.Upstreams[n.Int64()]
}
